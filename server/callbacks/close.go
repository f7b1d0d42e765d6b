/*
 * Copyright 2025 The DocBridge Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package callbacks

import (
	"context"

	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/logging"
)

// CloseHandler retires the document key once the last editor has left. A
// close with users still attached is a no-op: the session lives on.
type CloseHandler struct {
	store *dockeys.Store
}

// NewCloseHandler creates a new CloseHandler.
func NewCloseHandler(store *dockeys.Store) *CloseHandler {
	return &CloseHandler{store: store}
}

// Handle implements Handler.
func (h *CloseHandler) Handle(ctx context.Context, cb *Callback) error {
	if len(cb.Payload.Users) > 0 {
		return nil
	}

	h.store.Release(ctx, cb.FileID)
	logging.From(ctx).Infow("editing session closed",
		"team", cb.TeamID, "file", cb.FileID)
	return nil
}
