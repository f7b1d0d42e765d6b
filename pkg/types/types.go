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

// Package types provides the data model shared by the DocBridge protocol
// packages: document session keys, liveness tokens, permission records and
// the document-server callback payload.
package types

// Permission is the access level a user has on a shared file.
type Permission string

const (
	// PermissionRead grants view-only access.
	PermissionRead Permission = "read"

	// PermissionEdit grants collaborative editing access.
	PermissionEdit Permission = "edit"
)

// ParsePermission returns the Permission for the given string. Unknown
// values degrade to PermissionRead.
func ParsePermission(s string) Permission {
	if s == string(PermissionEdit) {
		return PermissionEdit
	}
	return PermissionRead
}

// PermissionRecord is the per-file access override: the default level plus
// an explicit allow-list of user ids. It is packed into a chat message
// attachment by the permission ledger.
type PermissionRecord struct {
	// FileID is the chat-platform file identifier the record belongs to.
	FileID string

	// Default is the access level granted to users not in SharedUsers.
	Default Permission

	// SharedUsers are user ids granted edit access regardless of Default.
	SharedUsers []string
}

// IsTrivial returns true if the record grants nothing beyond the implicit
// default, in which case it is not worth persisting.
func (r PermissionRecord) IsTrivial() bool {
	return r.Default != PermissionEdit && len(r.SharedUsers) == 0
}

// Allows returns true if the record grants edit access to the given user.
func (r PermissionRecord) Allows(userID string) bool {
	if r.Default == PermissionEdit {
		return true
	}
	for _, id := range r.SharedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// DocumentKey is the logical document version key concurrent editors agree
// on, plus the chat coordinates of the originating message so a save knows
// where to re-upload.
type DocumentKey struct {
	// Key is the opaque session key shared by all editors of the file.
	Key string

	// ChannelID is the channel of the originating message.
	ChannelID string

	// MessageTs is the timestamp of the originating message.
	MessageTs string
}

// ScheduledOTP is a liveness token for one editing grant, implemented by a
// far-future scheduled chat message. Existence of the scheduled message
// means the grant is still live; cancellation revokes it.
type ScheduledOTP struct {
	// Code is the platform-assigned scheduled message id.
	Code string

	// Channel is the channel the message was scheduled in.
	Channel string

	// PostAt is the unix time the message would fire.
	PostAt int64
}

// CallbackStatus is the document-server callback status.
type CallbackStatus int

// The status values the document server delivers on its save/close
// callbacks. Statuses without a registered handler are ignored.
const (
	StatusEditing   CallbackStatus = 1
	StatusSave      CallbackStatus = 2
	StatusSaveError CallbackStatus = 3
	StatusClose     CallbackStatus = 4
	StatusForceSave CallbackStatus = 6
)

// String returns the name of the status for logging.
func (s CallbackStatus) String() string {
	switch s {
	case StatusEditing:
		return "editing"
	case StatusSave:
		return "save"
	case StatusSaveError:
		return "save-error"
	case StatusClose:
		return "close"
	case StatusForceSave:
		return "force-save"
	}
	return "unknown"
}

// CallbackPayload is the body of a document-server callback. It is transient
// wire state and is never persisted.
type CallbackPayload struct {
	// Key is a composite "team:user:file" identifier.
	Key string `json:"key"`

	// Token is the signed callback token. Some document-server deployments
	// deliver it via an HTTP header instead, in which case this is empty.
	Token string `json:"token,omitempty"`

	// Status is the callback status.
	Status CallbackStatus `json:"status"`

	// URL is the location the edited document can be downloaded from.
	URL string `json:"url,omitempty"`

	// Users are the ids of users still connected to the editing session.
	Users []string `json:"users,omitempty"`
}

// EditorSession is the payload handed to the editor front-end after an
// editor-open request succeeded.
type EditorSession struct {
	// Token is the signed editor token carrying the session claims.
	Token string `json:"token"`

	// DocumentKey is the shared document version key.
	DocumentKey string `json:"documentKey"`

	// CallbackKey is the composite team:user:file key the document server
	// must echo in every callback it posts for this session.
	CallbackKey string `json:"callbackKey"`

	// Permission is the granted access level.
	Permission Permission `json:"permission"`

	// CallbackURL is where the document server posts save/close callbacks.
	CallbackURL string `json:"callbackUrl"`

	// DownloadURL is the token-gated URL the document server fetches the
	// file bytes from.
	DownloadURL string `json:"downloadUrl"`

	// FileName is the display name of the file.
	FileName string `json:"fileName"`

	// FileType is the lower-cased file extension.
	FileType string `json:"fileType"`
}
