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

// Package tokens signs and verifies the compact bearer tokens that gate the
// editor, the save callback and the file download. The service is
// key-agnostic: callers pass the secret of the trust domain the token is
// meant for.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	// ErrTokenInvalid is returned when a token fails verification: bad
	// signature, malformed structure, or expired beyond the leeway.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUnexpectedSigningMethod is returned when the signing method is unexpected.
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
)

const (
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
)

// Config is the configuration of the token service.
type Config struct {
	// TTL is how long a signed token stays valid.
	TTL time.Duration

	// Leeway is the clock-skew tolerance applied on expiry checks.
	Leeway time.Duration
}

// Observer is notified of signing and verification outcomes, typically to
// feed metrics.
type Observer interface {
	AddTokenIssued()
	AddTokenRejected()
}

// Service signs and verifies claim-map tokens with HS256.
type Service struct {
	conf     *Config
	observer Observer
}

// NewService creates a new token service.
func NewService(conf *Config) *Service {
	return &Service{conf: conf}
}

// NewServiceWithObserver creates a token service that reports outcomes to
// the given observer.
func NewServiceWithObserver(conf *Config, observer Observer) *Service {
	return &Service{conf: conf, observer: observer}
}

// Sign serializes the given claims into a signed token. Issued-at and
// expires-at are stamped by the service; the reserved claim names "iat" and
// "exp" must not appear in the claim map.
func (s *Service) Sign(claims map[string]string, key string) (string, error) {
	mapClaims := jwt.MapClaims{}
	for k, v := range claims {
		if k == claimIssuedAt || k == claimExpiresAt {
			return "", fmt.Errorf("reserved claim %q: %w", k, ErrTokenInvalid)
		}
		mapClaims[k] = v
	}

	now := time.Now()
	mapClaims[claimIssuedAt] = now.Unix()
	mapClaims[claimExpiresAt] = now.Add(s.conf.TTL).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if s.observer != nil {
		s.observer.AddTokenIssued()
	}
	return signed, nil
}

// Verify checks the signature and expiry of the given token and returns the
// claim map it was signed with. Expiry is checked with the configured leeway
// so small clock skew between signer and verifier is tolerated.
func (s *Service) Verify(token, key string) (map[string]string, error) {
	// Claims are validated manually below so the leeway can be applied.
	parser := jwt.Parser{SkipClaimsValidation: true}

	mapClaims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, mapClaims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: %w", t.Method.Alg(), ErrUnexpectedSigningMethod)
		}
		return []byte(key), nil
	}); err != nil {
		return nil, s.reject(fmt.Errorf("%s: %w", err.Error(), ErrTokenInvalid))
	}

	exp, ok := mapClaims[claimExpiresAt].(float64)
	if !ok {
		return nil, s.reject(fmt.Errorf("missing expiry: %w", ErrTokenInvalid))
	}
	if time.Now().After(time.Unix(int64(exp), 0).Add(s.conf.Leeway)) {
		return nil, s.reject(fmt.Errorf("expired: %w", ErrTokenInvalid))
	}

	claims := map[string]string{}
	for k, v := range mapClaims {
		if k == claimIssuedAt || k == claimExpiresAt {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, s.reject(fmt.Errorf("claim %q is not a string: %w", k, ErrTokenInvalid))
		}
		claims[k] = str
	}
	return claims, nil
}

func (s *Service) reject(err error) error {
	if s.observer != nil {
		s.observer.AddTokenRejected()
	}
	return err
}
