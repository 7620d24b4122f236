// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package admintoken issues and verifies the HS256 bearer tokens that guard
// the admin API.
package admintoken

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// DefaultTTL is the lifetime of a token issued without an explicit TTL.
const DefaultTTL = time.Hour

var (
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("admin token secret must be at least 32 characters")

	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid admin token")

	// ErrMissingSubject is returned when a token or request names no subject.
	ErrMissingSubject = errors.New("admin token subject is required")
)

// Service signs and verifies admin tokens with a shared secret.
type Service struct {
	issuer string
	secret []byte
	kid    string // Stable, derived from the secret
}

// Claims are the registered claims carried by an admin token.
type Claims struct {
	jwt.RegisteredClaims
}

// NewService creates a token service for issuer.
func NewService(issuer, secret string) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	// kid is the first 16 bytes of the secret's SHA-256, so rotating the
	// secret changes the kid without exposing the secret.
	hash := sha256.Sum256([]byte(secret))
	kid := base64.RawURLEncoding.EncodeToString(hash[:16])

	return &Service{
		issuer: issuer,
		secret: []byte(secret),
		kid:    kid,
	}, nil
}

// Issue mints a token for subject valid for ttl. A non-positive ttl uses
// DefaultTTL.
func (s *Service) Issue(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrMissingSubject
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.kid

	return token.SignedString(s.secret)
}

// Verify checks the signature, issuer and expiry of raw and returns its
// claims.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if kid, ok := token.Header["kid"].(string); ok && kid != s.kid {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
