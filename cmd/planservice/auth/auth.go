// Copyright 2024 OpenMedPlan Contributors
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

// Package auth verifies the bearer tokens that gate every plan operation.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenFromHeader extracts the bearer token from an Authorization header
// value: the second whitespace-separated component, with the scheme prefix
// discarded. An absent or one-part header yields the empty token, which every
// Verifier rejects.
func TokenFromHeader(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Verifier checks a bearer token. Every call is independent; there is no
// session state.
type Verifier interface {
	Verify(token string) bool
}

// JWTVerifier validates HS256-signed JWTs against a shared secret and an
// expected issuer.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

func (v *JWTVerifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	if v.issuer != "" {
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyIssuer(v.issuer, true) {
			return false
		}
	}
	return true
}

// IssueToken signs a short-lived HS256 token. Used by deployment tooling and
// tests to mint tokens the JWTVerifier accepts.
func IssueToken(secret []byte, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
