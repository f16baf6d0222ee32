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

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc123", TokenFromHeader("Bearer abc123"))
	assert.Equal(t, "abc123", TokenFromHeader("Token  abc123"))
	assert.Equal(t, "", TokenFromHeader(""))
	assert.Equal(t, "", TokenFromHeader("Bearer"))
	// Components past the second are ignored.
	assert.Equal(t, "abc", TokenFromHeader("Bearer abc def"))
}

func TestJWTVerifier(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, "planservice")

	token, err := IssueToken(secret, "planservice", time.Minute)
	require.NoError(t, err)
	assert.True(t, v.Verify(token))

	// Empty tokens are always rejected.
	assert.False(t, v.Verify(""))

	// Garbage is rejected.
	assert.False(t, v.Verify("not.a.jwt"))

	// Wrong secret is rejected.
	other, err := IssueToken([]byte("other-secret"), "planservice", time.Minute)
	require.NoError(t, err)
	assert.False(t, v.Verify(other))

	// Wrong issuer is rejected.
	badIssuer, err := IssueToken(secret, "someone-else", time.Minute)
	require.NoError(t, err)
	assert.False(t, v.Verify(badIssuer))

	// Expired tokens are rejected.
	expired, err := IssueToken(secret, "planservice", -time.Minute)
	require.NoError(t, err)
	assert.False(t, v.Verify(expired))
}
