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

package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmedplan/planservice/cmd/planservice/services"
	"github.com/openmedplan/planservice/cmd/planservice/store"
)

const testToken = "test-token"

// stubVerifier accepts exactly the test token, standing in for the JWT
// verifier wired in production.
type stubVerifier struct{}

func (stubVerifier) Verify(token string) bool {
	return token == testToken
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	services.Setup(store.NewMemory())
	Setup(stubVerifier{})

	router := gin.New()
	router.POST("/plan/", CreatePlanHandler)
	router.GET("/:type/:objectId", GetObjectHandler)
	router.PUT("/plan/:objectId", UpdatePlanHandler)
	router.PATCH("/plan/:objectId", PatchPlanHandler)
	router.DELETE("/plan/:objectId", DeletePlanHandler)
	return router
}

func do(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func etagHeader(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	return strings.Trim(etag, `"`)
}

const samplePlan = `{"objectType":"plan","objectId":"123","service":{"objectType":"service","objectId":"s1","copay":20}}`

func TestPlanLifecycleScenario(t *testing.T) {
	router := newTestRouter(t)

	// Create.
	rec := do(router, http.MethodPost, "/plan/", samplePlan, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag1 := etagHeader(t, rec)
	assert.JSONEq(t, `{"message":"Created data with key: 123"}`, rec.Body.String())

	// Read it back, unconditional.
	rec = do(router, http.MethodGet, "/plan/123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, etag1, etagHeader(t, rec))
	assert.JSONEq(t, samplePlan, rec.Body.String())

	// Conditional read with the current eTag is Not Modified.
	rec = do(router, http.MethodGet, "/plan/123", "", map[string]string{"If-None-Match": `"` + etag1 + `"`})
	assert.Equal(t, http.StatusNotModified, rec.Code)

	// A stale If-Match never mutates.
	updated := `{"objectType":"plan","objectId":"123","planType":"outOfNetwork"}`
	rec = do(router, http.MethodPut, "/plan/123", updated, map[string]string{"If-Match": "wrong"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, etag1, etagHeader(t, rec))

	// Replace with the right eTag issues a new one.
	rec = do(router, http.MethodPut, "/plan/123", updated, map[string]string{"If-Match": etag1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	etag2 := etagHeader(t, rec)
	assert.NotEqual(t, etag1, etag2)

	// The old eTag no longer matches on a conditional read.
	rec = do(router, http.MethodGet, "/plan/123", "", map[string]string{"If-None-Match": `"` + etag1 + `"`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, updated, rec.Body.String())

	// Delete requires the current eTag.
	rec = do(router, http.MethodDelete, "/plan/123", "", nil)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(router, http.MethodDelete, "/plan/123", "", map[string]string{"If-Match": etag2})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	// Gone.
	rec = do(router, http.MethodGet, "/plan/123", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"Message":"ObjectId does not exist"}`, rec.Body.String())
}

func TestCreateRejectsDuplicate(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/plan/", samplePlan, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, "/plan/", samplePlan, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"Message":"Plan already exist."}`, rec.Body.String())
}

func TestCreateRejectsBadBodies(t *testing.T) {
	router := newTestRouter(t)

	// Empty body.
	rec := do(router, http.MethodPost, "/plan/", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body is empty")

	// Malformed JSON.
	rec = do(router, http.MethodPost, "/plan/", `{"objectType":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Schema violation.
	rec = do(router, http.MethodPost, "/plan/", `{"objectType":"plan"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error")
}

func TestCreateAcceptsSharedLinkedService(t *testing.T) {
	router := newTestRouter(t)

	// Two plan services pointing at the same linked service are valid and
	// share a single stored namespace.
	shared := `{
		"objectType":"plan","objectId":"123",
		"linkedPlanServices":[
			{"objectType":"planservice","objectId":"ps1","linkedService":{"objectType":"service","objectId":"s1"}},
			{"objectType":"planservice","objectId":"ps2","linkedService":{"objectType":"service","objectId":"s1"}}
		]
	}`
	rec := do(router, http.MethodPost, "/plan/", shared, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(router, http.MethodGet, "/plan/123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, shared, rec.Body.String())

	rec = do(router, http.MethodGet, "/service/s1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRejectsUnstorableFieldName(t *testing.T) {
	router := newTestRouter(t)

	// A dotted field name passes the schema but cannot be stored; that is
	// the client's fault, not an outage.
	rec := do(router, http.MethodPost, "/plan/", `{"objectType":"plan","objectId":"123","bad.name":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error")
	assert.Contains(t, rec.Body.String(), "bad.name")
}

func TestAuthenticationGate(t *testing.T) {
	router := newTestRouter(t)

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/plan/123", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"Authentication Error":"wrong"}`, rec.Body.String())

	// Missing header: the empty token is rejected explicitly.
	req = httptest.NewRequest(http.MethodPost, "/plan/", strings.NewReader(samplePlan))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"Authentication Error":""}`, rec.Body.String())
}

func TestGetNestedObjectByType(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/plan/", samplePlan, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/service/s1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// No eTag for non-plan types, and If-None-Match is not honored.
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.JSONEq(t, `{"objectType":"service","objectId":"s1","copay":20}`, rec.Body.String())

	rec = do(router, http.MethodGet, "/service/s1", "", map[string]string{"If-None-Match": "anything"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPatchBehavior(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/plan/", samplePlan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := etagHeader(t, rec)

	// Malformed JSON fails the parse gate regardless of the key.
	rec = do(router, http.MethodPatch, "/plan/other", `{"bad":`, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// An absent key reports 404 before schema validation runs.
	rec = do(router, http.MethodPatch, "/plan/other", `{"objectType":"plan"}`, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// If-Match is required.
	patch := `{"objectType":"plan","objectId":"123","planType":"inNetwork"}`
	rec = do(router, http.MethodPatch, "/plan/123", patch, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(router, http.MethodPatch, "/plan/123", patch, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"Message: ":"Resource updated successfully"}`, rec.Body.String())
	newETag := etagHeader(t, rec)
	assert.NotEqual(t, etag, newETag)

	// PATCH is a full replacement, not a merge.
	rec = do(router, http.MethodGet, "/plan/123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, patch, rec.Body.String())
}

func TestPutValidationErrorBody(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/plan/", samplePlan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := etagHeader(t, rec)

	rec = do(router, http.MethodPut, "/plan/123", `{"objectType":"plan"}`, map[string]string{"If-Match": etag})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Validation Error")
}
