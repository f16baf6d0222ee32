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

// Package controllers maps HTTP verbs and conditional headers onto plan
// service operations and operation outcomes onto status codes.
package controllers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openmedplan/planservice/cmd/planservice/auth"
	"github.com/openmedplan/planservice/cmd/planservice/helpers"
	"github.com/openmedplan/planservice/cmd/planservice/models"
	"github.com/openmedplan/planservice/cmd/planservice/services"
	"github.com/openmedplan/planservice/cmd/planservice/validator"
	"github.com/openmedplan/planservice/pkg/document"
)

// TokenVerifier checks bearer tokens on every route. Set once via Setup
// before the router starts; handlers hold no other shared state.
var TokenVerifier auth.Verifier

func Setup(verifier auth.Verifier) {
	TokenVerifier = verifier
}

// authenticate extracts and verifies the bearer token, writing the 401
// response itself on failure.
func authenticate(c *gin.Context) bool {
	token := auth.TokenFromHeader(c.GetHeader("Authorization"))
	if !TokenVerifier.Verify(token) {
		helpers.HandleAuthenticationError(c, token)
		return false
	}
	return true
}

// readDocument reads and parses the request body. On failure the response
// has already been written and ok is false. errField selects the error body
// key for the invalid-JSON case.
func readDocument(c *gin.Context, errField string) (raw []byte, doc document.Value, ok bool) {
	raw, err := c.GetRawData()
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return nil, document.Null, false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		helpers.HandleEmptyBody(c)
		return nil, document.Null, false
	}
	doc, err = document.Parse(raw)
	if err != nil {
		helpers.HandleValidationError(c, errField, err)
		return nil, document.Null, false
	}
	return raw, doc, true
}

// CreatePlanHandler implements POST /plan/.
func CreatePlanHandler(c *gin.Context) {
	if !authenticate(c) {
		return
	}
	raw, doc, ok := readDocument(c, "Error")
	if !ok {
		return
	}
	if err := validator.Validate(raw); err != nil {
		helpers.HandleValidationError(c, "Error", err)
		return
	}

	etag, err := services.CreatePlan(c.Request.Context(), doc)
	switch {
	case errors.Is(err, services.ErrConflict):
		helpers.HandleConflict(c)
	case errors.Is(err, document.ErrInvalidDocument):
		helpers.HandleValidationError(c, "Error", err)
	case err != nil:
		helpers.HandleStorageUnavailable(c, err)
	default:
		objectID := doc.Field("objectId")
		zap.S().Infof("Created plan %s", objectID)
		helpers.SetETag(c, etag)
		c.JSON(http.StatusOK, gin.H{"message": models.CreatedMsgPrefix + objectID})
	}
}

// GetObjectHandler implements GET /{type}/{objectId}. Conditional handling
// and the ETag header apply to the plan type only.
func GetObjectHandler(c *gin.Context) {
	if !authenticate(c) {
		return
	}
	var request models.GetObjectRequest
	if err := c.BindUri(&request); err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	doc, etag, err := services.GetPlan(c.Request.Context(), request.Type, request.ObjectID, c.GetHeader("If-None-Match"))
	switch {
	case errors.Is(err, services.ErrNotFound):
		helpers.HandleNotFound(c)
	case errors.Is(err, services.ErrNotModified):
		// 304 responses carry no body; net/http drops writes after the
		// status anyway.
		helpers.SetETag(c, etag)
		c.Status(http.StatusNotModified)
	case err != nil:
		helpers.HandleStorageUnavailable(c, err)
	default:
		if request.Type == services.PlanObjectType {
			helpers.SetETag(c, etag)
		}
		c.JSON(http.StatusOK, doc)
	}
}

// UpdatePlanHandler implements PUT /plan/{objectId}: schema-validated full
// replacement gated on If-Match.
func UpdatePlanHandler(c *gin.Context) {
	if !authenticate(c) {
		return
	}
	raw, doc, ok := readDocument(c, "Validation Error")
	if !ok {
		return
	}
	if err := validator.Validate(raw); err != nil {
		helpers.HandleValidationError(c, "Validation Error", err)
		return
	}
	var request models.PlanRequest
	if err := c.BindUri(&request); err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	etag, err := services.ReplacePlan(c.Request.Context(), request.ObjectID, doc, c.GetHeader("If-Match"))
	if !writeUpdateError(c, err, "Validation Error") {
		helpers.SetETag(c, etag)
		c.JSON(http.StatusOK, gin.H{"message": models.CreatedMsgPrefix + doc.Field("objectId")})
	}
}

// PatchPlanHandler implements PATCH /plan/{objectId}. The body is a full
// replacement, not a merge. Existence is checked before validation to keep
// the established 404-before-400 precedence of this route.
func PatchPlanHandler(c *gin.Context) {
	if !authenticate(c) {
		return
	}
	raw, doc, ok := readDocument(c, "Error")
	if !ok {
		return
	}
	var request models.PlanRequest
	if err := c.BindUri(&request); err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	exists, err := services.PlanExists(c.Request.Context(), request.ObjectID)
	if err != nil {
		helpers.HandleStorageUnavailable(c, err)
		return
	}
	if !exists {
		helpers.HandleNotFound(c)
		return
	}
	if err := validator.Validate(raw); err != nil {
		helpers.HandleValidationError(c, "Error", err)
		return
	}

	etag, err := services.PatchPlan(c.Request.Context(), request.ObjectID, doc, c.GetHeader("If-Match"))
	if !writeUpdateError(c, err, "Error") {
		helpers.SetETag(c, etag)
		c.JSON(http.StatusOK, gin.H{models.MsgUpdatedKey: models.MsgUpdated})
	}
}

// DeletePlanHandler implements DELETE /plan/{objectId}, gated on If-Match.
func DeletePlanHandler(c *gin.Context) {
	if !authenticate(c) {
		return
	}
	var request models.PlanRequest
	if err := c.BindUri(&request); err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	err := services.DeletePlan(c.Request.Context(), request.ObjectID, c.GetHeader("If-Match"))
	if !writeUpdateError(c, err, "Error") {
		zap.S().Infof("Deleted plan %s", request.ObjectID)
		c.Status(http.StatusNoContent)
	}
}

// writeUpdateError maps the shared failure kinds of the write paths.
// errField selects the error body key for documents the store encoding
// rejects. It reports whether a response was written.
func writeUpdateError(c *gin.Context, err error, errField string) bool {
	var precondition *services.PreconditionFailedError
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrNotFound):
		helpers.HandleNotFound(c)
	case errors.As(err, &precondition):
		helpers.HandlePreconditionFailed(c, precondition.CurrentETag)
	case errors.Is(err, document.ErrInvalidDocument):
		helpers.HandleValidationError(c, errField, err)
	default:
		helpers.HandleStorageUnavailable(c, err)
	}
	return true
}
