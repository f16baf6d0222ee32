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

package helpers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openmedplan/planservice/cmd/planservice/models"
	"github.com/openmedplan/planservice/internal"
)

// Error bodies are single key/value JSON objects; the key names the failure
// class (Error, Message, Authentication Error, Validation Error).

// SetETag writes the ETag response header in the quoted wire form.
func SetETag(c *gin.Context, etag string) {
	if etag == "" {
		return
	}
	c.Header("ETag", `"`+etag+`"`)
}

func HandleAuthenticationError(c *gin.Context, token string) {
	zap.S().Infow("Rejected request with invalid token", "token", internal.SanitizeString(token))
	c.JSON(http.StatusUnauthorized, gin.H{"Authentication Error": token})
}

func HandleEmptyBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"Error": models.MsgEmptyBody})
}

// HandleValidationError rejects a malformed or schema-invalid body. field
// selects the error body key, which differs between routes ("Error" on
// POST/PATCH, "Validation Error" on PUT).
func HandleValidationError(c *gin.Context, field string, err error) {
	msg := internal.SanitizeString(err.Error())
	zap.S().Infow("Rejected invalid payload", "error", msg)
	c.JSON(http.StatusBadRequest, gin.H{field: msg})
}

func HandleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"Message": models.MsgNotFound})
}

func HandleConflict(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{"Message": models.MsgConflict})
}

// HandlePreconditionFailed reports a missing or stale If-Match, echoing the
// current eTag so the client can refetch and retry.
func HandlePreconditionFailed(c *gin.Context, currentETag string) {
	SetETag(c, currentETag)
	c.JSON(http.StatusPreconditionFailed, gin.H{"Message": models.MsgPrecondition})
}

func HandleStorageUnavailable(c *gin.Context, err error) {
	zap.S().Errorw("Store unavailable", "error", internal.SanitizeString(err.Error()))
	c.JSON(http.StatusServiceUnavailable, gin.H{"Error": "The data store is currently unavailable. Please retry later."})
}

func HandleInvalidInputError(c *gin.Context, err error) {
	msg := internal.SanitizeString(err.Error())
	zap.S().Infow("Invalid input error", "error", msg)
	c.JSON(http.StatusBadRequest, gin.H{"Error": msg})
}
