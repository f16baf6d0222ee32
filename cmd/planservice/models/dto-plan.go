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

package models

// GetObjectRequest binds the generic read route. Reads work for any stored
// objectType so nested sub-objects stay addressable.
type GetObjectRequest struct {
	Type     string `uri:"type" binding:"required"`
	ObjectID string `uri:"objectId" binding:"required"`
}

// PlanRequest binds the write-side routes, which operate on the plan type
// only.
type PlanRequest struct {
	ObjectID string `uri:"objectId" binding:"required"`
}

// Response bodies carried over from the established API contract.
const (
	MsgNotFound      = "ObjectId does not exist"
	MsgConflict      = "Plan already exist."
	MsgPrecondition  = "Precondition Failed"
	MsgEmptyBody     = " The request body is empty. Please provide a valid JSON payload in the request body."
	MsgUpdated       = "Resource updated successfully"
	CreatedMsgPrefix = "Created data with key: "

	// MsgUpdatedKey is the literal (historically malformed) key the PATCH
	// success body has always used. Clients parse it as-is.
	MsgUpdatedKey = "Message: "
)
