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

package services

import (
	"errors"
	"fmt"
)

// Every operation returns either a success value or one of these specific
// failure kinds; nothing untyped escapes the service.
var (
	// ErrConflict marks a create for a key that already exists.
	ErrConflict = errors.New("plan already exists")

	// ErrNotFound marks any non-create operation on an absent key.
	ErrNotFound = errors.New("objectId does not exist")

	// ErrNotModified reports a conditional read whose If-None-Match matched
	// the current eTag. Not a true failure.
	ErrNotModified = errors.New("not modified")

	// ErrStorageUnavailable wraps store I/O failures and lock exhaustion.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// PreconditionFailedError reports a write whose If-Match header was missing
// or did not match the stored eTag. CurrentETag is returned to the client so
// it can refetch and retry.
type PreconditionFailedError struct {
	CurrentETag string
}

func (e *PreconditionFailedError) Error() string {
	return "precondition failed"
}

func storageError(err error) error {
	return fmt.Errorf("%w: %s", ErrStorageUnavailable, err)
}
