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

// Package services owns the conditional-write protocol on top of the
// document store: key derivation, existence checks, eTag issue and
// enforcement, and the delete cascade.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmedplan/planservice/cmd/planservice/store"
	"github.com/openmedplan/planservice/internal"
	"github.com/openmedplan/planservice/pkg/document"
)

// PlanObjectType is the objectType all write routes operate on. Reads are
// generic over type so nested sub-objects stay addressable.
const PlanObjectType = "plan"

const storeTimeout = 10 * time.Second

var (
	planStore store.Store
	// keyMutex serializes check-then-act sequences per key. Existence check,
	// eTag check and the following mutation are separate store calls; without
	// the lock two writers can both pass a stale If-Match check.
	keyMutex *mapmutex.Mutex
)

// Setup wires the store. Must run before any operation.
func Setup(s store.Store) {
	planStore = s
	keyMutex = mapmutex.NewCustomizedMapMutex(
		800,
		100000000,
		10,
		1.1,
		0.2) // default configs: maxDelay:  100000000, // 0.1 second baseDelay: 10,        // 10 nanosecond
}

// NewETag issues a fresh version token: the content fingerprint salted with
// a per-write nonce, so every successful write yields a new eTag even when
// the stored content is unchanged.
func NewETag(content []byte) string {
	return internal.Fingerprint(content, []byte(uuid.NewString()))
}

// normalizeETag strips the weak prefix and optional surrounding quotes from
// a conditional header value so clients may echo the quoted header form.
func normalizeETag(header string) string {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "W/")
	return strings.Trim(header, `"`)
}

// CreatePlan stores a new, already schema-validated plan document. The key is
// derived from the document's own objectType and objectId. Fails with
// ErrConflict when the key already exists.
func CreatePlan(ctx context.Context, doc document.Value) (etag string, err error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := document.Key(doc.Field("objectType"), doc.Field("objectId"))
	if !keyMutex.TryLock(key) {
		return "", storageError(errors.New("could not acquire key lock"))
	}
	defer keyMutex.Unlock(key)

	exists, err := planStore.Exists(ctx, key)
	if err != nil {
		return "", storageError(err)
	}
	if exists {
		return "", ErrConflict
	}
	return storeDocument(ctx, key, doc)
}

// PlanExists reports whether a plan is stored under objectID.
func PlanExists(ctx context.Context, objectID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	exists, err := planStore.Exists(ctx, document.Key(PlanObjectType, objectID))
	if err != nil {
		return false, storageError(err)
	}
	return exists, nil
}

// GetPlan reconstructs the document stored under type:objectId. For the plan
// type it also returns the current eTag and honors If-None-Match, reporting
// ErrNotModified on a match; other types carry no eTag.
func GetPlan(ctx context.Context, objectType, objectID, ifNoneMatch string) (document.Value, string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := document.Key(objectType, objectID)
	exists, err := planStore.Exists(ctx, key)
	if err != nil {
		return document.Null, "", storageError(err)
	}
	if !exists {
		return document.Null, "", ErrNotFound
	}

	var etag string
	if objectType == PlanObjectType {
		etag, err = planStore.GetField(ctx, key, store.ETagField)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return document.Null, "", storageError(err)
		}
		if etag != "" && ifNoneMatch != "" && normalizeETag(ifNoneMatch) == etag {
			return document.Null, etag, ErrNotModified
		}
	}

	doc, err := planStore.GetDocument(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return document.Null, "", ErrNotFound
	}
	if err != nil {
		return document.Null, "", storageError(err)
	}
	return doc, etag, nil
}

// ReplacePlan replaces the whole stored document. Requires a matching
// If-Match; the old document's fields are dropped (cascade) before the new
// content is stored under a fresh eTag.
func ReplacePlan(ctx context.Context, objectID string, doc document.Value, ifMatch string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := document.Key(PlanObjectType, objectID)
	if !keyMutex.TryLock(key) {
		return "", storageError(errors.New("could not acquire key lock"))
	}
	defer keyMutex.Unlock(key)

	current, err := checkPrecondition(ctx, key, ifMatch)
	if err != nil {
		return "", err
	}
	zap.S().Debugf("Replacing %s, old eTag %s", internal.SanitizeString(key), current)

	if err := planStore.DeleteDocument(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", storageError(err)
	}
	return storeDocument(ctx, key, doc)
}

// PatchPlan stores the body as a full replacement under a fresh eTag.
// Partial-merge semantics have never shipped; unlike ReplacePlan the old
// fields are overwritten in place rather than dropped first, so namespaces
// the new document no longer references stay behind.
func PatchPlan(ctx context.Context, objectID string, doc document.Value, ifMatch string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := document.Key(PlanObjectType, objectID)
	if !keyMutex.TryLock(key) {
		return "", storageError(errors.New("could not acquire key lock"))
	}
	defer keyMutex.Unlock(key)

	if _, err := checkPrecondition(ctx, key, ifMatch); err != nil {
		return "", err
	}
	return storeDocument(ctx, key, doc)
}

// DeletePlan removes the document and, recursively, every namespace it
// references. Requires a matching If-Match.
func DeletePlan(ctx context.Context, objectID, ifMatch string) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key := document.Key(PlanObjectType, objectID)
	if !keyMutex.TryLock(key) {
		return storageError(errors.New("could not acquire key lock"))
	}
	defer keyMutex.Unlock(key)

	if _, err := checkPrecondition(ctx, key, ifMatch); err != nil {
		return err
	}
	if err := planStore.DeleteDocument(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storageError(err)
	}
	return nil
}

// checkPrecondition verifies the key exists and the If-Match header names
// its current eTag. A missing If-Match fails the precondition outright.
// Returns the current eTag on success.
func checkPrecondition(ctx context.Context, key, ifMatch string) (string, error) {
	exists, err := planStore.Exists(ctx, key)
	if err != nil {
		return "", storageError(err)
	}
	if !exists {
		return "", ErrNotFound
	}
	current, err := planStore.GetField(ctx, key, store.ETagField)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", storageError(err)
	}
	if ifMatch == "" || normalizeETag(ifMatch) != current {
		return "", &PreconditionFailedError{CurrentETag: current}
	}
	return current, nil
}

func storeDocument(ctx context.Context, key string, doc document.Value) (string, error) {
	if err := planStore.PutDocument(ctx, key, doc); err != nil {
		if errors.Is(err, document.ErrInvalidDocument) {
			return "", err
		}
		return "", storageError(err)
	}
	etag := NewETag(doc.Canonical())
	if err := planStore.SetField(ctx, key, store.ETagField, etag); err != nil {
		return "", storageError(err)
	}
	return etag, nil
}
