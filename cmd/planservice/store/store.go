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

// Package store persists flattened plan documents in a key-value backend,
// one field map per key namespace.
package store

import (
	"context"
	"errors"

	"github.com/openmedplan/planservice/pkg/document"
)

// ETagField is the reserved field inside a document's namespace holding its
// current version token. It is never part of the document content.
const ETagField = "eTag"

// ErrNotFound marks a key or field that is not in the store.
var ErrNotFound = errors.New("key not found")

// Store is the document store adapter. A key's existence in the store is the
// single source of truth for whether that document exists. Implementations
// must be safe for concurrent use.
type Store interface {
	// Exists reports whether any fields are stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// PutDocument flattens doc into the key's namespace (and the namespaces
	// of its nested objects), overwriting existing fields.
	PutDocument(ctx context.Context, key string, doc document.Value) error

	// GetDocument reconstructs the nested document stored under key.
	// The reserved eTag field is not part of the result.
	GetDocument(ctx context.Context, key string) (document.Value, error)

	// GetField is a point lookup of one field under key, used to read the
	// eTag without reconstructing the whole document.
	GetField(ctx context.Context, key, field string) (string, error)

	// SetField writes one field under key.
	SetField(ctx context.Context, key, field, value string) error

	// DeleteDocument removes all fields under key and, recursively, under
	// every namespace the document references.
	DeleteDocument(ctx context.Context, key string) error
}
