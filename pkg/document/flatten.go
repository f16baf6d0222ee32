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

package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDocument marks a document whose shape cannot be flattened into
// the store encoding. It is a client-input failure, not a store failure.
var ErrInvalidDocument = errors.New("invalid document")

// Flat store encoding, one field map per key namespace:
//
//	scalar leaf   -> the scalar JSON-encoded ("20", "\"plan\"", "true", "null")
//	nested object -> "obj:<childKey>" reference; the child lives in its own
//	                 namespace (its own objectType/objectId identity when it
//	                 carries one, a synthesized "<parentKey><field>:" namespace
//	                 otherwise)
//	array         -> "arr:<len>" marker; element i at field "<field>.<i>",
//	                 encoded with the same rules recursively
//
// JSON scalar encodings never start with "obj:" or "arr:" (strings encode
// with a leading quote), so the three cases are unambiguous at every path.
const (
	objectRefPrefix = "obj:"
	arrayMarkPrefix = "arr:"
)

// Key derives the store namespace for an identified object.
func Key(objectType, objectID string) string {
	return objectType + ":" + objectID + ":"
}

// Identity returns the derived key of an object value carrying both
// objectType and objectId, or "" when either is missing.
func (v Value) Identity() string {
	t, id := v.Field("objectType"), v.Field("objectId")
	if t == "" || id == "" {
		return ""
	}
	return Key(t, id)
}

// Flatten encodes a document object rooted at key into flat field maps, one
// per key namespace. Nested identified objects get their own namespaces and
// are referenced from the parent.
func Flatten(key string, v Value) (map[string]map[string]string, error) {
	if v.Kind != KindObject {
		return nil, fmt.Errorf("%w: document root must be a JSON object, got %s", ErrInvalidDocument, v.Kind)
	}
	out := make(map[string]map[string]string)
	if err := flattenObject(key, v, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenObject(key string, v Value, out map[string]map[string]string) error {
	// Several branches of one document may reference the same identified
	// child. Each occurrence re-flattens the namespace; the last one wins,
	// as repeated writes to the store would.
	fields := make(map[string]string, len(v.Object))
	out[key] = fields
	for name, field := range v.Object {
		if strings.Contains(name, ".") {
			return fmt.Errorf("%w: field name %q must not contain '.'", ErrInvalidDocument, name)
		}
		if err := flattenField(key, name, field, fields, out); err != nil {
			return err
		}
	}
	return nil
}

func flattenField(key, path string, v Value, fields map[string]string, out map[string]map[string]string) error {
	switch v.Kind {
	case KindObject:
		if len(v.Object) == 0 {
			// A backing hash with zero fields would not exist, so empty
			// objects are encoded inline as a bare reference.
			fields[path] = objectRefPrefix
			return nil
		}
		childKey := v.Identity()
		if childKey == "" {
			childKey = key + path + ":"
		}
		if err := flattenObject(childKey, v, out); err != nil {
			return err
		}
		fields[path] = objectRefPrefix + childKey
	case KindArray:
		fields[path] = arrayMarkPrefix + strconv.Itoa(len(v.Array))
		for i, elem := range v.Array {
			if err := flattenField(key, path+"."+strconv.Itoa(i), elem, fields, out); err != nil {
				return err
			}
		}
	default:
		fields[path] = string(v.Canonical())
	}
	return nil
}

// FetchFunc resolves a referenced key namespace to its stored field map.
type FetchFunc func(key string) (map[string]string, error)

// Assemble reconstructs the nested document stored under key from its flat
// field map, resolving object references through fetch. It is the exact
// inverse of Flatten.
func Assemble(fields map[string]string, fetch FetchFunc) (Value, error) {
	return assembleFields(fields, fetch, 0)
}

const maxAssembleDepth = 64

func assembleFields(fields map[string]string, fetch FetchFunc, depth int) (Value, error) {
	if depth > maxAssembleDepth {
		return Null, fmt.Errorf("document nesting exceeds %d levels", maxAssembleDepth)
	}
	obj := make(map[string]Value)
	for name, raw := range fields {
		if strings.Contains(name, ".") {
			continue // array element, consumed by its parent field
		}
		v, err := assembleValue(name, raw, fields, fetch, depth)
		if err != nil {
			return Null, err
		}
		obj[name] = v
	}
	return Object(obj), nil
}

func assembleValue(path, raw string, fields map[string]string, fetch FetchFunc, depth int) (Value, error) {
	switch {
	case strings.HasPrefix(raw, objectRefPrefix):
		childKey := strings.TrimPrefix(raw, objectRefPrefix)
		if childKey == "" {
			return Object(map[string]Value{}), nil
		}
		childFields, err := fetch(childKey)
		if err != nil {
			return Null, fmt.Errorf("resolving nested object %q: %w", childKey, err)
		}
		return assembleFields(childFields, fetch, depth+1)
	case strings.HasPrefix(raw, arrayMarkPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(raw, arrayMarkPrefix))
		if err != nil || n < 0 {
			return Null, fmt.Errorf("corrupt array marker %q at %q", raw, path)
		}
		arr := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			elemPath := path + "." + strconv.Itoa(i)
			elemRaw, ok := fields[elemPath]
			if !ok {
				return Null, fmt.Errorf("missing array element field %q", elemPath)
			}
			elem, err := assembleValue(elemPath, elemRaw, fields, fetch, depth)
			if err != nil {
				return Null, err
			}
			arr = append(arr, elem)
		}
		return Array(arr), nil
	default:
		return Parse([]byte(raw))
	}
}

// RefKeys lists the child key namespaces directly referenced from a field
// map. Used by the store's delete cascade.
func RefKeys(fields map[string]string) []string {
	var keys []string
	for _, raw := range fields {
		if strings.HasPrefix(raw, objectRefPrefix) {
			if key := strings.TrimPrefix(raw, objectRefPrefix); key != "" {
				keys = append(keys, key)
			}
		}
	}
	return keys
}
