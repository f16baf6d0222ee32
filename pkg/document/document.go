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

// Package document models arbitrary nested JSON plan documents as a tagged
// value variant and provides the flatten/assemble transform between nested
// documents and their flat per-namespace field representation in the store.
package document

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Kind discriminates the JSON value variants.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one JSON value. Exactly the field selected by Kind is meaningful.
// Numbers are kept as json.Number so that 20 and 20.0 survive a store
// round-trip unchanged.
type Value struct {
	Kind   Kind
	Object map[string]Value
	Array  []Value
	Str    string
	Num    json.Number
	Bool   bool
}

// Null is the JSON null value.
var Null = Value{Kind: KindNull}

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Number(n json.Number) Value { return Value{Kind: KindNumber, Num: n} }

func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func Object(m map[string]Value) Value { return Value{Kind: KindObject, Object: m} }

func Array(a []Value) Value { return Value{Kind: KindArray, Array: a} }

// Parse decodes raw JSON into a Value. The input must be a single JSON value;
// trailing garbage is rejected.
func Parse(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Null, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return Null, fmt.Errorf("invalid JSON: trailing data after document")
	}
	return fromInterface(v)
}

func fromInterface(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null, nil
	case string:
		return String(t), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		return Number(t), nil
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := fromInterface(e)
			if err != nil {
				return Null, err
			}
			obj[k] = ev
		}
		return Object(obj), nil
	case []interface{}:
		arr := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := fromInterface(e)
			if err != nil {
				return Null, err
			}
			arr = append(arr, ev)
		}
		return Array(arr), nil
	}
	return Null, fmt.Errorf("unsupported JSON value of type %T", v)
}

// MarshalJSON renders the value back to JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		if v.Num == "" {
			return []byte("0"), nil
		}
		return []byte(v.Num), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			eb, err := v.Object[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot marshal %s", v.Kind)
}

// Canonical returns a deterministic JSON rendering (object keys sorted) used
// for content fingerprinting.
func (v Value) Canonical() []byte {
	b, err := v.MarshalJSON()
	if err != nil {
		// All Value variants marshal; this is unreachable for parsed input.
		return []byte("null")
	}
	return b
}

// Field returns the string value of a top-level object field, or "" when the
// value is not an object, the field is absent, or it is not a string.
func (v Value) Field(name string) string {
	if v.Kind != KindObject {
		return ""
	}
	f, ok := v.Object[name]
	if !ok || f.Kind != KindString {
		return ""
	}
	return f.Str
}

// Equal reports deep structural equality. Numbers compare by literal, which
// is exact for values that went through Parse.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(o.Object) {
			return false
		}
		for k, e := range v.Object {
			oe, ok := o.Object[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}
