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

// Package validator checks incoming plan documents against the fixed plan
// schema embedded in the binary.
package validator

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var planSchemaJSON []byte

var planSchema = mustCompile()

func mustCompile() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(planSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("embedded plan schema does not compile: %s", err))
	}
	return schema
}

// Error carries the aggregate schema violation message for one document.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Validate checks a raw JSON document against the plan schema. It returns a
// *Error listing every violation, or a plain error when the payload is not
// valid JSON at all.
func Validate(raw []byte) error {
	result, err := planSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &Error{Message: strings.Join(msgs, "; ")}
}
