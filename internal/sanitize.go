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

package internal

import "strings"

var sanitizer = strings.NewReplacer("\n", "", "\r", "", "\t", " ")

// SanitizeString removes newlines and tabs from a string before it is
// written to the log, preventing log forgery from client-supplied values.
func SanitizeString(s string) string {
	return sanitizer.Replace(s)
}
