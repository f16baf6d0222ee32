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

package store

import (
	"context"
	"sync"

	"github.com/openmedplan/planservice/pkg/document"
)

// Memory is an in-process Store with the same semantics as the Redis
// implementation. It backs MEMORY_ONLY development mode and the test suites.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]string{}}
}

func (s *Memory) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *Memory) PutDocument(_ context.Context, key string, doc document.Value) error {
	namespaces, err := document.Flatten(key, doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ns, fields := range namespaces {
		if len(fields) == 0 {
			continue
		}
		stored := make(map[string]string, len(fields))
		for f, v := range fields {
			stored[f] = v
		}
		s.data[ns] = stored
	}
	return nil
}

func (s *Memory) GetDocument(_ context.Context, key string) (document.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.data[key]
	if !ok {
		return document.Null, ErrNotFound
	}
	return document.Assemble(withoutETag(fields), func(childKey string) (map[string]string, error) {
		childFields, ok := s.data[childKey]
		if !ok {
			return nil, ErrNotFound
		}
		return withoutETag(childFields), nil
	})
}

func (s *Memory) GetField(_ context.Context, key, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	value, ok := fields[field]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *Memory) SetField(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.data[key]
	if !ok {
		fields = map[string]string{}
		s.data[key] = fields
	}
	fields[field] = value
	return nil
}

func (s *Memory) DeleteDocument(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	visited := map[string]bool{}
	queue := []string{key}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if visited[k] {
			continue
		}
		visited[k] = true
		fields, ok := s.data[k]
		if !ok {
			continue
		}
		queue = append(queue, document.RefKeys(fields)...)
		delete(s.data, k)
	}
	return nil
}

// Snapshot returns a deep copy of the stored field maps. Tests use it to
// assert that rejected writes left the store untouched.
func (s *Memory) Snapshot() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]string, len(s.data))
	for k, fields := range s.data {
		cp := make(map[string]string, len(fields))
		for f, v := range fields {
			cp[f] = v
		}
		out[k] = cp
	}
	return out
}

func withoutETag(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for f, v := range fields {
		if f == ETagField {
			continue
		}
		out[f] = v
	}
	return out
}
