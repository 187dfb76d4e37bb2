/* Copyright 2019 Comcast Cable Communications Management, LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package mem is an in-memory EntityStore.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Comcast/bearings/core"
)

// Store keeps entities in maps.  Safe for concurrent use.  Rows are
// copied on the way in and out, so callers can't alias store state.
type Store struct {
	sync.Mutex

	kinds map[string]map[string]map[string]interface{}
}

func NewStore() *Store {
	return &Store{
		kinds: make(map[string]map[string]map[string]interface{}),
	}
}

var _ core.EntityStore = (*Store)(nil)

// Seed loads rows for a kind, keyed by their "id" field.  Rows
// without an id get one.  Handy for tests and demos.
func (s *Store) Seed(kind string, rows ...map[string]interface{}) *Store {
	s.Lock()
	defer s.Unlock()
	for _, row := range rows {
		row = copyRow(row)
		id, _ := row["id"].(string)
		if id == "" {
			id = uuid.NewString()
			row["id"] = id
		}
		s.rows(kind)[id] = row
	}
	return s
}

// rows returns the map for a kind, making it on demand.  Callers hold
// the lock.
func (s *Store) rows(kind string) map[string]map[string]interface{} {
	m, have := s.kinds[kind]
	if !have {
		m = make(map[string]map[string]interface{})
		s.kinds[kind] = m
	}
	return m
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp
}

func (s *Store) Get(ctx context.Context, kind, id string) (map[string]interface{}, error) {
	s.Lock()
	defer s.Unlock()

	row, have := s.rows(kind)[id]
	if !have {
		return nil, nil
	}
	return copyRow(row), nil
}

func (s *Store) List(ctx context.Context, kind string, filter core.Expr, rt *core.Runtime) ([]map[string]interface{}, error) {
	s.Lock()
	rows := make([]map[string]interface{}, 0, len(s.rows(kind)))
	ids := make([]string, 0, len(s.rows(kind)))
	for id := range s.rows(kind) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rows = append(rows, copyRow(s.rows(kind)[id]))
	}
	s.Unlock()

	if filter == nil {
		return rows, nil
	}

	matched := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		ok, err := core.MatchRow(ctx, filter, row, rt)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func (s *Store) Create(ctx context.Context, kind string, fields map[string]interface{}) (map[string]interface{}, error) {
	s.Lock()
	defer s.Unlock()

	row := copyRow(fields)
	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	s.rows(kind)[id] = row
	return copyRow(row), nil
}

func (s *Store) Update(ctx context.Context, kind, id string, fields map[string]interface{}) (map[string]interface{}, error) {
	s.Lock()
	defer s.Unlock()

	row, have := s.rows(kind)[id]
	if !have {
		row = map[string]interface{}{"id": id}
	}
	row = copyRow(row)
	for k, v := range fields {
		row[k] = v
	}
	row["id"] = id
	s.rows(kind)[id] = row
	return copyRow(row), nil
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	s.Lock()
	defer s.Unlock()

	delete(s.rows(kind), id)
	return nil
}
