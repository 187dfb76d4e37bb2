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

// Package bolt is a bbolt-backed EntityStore.  One bucket per entity
// kind; rows are stored as JSON keyed by id.
package bolt

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/Comcast/bearings/core"
)

type Store struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStore(filename string) (*Store, error) {
	return &Store{
		filename: filename,
	}, nil
}

var _ core.EntityStore = (*Store)(nil)

func (s *Store) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("bolt.Store."+format, args...)
	}
}

func (s *Store) Get(ctx context.Context, kind, id string) (map[string]interface{}, error) {
	var row map[string]interface{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		bs := b.Get([]byte(id))
		if bs == nil {
			return nil
		}
		return json.Unmarshal(bs, &row)
	})
	if err != nil {
		return nil, err
	}
	s.logf("Get %s %s found=%v", kind, id, row != nil)
	return row, nil
}

func (s *Store) List(ctx context.Context, kind string, filter core.Expr, rt *core.Runtime) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var row map[string]interface{}
			if err := json.Unmarshal(bs, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Bucket iteration is ordered by key bytes, but resort on the
	// id field since ids may differ from keys in seeded data.
	sort.Slice(rows, func(i, j int) bool {
		a, _ := rows[i]["id"].(string)
		b, _ := rows[j]["id"].(string)
		return a < b
	})

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
	row := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}

	if err := s.put(kind, id, row); err != nil {
		return nil, err
	}
	s.logf("Create %s %s", kind, id)
	return row, nil
}

func (s *Store) Update(ctx context.Context, kind, id string, fields map[string]interface{}) (map[string]interface{}, error) {
	row, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = map[string]interface{}{"id": id}
	}
	for k, v := range fields {
		row[k] = v
	}
	row["id"] = id

	if err := s.put(kind, id, row); err != nil {
		return nil, err
	}
	s.logf("Update %s %s", kind, id)
	return row, nil
}

func (s *Store) put(kind, id string, row map[string]interface{}) error {
	js, err := json.Marshal(&row)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(kind))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), js)
	})
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	s.logf("Delete %s %s", kind, id)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}
