/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Comcast/bearings/troupe"
)

var snapshotBucket = []byte("instances")

// SnapshotStore persists instance snapshots so a restarted daemon can
// restore its troupe.  A nil SnapshotStore is a no-op, which is how a
// daemon without -d runs.
type SnapshotStore struct {
	filename string
	db       *bolt.DB
}

func NewSnapshotStore(filename string) *SnapshotStore {
	if filename == "" {
		return nil
	}
	return &SnapshotStore{filename: filename}
}

func (s *SnapshotStore) Open(ctx context.Context) error {
	if s == nil {
		return nil
	}
	db, err := bolt.Open(s.filename, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *SnapshotStore) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SnapshotStore) Put(ctx context.Context, snap *troupe.Snapshot) error {
	if s == nil {
		return nil
	}
	js, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(snapshotBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(snap.ID), js)
	})
}

func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(snapshotBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

func (s *SnapshotStore) All(ctx context.Context) ([]*troupe.Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	var snaps []*troupe.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(snapshotBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var snap troupe.Snapshot
			if err := json.Unmarshal(bs, &snap); err != nil {
				return err
			}
			snaps = append(snaps, &snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
