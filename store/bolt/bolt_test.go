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

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comcast/bearings/core"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "entities.db"))
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() {
		if err := s.Close(context.Background()); err != nil {
			t.Error(err)
		}
	})
	return s
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	created, err := s.Create(ctx, "todo", map[string]interface{}{"title": "persist me"})
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, "todo", id)
	require.NoError(t, err)
	assert.Equal(t, "persist me", got["title"])

	got, err = s.Get(ctx, "todo", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	updated, err := s.Update(ctx, "todo", id, map[string]interface{}{"done": true})
	require.NoError(t, err)
	assert.Equal(t, "persist me", updated["title"])
	assert.Equal(t, true, updated["done"])

	upserted, err := s.Update(ctx, "todo", "t-9", map[string]interface{}{"title": "late"})
	require.NoError(t, err)
	assert.Equal(t, "t-9", upserted["id"])

	require.NoError(t, s.Delete(ctx, "todo", id))
	got, err = s.Get(ctx, "todo", id)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Absent kind and absent id are both fine.
	require.NoError(t, s.Delete(ctx, "widget", "w-1"))
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	rt := core.NewRuntime()

	for _, row := range []map[string]interface{}{
		{"id": "a", "title": "one", "done": true},
		{"id": "b", "title": "two", "done": false},
		{"id": "c", "title": "three", "done": true},
	} {
		_, err := s.Create(ctx, "todo", row)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "todo", nil, rt)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0]["id"])

	filter := core.MustParseJSON(`["=", "@entity.done", true]`)
	done, err := s.List(ctx, "todo", filter, rt)
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, "a", done[0]["id"])
	assert.Equal(t, "c", done[1]["id"])

	none, err := s.List(ctx, "missing", nil, rt)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "entities.db")

	s, err := NewStore(filename)
	require.NoError(t, err)
	require.NoError(t, s.Open(ctx))
	_, err = s.Create(ctx, "todo", map[string]interface{}{"id": "a", "title": "durable"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s, err = NewStore(filename)
	require.NoError(t, err)
	require.NoError(t, s.Open(ctx))
	defer s.Close(ctx)

	got, err := s.Get(ctx, "todo", "a")
	require.NoError(t, err)
	assert.Equal(t, "durable", got["title"])
}
