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

package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comcast/bearings/core"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	created, err := s.Create(ctx, "todo", map[string]interface{}{"title": "write tests"})
	require.NoError(t, err)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, "todo", id)
	require.NoError(t, err)
	assert.Equal(t, "write tests", got["title"])

	got, err = s.Get(ctx, "todo", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	updated, err := s.Update(ctx, "todo", id, map[string]interface{}{"done": true})
	require.NoError(t, err)
	assert.Equal(t, "write tests", updated["title"], "update merges")
	assert.Equal(t, true, updated["done"])

	// Update of an absent id inserts.
	upserted, err := s.Update(ctx, "todo", "t-9", map[string]interface{}{"title": "late"})
	require.NoError(t, err)
	assert.Equal(t, "t-9", upserted["id"])

	require.NoError(t, s.Delete(ctx, "todo", id))
	got, err = s.Get(ctx, "todo", id)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, "todo", id))
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewStore().Seed("todo",
		map[string]interface{}{"id": "a", "title": "one", "done": true},
		map[string]interface{}{"id": "b", "title": "two", "done": false},
		map[string]interface{}{"id": "c", "title": "three", "done": true},
	)
	rt := core.NewRuntime()

	all, err := s.List(ctx, "todo", nil, rt)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0]["id"], "sorted by id")

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

func TestStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore().Seed("todo", map[string]interface{}{"id": "a", "title": "one"})

	got, err := s.Get(ctx, "todo", "a")
	require.NoError(t, err)
	got["title"] = "mutated"

	again, err := s.Get(ctx, "todo", "a")
	require.NoError(t, err)
	assert.Equal(t, "one", again["title"], "callers can't alias store rows")
}
