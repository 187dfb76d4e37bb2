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

package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreForgets(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	created, err := s.Create(ctx, "todo", map[string]interface{}{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", created["id"])

	got, err := s.Get(ctx, "todo", "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	rows, err := s.List(ctx, "todo", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, s.Delete(ctx, "todo", "a"))
}
