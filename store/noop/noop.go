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

// Package noop is an EntityStore that remembers nothing.  Useful for
// hosts that run behaviors with no persistence at all: persist
// effects succeed and vanish, fetch finds nothing.
package noop

import (
	"context"

	"github.com/Comcast/bearings/core"
)

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

var _ core.EntityStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, kind, id string) (map[string]interface{}, error) {
	return nil, nil
}

func (s *Store) List(ctx context.Context, kind string, filter core.Expr, rt *core.Runtime) ([]map[string]interface{}, error) {
	return nil, nil
}

func (s *Store) Create(ctx context.Context, kind string, fields map[string]interface{}) (map[string]interface{}, error) {
	return fields, nil
}

func (s *Store) Update(ctx context.Context, kind, id string, fields map[string]interface{}) (map[string]interface{}, error) {
	return fields, nil
}

func (s *Store) Delete(ctx context.Context, kind, id string) error {
	return nil
}
