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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Comcast/bearings/catalog"
	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/tools"
)

// loadFile reads one behavior file, expanding %inline directives
// before decoding.
func loadFile(filename string) (*core.Behavior, error) {
	bs, err := tools.ReadFileWithInlines(filename)
	if err != nil {
		return nil, err
	}
	var b *core.Behavior
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		b, err = catalog.DecodeJSON(bs)
	default:
		b, err = catalog.DecodeYAML(bs)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %s", filename, err)
	}
	return b, nil
}

// loadPath loads a behavior file or every behavior file in a
// directory (not recursive).
func loadPath(path string) ([]*core.Behavior, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		b, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return []*core.Behavior{b}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	bs := make([]*core.Behavior, 0, len(names))
	for _, name := range names {
		b, err := loadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		bs = append(bs, b)
	}
	return bs, nil
}

// loadPaths loads several files or directories into one list.
func loadPaths(paths []string) ([]*core.Behavior, error) {
	var acc []*core.Behavior
	for _, path := range paths {
		bs, err := loadPath(path)
		if err != nil {
			return nil, err
		}
		acc = append(acc, bs...)
	}
	return acc, nil
}
