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

package tools

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var inlinePattern = regexp.MustCompile(`(?s)(.*?)(%inline *\("([^"]*)"\))`)

// Inline replaces '%inline("NAME")' with f(NAME).  Behavior files can
// share guard and effect fragments this way.
func Inline(bs []byte, f func(string) ([]byte, error)) ([]byte, error) {
	i := 0
	acc := make([]byte, 0, len(bs))
	for {
		part := inlinePattern.FindSubmatch(bs[i:])
		if part == nil {
			acc = append(acc, bs[i:]...)
			break
		}
		i += len(part[0])
		acc = append(acc, part[1]...)
		replacement, err := f(string(part[3]))
		if err != nil {
			return nil, err
		}
		acc = append(acc, replacement...)
	}

	return acc, nil
}

// ReadFileWithInlines is a replacement for os.ReadFile that adds
// Inline()ing relative to the file's directory.
//
// '%inline("NAME")' is replaced with the contents of NAME.
func ReadFileWithInlines(filename string) ([]byte, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(filename)
	f := func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	}

	return Inline(bs, f)
}

// ReadAllWithInlines is a replacement for io.ReadAll that adds
// Inline()ing relative to the given directory.
//
// '%inline("NAME")' is replaced with the contents of NAME.
func ReadAllWithInlines(in io.Reader, dir string) ([]byte, error) {
	bs, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	f := func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	}

	return Inline(bs, f)
}
