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

package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Golden runs the scenario and compares its trace against
// testdata/golden/<Name>.golden.  Expectation failures fail the test
// too.  Run with -update to rewrite the golden files.
//
// Scenarios under Golden should avoid interval ticks; their effect
// counts depend on timing.
func Golden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	res, err := Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range res.Failures {
		t.Error(f)
	}

	doc := struct {
		Scenario string            `json:"scenario"`
		Trace    []Effect          `json:"trace"`
		States   map[string]string `json:"states"`
	}{
		Scenario: s.Name,
		Trace:    res.Trace,
		States:   res.States,
	}
	js, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, s.Name, js)

	return res
}
