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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(context.Background(), "testdata/catalog", nil, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close(context.Background())
	})
	return s
}

// post sends a JSON body and decodes the JSON response.
func post(t *testing.T, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	js, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(js))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var x map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&x); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, x
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(bs)
}

func TestHTTPRoundTrip(t *testing.T) {
	s := testService(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, x := post(t, ts.URL+"/api/activate", map[string]interface{}{
		"behavior": "std/Toggle",
		"subject":  "kitchen",
	})
	if status != http.StatusOK {
		t.Fatalf("activate: %d %v", status, x)
	}
	toggleID, _ := x["id"].(string)
	if toggleID == "" {
		t.Fatal(x)
	}

	status, x = post(t, ts.URL+"/api/activate", map[string]interface{}{
		"behavior": "std/Tally",
	})
	if status != http.StatusOK {
		t.Fatalf("activate: %d %v", status, x)
	}
	tallyID, _ := x["id"].(string)

	status, x = post(t, ts.URL+"/api/event", map[string]interface{}{
		"id":    toggleID,
		"event": "FLIP",
	})
	if status != http.StatusOK {
		t.Fatalf("event: %d %v", status, x)
	}
	hops, _ := x["hops"].([]interface{})
	if len(hops) != 1 {
		t.Fatalf("hops: %v", x)
	}
	hop := hops[0].(map[string]interface{})
	if hop["to"] != "On" || hop["matched"] != true {
		t.Fatalf("hop: %v", hop)
	}
	if emitted, _ := x["emitted"].([]interface{}); len(emitted) != 1 {
		t.Fatalf("emitted: %v", x)
	}

	// The tally heard the emitted TOGGLED.
	status, body := get(t, ts.URL+"/api/instances")
	if status != http.StatusOK {
		t.Fatal(status)
	}
	var snaps []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &snaps); err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("instances: %s", body)
	}
	for _, snap := range snaps {
		if snap["id"] != tallyID {
			continue
		}
		st := snap["state"].(map[string]interface{})
		entities := st["entities"].(map[string]interface{})
		tally := entities["tally"].(map[string]interface{})
		if tally["count"] != float64(1) {
			t.Fatalf("tally: %v", tally)
		}
	}

	status, x = post(t, ts.URL+"/api/deactivate", map[string]interface{}{"id": toggleID})
	if status != http.StatusOK {
		t.Fatalf("deactivate: %d %v", status, x)
	}
	_, body = get(t, ts.URL+"/api/instances")
	if strings.Contains(body, toggleID) {
		t.Fatalf("still live: %s", body)
	}
}

func TestHTTPActivateUnknown(t *testing.T) {
	s := testService(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, x := post(t, ts.URL+"/api/activate", map[string]interface{}{
		"behavior": "std/Togle",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("activate: %d %v", status, x)
	}
	msg, _ := x["error"].(string)
	if !strings.Contains(msg, "std/Toggle") {
		t.Fatalf("no suggestion in %q", msg)
	}
}

func TestHTTPBehaviors(t *testing.T) {
	s := testService(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/api/behaviors")
	if status != http.StatusOK {
		t.Fatal(status)
	}
	for _, want := range []string{"std/Tally", "std/Toggle", `"behaviors":2`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %s", want, body)
		}
	}
}

func TestHTTPBehaviorPage(t *testing.T) {
	s := testService(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/behaviors/Toggle.html")
	if status != http.StatusOK {
		t.Fatal(status)
	}
	for _, want := range []string{"<title>std/Toggle</title>", `<div class="mermaid">`, "FLIP"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q", want)
		}
	}

	if status, _ := get(t, ts.URL+"/behaviors/Nope.html"); status != http.StatusNotFound {
		t.Fatal(status)
	}
}

func TestHTTPMetrics(t *testing.T) {
	s := testService(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx := context.Background()
	id, err := s.Activate(ctx, "std/Toggle", "kitchen", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Dispatch(ctx, id, "FLIP", nil); err != nil {
		t.Fatal(err)
	}

	status, body := get(t, ts.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatal(status)
	}
	for _, want := range []string{
		`bearings_troupe_activations_total{behavior="std/Toggle"} 1`,
		`bearings_troupe_dispatches_total{behavior="std/Toggle",stopped="drained"} 1`,
		"bearings_troupe_instances 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %s", want, body)
		}
	}
}
