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
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/registry"
	"github.com/Comcast/bearings/store/mem"
	"github.com/Comcast/bearings/troupe"
)

// Scenario is a scripted exchange with a troupe.
type Scenario struct {
	// Name also names the golden file, so keep it filename-safe.
	Name string

	Doc string

	// Behaviors is the catalog the scenario's registry is built
	// from.
	Behaviors []*core.Behavior

	// Store backs fetch and persist.  Nil means a fresh in-memory
	// store.
	Store core.EntityStore

	// Frame overrides the troupe's frame-tick interval.
	Frame time.Duration

	Cast  []Member
	Steps []Step
}

// Member is one instance in a scenario's cast.
type Member struct {
	// As is the name steps use to address the instance.  Empty
	// means the behavior name.
	As string

	Behavior string
	Subject  string
	Config   map[string]interface{}
}

// Step sends one event to a cast member and checks the aftermath.
// Zero-valued checks are skipped.
type Step struct {
	// Doc appears in failure messages.
	Doc string

	// To names the cast member; empty means the first one.
	To string

	// Send is the event key.  Empty sends nothing, making a step
	// that only settles and checks.
	Send    string
	Payload interface{}

	// Settle is how long to wait after the send, for scheduled
	// events to land.
	Settle time.Duration

	// WantState is the state the member must be in afterward.
	WantState string

	// WantFields maps "entity.field" paths to required values.
	// Numbers compare numerically.
	WantFields map[string]interface{}

	// WantEmits are the event keys the dispatch must have emitted,
	// in order.
	WantEmits []string
}

// Result is what running a scenario produced.
type Result struct {
	// Trace is every recorded effect, in order.
	Trace []Effect `json:"trace"`

	// Slots is the final slot state.
	Slots map[string]*Slot `json:"slots,omitempty"`

	// States maps cast names to final machine states.
	States map[string]string `json:"states"`

	// Failures are expectation misses, one line each.
	Failures []string `json:"failures,omitempty"`
}

func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

func (r *Result) failf(i int, step *Step, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if step.Doc != "" {
		msg = fmt.Sprintf("step %d (%s): %s", i, step.Doc, msg)
	} else {
		msg = fmt.Sprintf("step %d: %s", i, msg)
	}
	r.Failures = append(r.Failures, msg)
}

// Run executes the scenario on a fresh troupe.  A malformed scenario
// is an error; expectation misses land in Result.Failures.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	if len(s.Cast) == 0 {
		return nil, errors.New("empty cast")
	}

	bld := registry.NewBuilder()
	bld.Add(s.Behaviors...)
	reg := bld.Build()
	if rej := reg.Rejected(); 0 < len(rej) {
		names := make([]string, 0, len(rej))
		for name := range rej {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s (%s)", name, rej[name][0])
		}
		return nil, fmt.Errorf("behaviors rejected: %s", strings.Join(parts, "; "))
	}

	rt := core.NewRuntime()
	rec := NewRecorder()
	rt.Sinks = rec.Sinks()
	rt.Store = s.Store
	if rt.Store == nil {
		rt.Store = mem.NewStore()
	}

	tr := troupe.NewTroupe(reg, rt, &troupe.Options{Frame: s.Frame})
	defer tr.Shutdown()

	ids := make(map[string]string, len(s.Cast))
	first := ""
	for i, m := range s.Cast {
		name := m.As
		if name == "" {
			name = m.Behavior
		}
		if _, dup := ids[name]; dup {
			return nil, fmt.Errorf("cast name %q used twice", name)
		}
		id, err := tr.Activate(ctx, m.Behavior, m.Subject, m.Config)
		if err != nil {
			return nil, fmt.Errorf("activate %q: %w", name, err)
		}
		ids[name] = id
		if i == 0 {
			first = name
		}
	}

	res := &Result{States: make(map[string]string, len(ids))}
	for i := range s.Steps {
		step := &s.Steps[i]
		who := step.To
		if who == "" {
			who = first
		}
		id, have := ids[who]
		if !have {
			return nil, fmt.Errorf("step %d: no cast member %q", i, who)
		}

		var c *core.Cascade
		if step.Send != "" {
			var err error
			c, err = tr.Dispatch(ctx, id, step.Send, step.Payload)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			if c.Fault != nil {
				res.failf(i, step, "fault: %s", c.Err)
			}
		}
		if 0 < step.Settle {
			time.Sleep(step.Settle)
		}

		if step.WantState != "" || 0 < len(step.WantFields) {
			snap, have := tr.Snapshot(id)
			if !have {
				return nil, fmt.Errorf("step %d: instance %q is gone", i, who)
			}
			if step.WantState != "" && snap.State.Current != step.WantState {
				res.failf(i, step, "state %q, want %q", snap.State.Current, step.WantState)
			}
			paths := make([]string, 0, len(step.WantFields))
			for path := range step.WantFields {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				got := fieldAt(snap.State, path)
				if !equal(got, step.WantFields[path]) {
					res.failf(i, step, "%s = %v, want %v", path, got, step.WantFields[path])
				}
			}
		}

		if 0 < len(step.WantEmits) {
			var got []string
			if c != nil {
				for _, ev := range c.Emitted {
					got = append(got, ev.Key)
				}
			}
			if !reflect.DeepEqual(got, step.WantEmits) {
				res.failf(i, step, "emitted %v, want %v", got, step.WantEmits)
			}
		}
	}

	for name, id := range ids {
		if snap, have := tr.Snapshot(id); have {
			res.States[name] = snap.State.Current
		}
	}
	res.Trace = rec.Effects()
	res.Slots = rec.Slots()
	return res, nil
}

// fieldAt reads an "entity.field" path (possibly deeper) out of a
// state.  Missing paths give nil.
func fieldAt(st *core.State, path string) interface{} {
	parts := strings.Split(path, ".")
	fields, have := st.Entities[parts[0]]
	if !have {
		return nil
	}
	var x interface{} = fields
	for _, p := range parts[1:] {
		m, is := x.(map[string]interface{})
		if !is {
			return nil
		}
		x = m[p]
	}
	return x
}

// equal compares expectation values: numbers numerically, everything
// else structurally.
func equal(a, b interface{}) bool {
	if na, is := num(a); is {
		nb, is := num(b)
		return is && na == nb
	}
	return reflect.DeepEqual(a, b)
}

func num(x interface{}) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
