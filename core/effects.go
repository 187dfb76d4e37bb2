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

package core

import (
	"context"
	"time"
)

// Sinks are the host's side-effect surfaces.  The engine never
// renders, notifies, navigates, or sleeps itself; the corresponding
// effect operators route here.
//
// A nil Render, Notify, or Navigate sink drops those effects, which
// lets a headless host run behaviors that render.  A nil Timer sink
// faults the async operators, since behavior semantics depend on the
// scheduled events arriving.  A sink error is an engine fault.
type Sinks struct {
	Render   RenderSink
	Notify   NotifySink
	Navigate NavigateSink
	Timer    TimerSink
}

// RenderSink receives slot updates.
type RenderSink interface {
	// Render replaces the props of the named slot.  Nil props clear
	// the slot.
	Render(ctx context.Context, slot, component string, props map[string]interface{}) error
}

// NotifySink receives user-facing notifications.  Level is one of
// "success", "error", "info", or "warning".
type NotifySink interface {
	Notify(ctx context.Context, level, message string, action interface{}) error
}

// NavigateSink receives navigation requests.
type NavigateSink interface {
	Navigate(ctx context.Context, path string, params map[string]interface{}) error
}

// TimerSink schedules future events.  Ids are host-scoped; scheduling
// an id that's already scheduled replaces it.  Cancel of an unknown
// id is a no-op.
type TimerSink interface {
	Delay(ctx context.Context, id string, d time.Duration, ev Event) error
	Every(ctx context.Context, id string, d time.Duration, ev Event) error
	Cancel(ctx context.Context, id string) error
}

// EntityStore is durable entity storage for the "fetch" and "persist"
// operators.
//
// Get gives nil for an absent row.  Update inserts when the id is
// absent.  Delete of an absent row is a no-op.  List applies the
// filter to each row via MatchRow (a nil filter matches everything).
type EntityStore interface {
	Get(ctx context.Context, kind, id string) (map[string]interface{}, error)
	List(ctx context.Context, kind string, filter Expr, rt *Runtime) ([]map[string]interface{}, error)
	Create(ctx context.Context, kind string, fields map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, kind, id string, fields map[string]interface{}) (map[string]interface{}, error)
	Delete(ctx context.Context, kind, id string) error
}

func (rt *Runtime) sinks() Sinks {
	if rt == nil {
		return Sinks{}
	}
	return rt.Sinks
}

func (rt *Runtime) store() EntityStore {
	if rt == nil {
		return nil
	}
	return rt.Store
}

// effectOps returns the effect operators.  They live in the effect
// layer of the registry, out of reach of guards.
func effectOps() []*Op {
	return []*Op{
		{Name: "set", MinArity: 2, MaxArity: 2,
			Doc: "Write a value at an \"@entity\" path.",
			Run: runSet},
		{Name: "emit", MinArity: 1, MaxArity: 2,
			Doc:   "Emit an event, with an optional payload.",
			Apply: applyEmit},
		{Name: "render", MinArity: 2, MaxArity: 3,
			Doc:   "Replace a slot's component and props.  Omitted props clear the slot.",
			Apply: applyRender},
		{Name: "render-ui", MinArity: 2, MaxArity: 3,
			Doc:   "Alias of \"render\".",
			Apply: applyRender},
		{Name: "notify", MinArity: 2, MaxArity: 3,
			Doc:   "Send a user-facing notification: level, message, optional action.",
			Apply: applyNotify},
		{Name: "persist", MinArity: 2, MaxArity: 3,
			Doc:   "Write to the entity store: create, update, save, or delete.",
			Apply: applyPersist},
		{Name: "navigate", MinArity: 1, MaxArity: 2,
			Doc:   "Request navigation to a path, with optional params.",
			Apply: applyNavigate},
		{Name: "fetch", MinArity: 1, MaxArity: 2,
			Doc: "Read from the entity store into \"@data\", by id or by filter.",
			Run: runFetch},
		{Name: "async/delay", MinArity: 3, MaxArity: 4,
			Doc:   "Schedule an event once, after the given milliseconds.",
			Apply: applyDelay},
		{Name: "async/interval", MinArity: 3, MaxArity: 4,
			Doc:   "Schedule an event repeatedly, every given milliseconds.",
			Apply: applyInterval},
		{Name: "async/cancel", MinArity: 1, MaxArity: 1,
			Doc:   "Cancel a scheduled event by id.",
			Apply: applyCancel},
	}
}

func runSet(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	ref, is := args[0].(Ref)
	if !is {
		return nil, &BadOperand{Op: "set", Arg: Print(args[0])}
	}
	v, err := Eval(ctx, args[1], env)
	if err != nil {
		return nil, err
	}
	if err := env.setPath(ref.Path, v); err != nil {
		return nil, err
	}
	return v, nil
}

func applyEmit(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	key, is := args[0].(string)
	if !is || key == "" {
		return nil, &BadOperand{Op: "emit", Arg: args[0]}
	}
	var payload interface{}
	if 1 < len(args) {
		payload = args[1]
	}
	if env.emit == nil {
		return nil, &NoSink{Op: "emit", Sink: "emit"}
	}
	env.emit(Event{Key: key, Payload: payload})
	return nil, nil
}

func applyRender(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	slot := asText(args[0])
	component := asText(args[1])
	var props map[string]interface{}
	if 2 < len(args) && args[2] != nil && !IsUndefined(args[2]) {
		m, is := args[2].(map[string]interface{})
		if !is {
			return nil, &BadOperand{Op: "render", Arg: args[2]}
		}
		props = m
	}
	if sink := env.Runtime.sinks().Render; sink != nil {
		return nil, sink.Render(ctx, slot, component, props)
	}
	return nil, nil
}

func applyNotify(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	level := asText(args[0])
	switch level {
	case "success", "error", "info", "warning":
	default:
		return nil, &BadOperand{Op: "notify", Arg: args[0]}
	}
	message := asText(args[1])
	var action interface{}
	if 2 < len(args) {
		action = args[2]
	}
	if sink := env.Runtime.sinks().Notify; sink != nil {
		return nil, sink.Notify(ctx, level, message, action)
	}
	return nil, nil
}

func applyNavigate(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	path := asText(args[0])
	var params map[string]interface{}
	if 1 < len(args) && args[1] != nil && !IsUndefined(args[1]) {
		m, is := args[1].(map[string]interface{})
		if !is {
			return nil, &BadOperand{Op: "navigate", Arg: args[1]}
		}
		params = m
	}
	if sink := env.Runtime.sinks().Navigate; sink != nil {
		return nil, sink.Navigate(ctx, path, params)
	}
	return nil, nil
}

func applyPersist(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	action := asText(args[0])
	kind := asText(args[1])
	store := env.Runtime.store()
	if store == nil {
		return nil, &NoStore{Op: "persist"}
	}

	var fields map[string]interface{}
	var id string
	if 2 < len(args) {
		switch p := args[2].(type) {
		case map[string]interface{}:
			fields = p
		case string:
			id = p
		default:
			if p != nil && !IsUndefined(p) {
				return nil, &BadOperand{Op: "persist", Arg: args[2]}
			}
		}
	}
	if id == "" && fields != nil {
		if s, is := fields["id"].(string); is {
			id = s
		}
	}

	switch action {
	case "create":
		row, err := store.Create(ctx, kind, fields)
		if err != nil {
			return nil, err
		}
		env.Data[kind] = row
		return row, nil
	case "update":
		if id == "" {
			return nil, &BadOperand{Op: "persist", Arg: "update without an id"}
		}
		row, err := store.Update(ctx, kind, id, fields)
		if err != nil {
			return nil, err
		}
		env.Data[kind] = row
		return row, nil
	case "save":
		if id == "" {
			row, err := store.Create(ctx, kind, fields)
			if err != nil {
				return nil, err
			}
			env.Data[kind] = row
			return row, nil
		}
		row, err := store.Update(ctx, kind, id, fields)
		if err != nil {
			return nil, err
		}
		env.Data[kind] = row
		return row, nil
	case "delete":
		if id == "" {
			return nil, &BadOperand{Op: "persist", Arg: "delete without an id"}
		}
		return nil, store.Delete(ctx, kind, id)
	}
	return nil, &BadOperand{Op: "persist", Arg: args[0]}
}

// runFetch reads rows into "@data".  The second argument is a map
// template with "id" or "filter"; the filter is an unevaluated
// expression applied to each row.
func runFetch(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	kindV, err := Eval(ctx, args[0], env)
	if err != nil {
		return nil, err
	}
	kind := asText(kindV)
	store := env.Runtime.store()
	if store == nil {
		return nil, &NoStore{Op: "fetch"}
	}

	if len(args) == 1 {
		return fetchList(ctx, env, store, kind, nil)
	}

	lit, is := args[1].(Literal)
	if !is {
		return nil, &BadOperand{Op: "fetch", Arg: Print(args[1])}
	}
	opts, is := lit.Val.(map[string]interface{})
	if !is {
		return nil, &BadOperand{Op: "fetch", Arg: lit.Val}
	}

	if raw, have := opts["id"]; have {
		idV, err := evalTemplate(raw, env)
		if err != nil {
			return nil, err
		}
		row, err := store.Get(ctx, kind, asText(idV))
		if err != nil {
			return nil, err
		}
		if row == nil {
			env.Data[kind] = Undefined
			return Undefined, nil
		}
		env.Data[kind] = row
		return row, nil
	}

	var filter Expr
	if raw, have := opts["filter"]; have {
		if filter, err = Parse(raw); err != nil {
			return nil, &BadOperand{Op: "fetch", Arg: raw}
		}
	}
	return fetchList(ctx, env, store, kind, filter)
}

func fetchList(ctx context.Context, env *Env, store EntityStore, kind string, filter Expr) (interface{}, error) {
	rows, err := store.List(ctx, kind, filter, env.Runtime)
	if err != nil {
		return nil, err
	}
	acc := make([]interface{}, len(rows))
	for i, row := range rows {
		acc[i] = row
	}
	env.Data[kind] = acc
	return acc, nil
}

func timerArgs(op string, args []interface{}) (string, time.Duration, Event, error) {
	id := asText(args[0])
	ms, err := numOperand(op, args[1])
	if err != nil {
		return "", 0, Event{}, err
	}
	if ms < 0 {
		return "", 0, Event{}, &BadOperand{Op: op, Arg: args[1]}
	}
	key, is := args[2].(string)
	if !is || key == "" {
		return "", 0, Event{}, &BadOperand{Op: op, Arg: args[2]}
	}
	ev := Event{Key: key}
	if 3 < len(args) {
		ev.Payload = args[3]
	}
	return id, time.Duration(ms * float64(time.Millisecond)), ev, nil
}

func applyDelay(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	sink := env.Runtime.sinks().Timer
	if sink == nil {
		return nil, &NoSink{Op: "async/delay", Sink: "timer"}
	}
	id, d, ev, err := timerArgs("async/delay", args)
	if err != nil {
		return nil, err
	}
	return nil, sink.Delay(ctx, id, d, ev)
}

func applyInterval(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	sink := env.Runtime.sinks().Timer
	if sink == nil {
		return nil, &NoSink{Op: "async/interval", Sink: "timer"}
	}
	id, d, ev, err := timerArgs("async/interval", args)
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, &BadOperand{Op: "async/interval", Arg: args[1]}
	}
	return nil, sink.Every(ctx, id, d, ev)
}

func applyCancel(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	sink := env.Runtime.sinks().Timer
	if sink == nil {
		return nil, &NoSink{Op: "async/cancel", Sink: "timer"}
	}
	return nil, sink.Cancel(ctx, asText(args[0]))
}
