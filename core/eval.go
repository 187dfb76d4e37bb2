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
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Env is the environment an expression evaluates in: the instance
// state, the activation config, the triggering event's payload, data
// fetched during the current hop, and any "let" or "fn" locals.
//
// Envs are cheap to copy; lexical scoping copies them.
type Env struct {
	Runtime *Runtime
	State   *State

	Config  map[string]interface{}
	Payload interface{}

	// Data holds results of "fetch", keyed by entity kind.  Fresh
	// for each hop.
	Data map[string]interface{}

	// Primary is the entity name that bare "@entity.field" paths
	// resolve against.
	Primary string

	emit   func(Event)
	guard  bool
	locals *scope
}

type scope struct {
	name string
	val  interface{}
	next *scope
}

// push returns a copy of the environment with one more local binding.
func (env *Env) push(name string, val interface{}) *Env {
	bound := *env
	bound.locals = &scope{name: name, val: val, next: env.locals}
	return &bound
}

func (env *Env) local(name string) (interface{}, bool) {
	for s := env.locals; s != nil; s = s.next {
		if s.name == name {
			return s.val, true
		}
	}
	return nil, false
}

func (b *Behavior) newEnv(st *State, payload interface{}, rt *Runtime) *Env {
	return &Env{
		Runtime: rt,
		State:   st,
		Config:  st.Config,
		Payload: payload,
		Data:    make(map[string]interface{}),
		Primary: b.Primary(),
	}
}

// GuardEnv returns an evaluation environment with effect operators
// disabled.  Calling an effect operator under this environment is an
// EffectInGuard fault.
func (b *Behavior) GuardEnv(st *State, payload interface{}, rt *Runtime) *Env {
	env := b.newEnv(st, payload, rt)
	env.guard = true
	return env
}

// Resolve resolves a context reference path (without its leading "@").
//
// The roots are "state", "entity", "config", "payload", "data",
// "now", and any local bound by "let" or "fn".  Resolution is total:
// a path that doesn't resolve gives Undefined.
//
// "@entity.X" reads field X of the primary entity unless X names a
// declared entity, in which case the remaining path reads that
// entity's fields.  Path steps descend maps only; use "get" to index
// into lists.
func (env *Env) Resolve(path string) interface{} {
	parts := strings.Split(path, ".")
	head, rest := parts[0], parts[1:]
	if v, have := env.local(head); have {
		return dig(v, rest)
	}
	switch head {
	case "state":
		if env.State == nil || 0 < len(rest) {
			return Undefined
		}
		return env.State.Current
	case "now":
		if 0 < len(rest) {
			return Undefined
		}
		return env.Runtime.now().UTC().Format(time.RFC3339Nano)
	case "config":
		return dig(env.Config, rest)
	case "payload":
		return dig(env.Payload, rest)
	case "data":
		return dig(env.Data, rest)
	case "entity":
		return env.resolveEntity(rest)
	}
	return Undefined
}

func (env *Env) resolveEntity(rest []string) interface{} {
	if env.State == nil {
		return Undefined
	}
	if len(rest) == 0 {
		if fields, have := env.State.Entities[env.Primary]; have {
			return fields
		}
		return Undefined
	}
	if fields, have := env.State.Entities[rest[0]]; have {
		return dig(fields, rest[1:])
	}
	if fields, have := env.State.Entities[env.Primary]; have {
		return dig(fields, rest)
	}
	return Undefined
}

// dig walks the path through nested maps.  Anything else along the
// way gives Undefined.
func dig(x interface{}, path []string) interface{} {
	for _, p := range path {
		m, is := x.(map[string]interface{})
		if !is {
			return Undefined
		}
		v, have := m[p]
		if !have {
			return Undefined
		}
		x = v
	}
	return x
}

// setPath writes a value at an "entity" path, creating intermediate
// maps as needed.  The entity itself must be declared.
func (env *Env) setPath(path string, val interface{}) error {
	parts := strings.Split(path, ".")
	if parts[0] != "entity" || len(parts) < 2 {
		return &BadOperand{Op: "set", Arg: "@" + path}
	}
	rest := parts[1:]
	fields, have := env.State.Entities[rest[0]]
	if have && 1 < len(rest) {
		rest = rest[1:]
	} else if fields, have = env.State.Entities[env.Primary]; !have {
		return &BadOperand{Op: "set", Arg: "@" + path}
	}
	for len(rest) > 1 {
		next, have := fields[rest[0]].(map[string]interface{})
		if !have {
			next = make(map[string]interface{})
			fields[rest[0]] = next
		}
		fields = next
		rest = rest[1:]
	}
	fields[rest[0]] = val
	return nil
}

// Eval evaluates a parsed expression.
//
// A Literal map or slice is a template: strings starting with "@"
// anywhere inside it resolve as context references.  A Ref resolves
// via Env.Resolve.  A Call looks its operator up in the runtime's
// registry; in a guard environment, effect operators are refused.
func Eval(ctx context.Context, e Expr, env *Env) (interface{}, error) {
	switch v := e.(type) {
	case Literal:
		return evalTemplate(v.Val, env)
	case Ref:
		return env.Resolve(v.Path), nil
	case Call:
		return evalCall(ctx, v, env)
	}
	return nil, &BadOperand{Op: "eval", Arg: e}
}

func evalCall(ctx context.Context, c Call, env *Env) (interface{}, error) {
	op, effect := env.Runtime.ops().find(c.Op)
	if op == nil {
		return nil, &UnknownOp{Op: c.Op}
	}
	if effect && env.guard {
		return nil, &EffectInGuard{Op: c.Op}
	}
	if err := op.checkArity(len(c.Args)); err != nil {
		return nil, err
	}
	if op.Run != nil {
		return op.Run(ctx, env, c.Args)
	}
	args := make([]interface{}, len(c.Args))
	for i, a := range c.Args {
		v, err := Eval(ctx, a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return op.Apply(ctx, env, args)
}

func evalTemplate(x interface{}, env *Env) (interface{}, error) {
	switch v := x.(type) {
	case string:
		if strings.HasPrefix(v, "@") && 1 < len(v) {
			return env.Resolve(v[1:]), nil
		}
		return v, nil
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(v))
		for k, raw := range v {
			y, err := evalTemplate(raw, env)
			if err != nil {
				return nil, err
			}
			acc[k] = y
		}
		return acc, nil
	case []interface{}:
		acc := make([]interface{}, len(v))
		for i, raw := range v {
			y, err := evalTemplate(raw, env)
			if err != nil {
				return nil, err
			}
			acc[i] = y
		}
		return acc, nil
	}
	return x, nil
}

// MatchRow reports whether the filter is truthy for the given entity
// row.  The row binds as the primary entity, so filters read fields
// as "@entity.field".  Evaluation is in guard mode.  A nil filter
// matches everything.
func MatchRow(ctx context.Context, filter Expr, row map[string]interface{}, rt *Runtime) (bool, error) {
	if filter == nil {
		return true, nil
	}
	env := &Env{
		Runtime: rt,
		State: &State{
			Entities: map[string]map[string]interface{}{"entity": row},
		},
		Primary: "entity",
		guard:   true,
	}
	v, err := Eval(ctx, filter, env)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Truthy is the engine's boolean coercion: false, Undefined, null,
// zero, the empty string, and empty collections are falsy; everything
// else is truthy.
func Truthy(x interface{}) bool {
	if x == nil || IsUndefined(x) {
		return false
	}
	switch v := x.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case []interface{}:
		return 0 < len(v)
	case map[string]interface{}:
		return 0 < len(v)
	}
	if n, is := asNumber(x); is {
		return n != 0
	}
	return true
}

// asNumber reports x as a float64 when x is any numeric type.
func asNumber(x interface{}) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// numOperand coerces one arithmetic operand: numbers pass through,
// Undefined and null count as zero, and anything else is a
// BadOperand fault.
func numOperand(op string, x interface{}) (float64, error) {
	if x == nil || IsUndefined(x) {
		return 0, nil
	}
	if n, is := asNumber(x); is {
		return n, nil
	}
	return 0, &BadOperand{Op: op, Arg: x}
}

func numOperands(op string, args []interface{}) ([]float64, error) {
	acc := make([]float64, len(args))
	for i, x := range args {
		n, err := numOperand(op, x)
		if err != nil {
			return nil, err
		}
		acc[i] = n
	}
	return acc, nil
}

// asText coerces a value for the string operators: Undefined and null
// give "", numbers and booleans format themselves, and anything else
// serializes as JSON.
func asText(x interface{}) string {
	if x == nil || IsUndefined(x) {
		return ""
	}
	switch v := x.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if n, is := asNumber(x); is {
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	bs, err := json.Marshal(x)
	if err != nil {
		return ""
	}
	return string(bs)
}

// asItems coerces a value for the collection operators: a list passes
// through, and Undefined and null give an empty list.  Anything else
// doesn't coerce.
func asItems(x interface{}) ([]interface{}, bool) {
	if x == nil || IsUndefined(x) {
		return nil, true
	}
	items, is := x.([]interface{})
	return items, is
}

// equalValues is the engine's structural equality.  Numbers compare
// numerically across numeric types; lists and maps compare
// element-wise; Undefined equals only Undefined, and null equals only
// null.
func equalValues(a, b interface{}) bool {
	if IsUndefined(a) || IsUndefined(b) {
		return IsUndefined(a) && IsUndefined(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, is := asNumber(a); is {
		nb, is := asNumber(b)
		return is && na == nb
	}
	switch va := a.(type) {
	case string:
		vb, is := b.(string)
		return is && va == vb
	case bool:
		vb, is := b.(bool)
		return is && va == vb
	case []interface{}:
		vb, is := b.([]interface{})
		if !is || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !equalValues(va[i], vb[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		vb, is := b.(map[string]interface{})
		if !is || len(va) != len(vb) {
			return false
		}
		for k, x := range va {
			y, have := vb[k]
			if !have || !equalValues(x, y) {
				return false
			}
		}
		return true
	}
	return a == b
}
