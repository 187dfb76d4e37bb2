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
	"sort"
	"strconv"
	"strings"
)

// Op is one operator in the expression language.
//
// A strict operator provides Apply and gets its arguments already
// evaluated.  An operator that controls evaluation of its own
// arguments ("if", "and", "let", ...) provides Run instead and gets
// them raw.
type Op struct {
	Name string

	// MinArity and MaxArity bound the argument count.  MaxArity -1
	// means variadic.
	MinArity int
	MaxArity int

	// Pure operators are the only ones guards may call.
	Pure bool

	// AcceptsLambda marks operators like "map" whose argument may
	// be a "fn" value.
	AcceptsLambda bool

	Doc string

	Apply func(ctx context.Context, env *Env, args []interface{}) (interface{}, error)
	Run   func(ctx context.Context, env *Env, args []Expr) (interface{}, error)
}

func (op *Op) checkArity(n int) error {
	if n < op.MinArity || (op.MaxArity != -1 && op.MaxArity < n) {
		return &BadArity{Op: op.Name, Want: op.wantArity(), Got: n}
	}
	return nil
}

func (op *Op) wantArity() string {
	switch {
	case op.MaxArity == -1:
		return "at least " + strconv.Itoa(op.MinArity)
	case op.MinArity == op.MaxArity:
		return strconv.Itoa(op.MinArity)
	}
	return strconv.Itoa(op.MinArity) + " to " + strconv.Itoa(op.MaxArity)
}

// Ops is an operator registry in two layers: pure operators, which
// guards and effects can both call, and effect operators, which only
// effects can call.
type Ops struct {
	pure map[string]*Op
	fx   map[string]*Op
}

// NewOps returns a registry with the standard operators: the pure
// builtins and the effect operators.
func NewOps() *Ops {
	o := &Ops{
		pure: make(map[string]*Op, 64),
		fx:   make(map[string]*Op, 16),
	}
	for _, op := range builtins() {
		o.mustRegister(op)
	}
	for _, op := range effectOps() {
		o.mustRegister(op)
	}
	return o
}

// standardOps backs runtimes constructed without a registry.
var standardOps *Ops

func init() {
	standardOps = NewOps()
}

// Register adds an operator.  Hosts use Register to extend the
// language; see the ecmascript and exprlang packages.
func (o *Ops) Register(op *Op) error {
	if op.Name == "" {
		return &BadName{Reason: "missing"}
	}
	if op.Apply == nil && op.Run == nil {
		return &UnknownOp{Op: op.Name}
	}
	if op.Pure {
		o.pure[op.Name] = op
	} else {
		o.fx[op.Name] = op
	}
	return nil
}

func (o *Ops) mustRegister(op *Op) {
	if err := o.Register(op); err != nil {
		panic(err)
	}
}

// find returns the operator and whether it lives in the effect layer.
func (o *Ops) find(name string) (*Op, bool) {
	if op, have := o.pure[name]; have {
		return op, false
	}
	if op, have := o.fx[name]; have {
		return op, true
	}
	return nil, false
}

// Names returns all registered operator names, effect operators
// included, sorted.
func (o *Ops) Names() []string {
	acc := make([]string, 0, len(o.pure)+len(o.fx))
	for name := range o.pure {
		acc = append(acc, name)
	}
	for name := range o.fx {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// IsEffectOp reports whether the named operator performs effects.
// The set is fixed so that static validation doesn't depend on a
// runtime's registry.
func IsEffectOp(name string) bool {
	switch name {
	case "set", "emit", "render", "render-ui", "notify", "persist", "navigate", "fetch":
		return true
	}
	return strings.HasPrefix(name, "async/")
}
