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

// Package exprlang registers pure operators defined as expr-lang
// expressions.
//
// A definition's source is one expression evaluated with the
// operator's arguments bound to "args".  Definitions compile once at
// registration; a bad expression never reaches a guard.
package exprlang

import (
	"context"
	"errors"
	"fmt"

	"github.com/Comcast/bearings/core"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Def defines one operator.
type Def struct {
	// Name is what behaviors call.
	Name string

	// MinArity and MaxArity bound the argument count.  MaxArity -1
	// means variadic.
	MinArity int
	MaxArity int

	Doc string

	// Src is an expr-lang expression over "args".
	Src string
}

// Register compiles the definitions and adds them to the registry as
// pure operators, so guards can call them.
func Register(ops *core.Ops, defs ...*Def) error {
	for _, def := range defs {
		op, err := compile(def)
		if err != nil {
			return err
		}
		if err = ops.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func compile(def *Def) (*core.Op, error) {
	if def.Name == "" {
		return nil, errors.New("unnamed operator")
	}
	prog, err := expr.Compile(def.Src,
		expr.Env(map[string]interface{}{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", def.Name, err)
	}
	return &core.Op{
		Name:     def.Name,
		MinArity: def.MinArity,
		MaxArity: def.MaxArity,
		Pure:     true,
		Doc:      def.Doc,
		Apply: func(ctx context.Context, _ *core.Env, args []interface{}) (interface{}, error) {
			return call(def.Name, prog, args)
		},
	}, nil
}

func call(name string, prog *vm.Program, args []interface{}) (interface{}, error) {
	// Crossing through JSON turns Undefined into null and keeps
	// operator code off engine state.
	crossed, err := core.Canonicalize(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if crossed == nil {
		crossed = []interface{}{}
	}

	v, err := expr.Run(prog, map[string]interface{}{"args": crossed})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return core.Canonicalize(v)
}
