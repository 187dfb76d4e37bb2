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

// Package ecmascript registers pure operators whose bodies are
// ECMAScript.
//
// A definition's source is the body of a function that receives the
// evaluated arguments as "args" and returns the operator's value.
// Values cross the boundary as JSON, so operator code can't alias
// engine state.
package ecmascript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Comcast/bearings/core"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned when operator code runs past the
	// provider's timeout.
	Interrupted = errors.New(InterruptedMessage)
)

// DefaultTimeout bounds one operator call unless the Provider says
// otherwise.
const DefaultTimeout = time.Second

// Def defines one operator.
type Def struct {
	// Name is what behaviors call.
	Name string

	// MinArity and MaxArity bound the argument count.  MaxArity -1
	// means variadic.
	MinArity int
	MaxArity int

	Doc string

	// Src is the body of a function (args) { ... }.
	Src string
}

// Provider compiles Defs into pure operators.
type Provider struct {
	// Timeout interrupts one operator call.  Zero means
	// DefaultTimeout.
	Timeout time.Duration
}

func NewProvider() *Provider {
	return &Provider{}
}

// Register compiles the definitions and adds them to the registry as
// pure operators, so guards can call them.
func (p *Provider) Register(ops *core.Ops, defs ...*Def) error {
	for _, def := range defs {
		op, err := p.compile(def)
		if err != nil {
			return err
		}
		if err = ops.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function (args) {\n%s\n})(_args);\n", src)
}

func (p *Provider) compile(def *Def) (*core.Op, error) {
	if def.Name == "" {
		return nil, errors.New("unnamed operator")
	}
	prog, err := goja.Compile(def.Name, wrapSrc(def.Src), true)
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
			return p.call(ctx, def.Name, prog, args)
		},
	}, nil
}

func (p *Provider) call(ctx context.Context, name string, prog *goja.Program, args []interface{}) (interface{}, error) {
	crossed, err := core.Canonicalize(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if crossed == nil {
		crossed = []interface{}{}
	}

	o := goja.New()
	o.Set("_args", crossed)

	timeout := DefaultTimeout
	if p != nil && 0 < p.Timeout {
		timeout = p.Timeout
	}
	ictx, cancel := context.WithTimeout(ctx, timeout)
	go func() {
		<-ictx.Done()
		// Harmless when the program already returned.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := run(o, prog)
	cancel()
	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if v == nil {
		return nil, nil
	}
	return core.Canonicalize(v.Export())
}

func run(o *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return o.RunProgram(p)
}
