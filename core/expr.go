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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Expr is a parsed guard or effect expression.
//
// The representation is a closed union: a Literal, a Ref, or a Call.
// Expressions arrive from catalogs in S-expression form: a list whose
// head is an operator name, with the remaining elements as arguments.
//
//	["=", "@entity.status", "open"]
//	["set", "@entity.count", ["+", "@entity.count", 1]]
//
// Parse builds an Expr from that JSON- or YAML-shaped data, and Print
// gives the data back.
type Expr interface {
	exprNode()
}

// Literal is a value that stands for itself.
//
// A map or slice Literal is a template: when evaluated, strings
// starting with "@" anywhere inside it are resolved as context
// references.  See Eval.
type Literal struct {
	Val interface{}
}

// Ref is a context reference such as "@entity.count" or
// "@payload.id".  Path does not include the leading "@".
//
// A Ref that doesn't resolve evaluates to Undefined rather than
// reporting an error.
type Ref struct {
	Path string
}

// Call applies the named operator to the given arguments.
type Call struct {
	Op   string
	Args []Expr
}

func (Literal) exprNode() {}
func (Ref) exprNode()     {}
func (Call) exprNode()    {}

// Parse builds an Expr from S-expression form.
//
// A string starting with "@" parses as a Ref.  A slice whose first
// element is a string parses as a Call; any other slice parses as a
// Literal.  Inside a Call, slice arguments parse as nested
// expressions, but map arguments parse as Literal templates.
//
// The binding forms "let" and "fn" get their binding lists checked
// and normalized here, so a malformed binding list is a parse error
// and not a runtime fault.
func Parse(x interface{}) (Expr, error) {
	switch v := x.(type) {
	case string:
		if strings.HasPrefix(v, "@") {
			if len(v) == 1 {
				return nil, errors.New("empty context reference")
			}
			return Ref{Path: v[1:]}, nil
		}
		return Literal{Val: v}, nil
	case []interface{}:
		if len(v) == 0 {
			return Literal{Val: v}, nil
		}
		op, is := v[0].(string)
		if !is {
			return Literal{Val: v}, nil
		}
		return parseCall(op, v[1:])
	default:
		return Literal{Val: x}, nil
	}
}

// ParseAll parses a list of expressions (typically an effect list).
func ParseAll(xs []interface{}) ([]Expr, error) {
	acc := make([]Expr, len(xs))
	for i, x := range xs {
		e, err := Parse(x)
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", i, err)
		}
		acc[i] = e
	}
	return acc, nil
}

// MustParse is Parse, which panics on error.  Handy for tests and
// examples.
func MustParse(x interface{}) Expr {
	e, err := Parse(x)
	if err != nil {
		panic(err)
	}
	return e
}

// MustParseJSON parses the given JSON representation of an
// expression, panicking on any error.  Also handy for tests and
// examples.
func MustParseJSON(js string) Expr {
	var x interface{}
	if err := json.Unmarshal([]byte(js), &x); err != nil {
		panic(err)
	}
	return MustParse(x)
}

func parseCall(op string, raw []interface{}) (Expr, error) {
	switch op {
	case "let":
		return parseLet(raw)
	case "fn":
		return parseFn(raw)
	}
	args := make([]Expr, len(raw))
	for i, x := range raw {
		arg, err := Parse(x)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return Call{Op: op, Args: args}, nil
}

// parseLet normalizes ["let", [n1, v1, n2, v2, ...], body...] into a
// Call whose first argument is a Literal holding the names in order,
// followed by the value expressions and then the body expressions.
func parseLet(raw []interface{}) (Expr, error) {
	if len(raw) < 2 {
		return nil, errors.New(`"let" needs a binding list and a body`)
	}
	pairs, is := raw[0].([]interface{})
	if !is {
		return nil, fmt.Errorf(`"let" bindings should be a list, not %T`, raw[0])
	}
	if len(pairs)%2 != 0 {
		return nil, errors.New(`"let" binding list has an odd length`)
	}
	names := make([]string, 0, len(pairs)/2)
	args := make([]Expr, 1, 1+len(pairs)/2+len(raw)-1)
	for i := 0; i < len(pairs); i += 2 {
		name, is := pairs[i].(string)
		if !is {
			return nil, fmt.Errorf(`"let" binding name should be a string, not %T`, pairs[i])
		}
		if name == "" || strings.HasPrefix(name, "@") {
			return nil, fmt.Errorf(`bad "let" binding name %#v`, pairs[i])
		}
		v, err := Parse(pairs[i+1])
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		args = append(args, v)
	}
	args[0] = Literal{Val: names}
	for _, x := range raw[1:] {
		b, err := Parse(x)
		if err != nil {
			return nil, err
		}
		args = append(args, b)
	}
	return Call{Op: "let", Args: args}, nil
}

// parseFn normalizes ["fn", [p1, p2, ...], body] into a Call whose
// first argument is a Literal holding the parameter names.
func parseFn(raw []interface{}) (Expr, error) {
	if len(raw) != 2 {
		return nil, errors.New(`"fn" needs a parameter list and one body expression`)
	}
	list, is := raw[0].([]interface{})
	if !is {
		return nil, fmt.Errorf(`"fn" parameters should be a list, not %T`, raw[0])
	}
	params := make([]string, len(list))
	for i, x := range list {
		p, is := x.(string)
		if !is || p == "" || strings.HasPrefix(p, "@") {
			return nil, fmt.Errorf(`bad "fn" parameter %#v`, x)
		}
		params[i] = p
	}
	body, err := Parse(raw[1])
	if err != nil {
		return nil, err
	}
	return Call{Op: "fn", Args: []Expr{Literal{Val: params}, body}}, nil
}

// Print converts an Expr back to its S-expression form.  Print is the
// inverse of Parse up to JSON canonicalization.
func Print(e Expr) interface{} {
	switch v := e.(type) {
	case Literal:
		return printLiteral(v.Val)
	case Ref:
		return "@" + v.Path
	case Call:
		switch v.Op {
		case "let":
			return printLet(v)
		case "fn":
			return printFn(v)
		}
		acc := make([]interface{}, 0, 1+len(v.Args))
		acc = append(acc, v.Op)
		for _, a := range v.Args {
			acc = append(acc, Print(a))
		}
		return acc
	}
	return nil
}

func printLiteral(x interface{}) interface{} {
	if names, is := x.([]string); is {
		acc := make([]interface{}, len(names))
		for i, n := range names {
			acc[i] = n
		}
		return acc
	}
	return x
}

func printLet(c Call) interface{} {
	names, _ := c.Args[0].(Literal).Val.([]string)
	n := len(names)
	pairs := make([]interface{}, 0, 2*n)
	for i, name := range names {
		pairs = append(pairs, name, Print(c.Args[1+i]))
	}
	acc := []interface{}{"let", pairs}
	for _, b := range c.Args[1+n:] {
		acc = append(acc, Print(b))
	}
	return acc
}

func printFn(c Call) interface{} {
	params, _ := c.Args[0].(Literal).Val.([]string)
	list := make([]interface{}, len(params))
	for i, p := range params {
		list[i] = p
	}
	return []interface{}{"fn", list, Print(c.Args[1])}
}

// Undefined is the value of a context reference that doesn't resolve.
//
// Undefined is falsy, coerces to zero or the empty string depending
// on the operator, and serializes as JSON null.  Comparing a value to
// Undefined is only true for Undefined itself.
var Undefined = &undefined{}

type undefined struct{}

func (u *undefined) String() string {
	return "undefined"
}

func (u *undefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IsUndefined reports whether x is the Undefined sentinel.
func IsUndefined(x interface{}) bool {
	return x == Undefined
}

// walkCalls calls f for every Call in e, including e itself.
func walkCalls(e Expr, f func(Call)) {
	c, is := e.(Call)
	if !is {
		return
	}
	f(c)
	for _, a := range c.Args {
		walkCalls(a, f)
	}
}
