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
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorhill/cronexpr"
)

// Lambda is the value of a "fn" expression: parameter names, a body,
// and the environment the expression closed over.
type Lambda struct {
	Params []string
	Body   Expr

	env *Env
}

// call applies the lambda.  Missing arguments bind as Undefined;
// extra arguments are dropped.
func (l *Lambda) call(ctx context.Context, args []interface{}) (interface{}, error) {
	env := l.env
	for i, p := range l.Params {
		var v interface{} = Undefined
		if i < len(args) {
			v = args[i]
		}
		env = env.push(p, v)
	}
	return Eval(ctx, l.Body, env)
}

// builtins returns the pure operators.  Guards may call any of
// these; none touches the world.
func builtins() []*Op {
	ops := []*Op{
		{Name: "=", MinArity: 2, MaxArity: -1, Pure: true,
			Doc:   "True when all arguments are structurally equal.",
			Apply: applyEq},
		{Name: "!=", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "True when the two arguments differ.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return !equalValues(args[0], args[1]), nil
			}},
		{Name: "not", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "Boolean negation (engine truthiness).",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return !Truthy(args[0]), nil
			}},

		orderingOp("<", func(a, b float64) bool { return a < b }),
		orderingOp("<=", func(a, b float64) bool { return a <= b }),
		orderingOp(">", func(a, b float64) bool { return a > b }),
		orderingOp(">=", func(a, b float64) bool { return a >= b }),

		{Name: "and", MinArity: 1, MaxArity: -1, Pure: true,
			Doc: "True when every argument is truthy.  Short-circuits.",
			Run: runAnd},
		{Name: "or", MinArity: 1, MaxArity: -1, Pure: true,
			Doc: "True when any argument is truthy.  Short-circuits.",
			Run: runOr},

		{Name: "if", MinArity: 2, MaxArity: 3, Pure: true,
			Doc: "Evaluate the second or third argument depending on the first.",
			Run: runIf},
		{Name: "when", MinArity: 2, MaxArity: -1, Pure: true,
			Doc: "When the first argument is truthy, evaluate the rest in order.",
			Run: runWhen},
		{Name: "do", MinArity: 1, MaxArity: -1, Pure: true,
			Doc: "Evaluate the arguments in order; give the last one.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return args[len(args)-1], nil
			}},
		{Name: "let", MinArity: 2, MaxArity: -1, Pure: true,
			Doc: "Bind names in order (later bindings see earlier ones), then evaluate the body.",
			Run: runLet},
		{Name: "fn", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "A function of the named parameters, closing over its environment.",
			Run: runFn},

		{Name: "+", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Numeric sum.  Undefined and null count as zero.",
			Apply: foldNum("+", func(a, b float64) (float64, error) { return a + b, nil })},
		{Name: "-", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Numeric difference, or negation with one argument.",
			Apply: applySub},
		{Name: "*", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Numeric product.",
			Apply: foldNum("*", func(a, b float64) (float64, error) { return a * b, nil })},
		{Name: "/", MinArity: 2, MaxArity: -1, Pure: true,
			Doc: "Numeric quotient.  Division by zero is a fault.",
			Apply: foldNum("/", func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, &BadOperand{Op: "/", Arg: b}
				}
				return a / b, nil
			})},
		{Name: "%", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "Numeric remainder.  A zero divisor is a fault.",
			Apply: foldNum("%", func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, &BadOperand{Op: "%", Arg: b}
				}
				return math.Mod(a, b), nil
			})},
		{Name: "min", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Smallest argument.",
			Apply: foldNum("min", func(a, b float64) (float64, error) { return math.Min(a, b), nil })},
		{Name: "max", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Largest argument.",
			Apply: foldNum("max", func(a, b float64) (float64, error) { return math.Max(a, b), nil })},
		numOp("abs", "Absolute value.", math.Abs),
		numOp("floor", "Round down.", math.Floor),
		numOp("ceil", "Round up.", math.Ceil),
		numOp("round", "Round to the nearest integer.", math.Round),

		{Name: "str/concat", MinArity: 0, MaxArity: -1, Pure: true,
			Doc: "Concatenate the arguments as text.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				var sb strings.Builder
				for _, x := range args {
					sb.WriteString(asText(x))
				}
				return sb.String(), nil
			}},
		strOp("str/upper", "Uppercase.", strings.ToUpper),
		strOp("str/lower", "Lowercase.", strings.ToLower),
		strOp("str/trim", "Trim surrounding whitespace.", strings.TrimSpace),
		{Name: "str/contains", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "True when the first string contains the second.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return strings.Contains(asText(args[0]), asText(args[1])), nil
			}},
		{Name: "str/split", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "Split the first string on the second.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				parts := strings.Split(asText(args[0]), asText(args[1]))
				acc := make([]interface{}, len(parts))
				for i, p := range parts {
					acc[i] = p
				}
				return acc, nil
			}},
		{Name: "str/join", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "Join a list as text with the given separator.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "str/join", Arg: args[0]}
				}
				parts := make([]string, len(items))
				for i, x := range items {
					parts[i] = asText(x)
				}
				return strings.Join(parts, asText(args[1])), nil
			}},

		{Name: "list", MinArity: 0, MaxArity: -1, Pure: true,
			Doc: "A list of the arguments.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				acc := make([]interface{}, len(args))
				copy(acc, args)
				return acc, nil
			}},
		{Name: "count", MinArity: 1, MaxArity: 1, Pure: true,
			Doc:   "Number of items in a list or map, or characters in a string.",
			Apply: applyCount},
		{Name: "get", MinArity: 2, MaxArity: 2, Pure: true,
			Doc:   "Member of a map by key or of a list by index; Undefined when absent.",
			Apply: applyGet},
		{Name: "first", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "First item of a list, or Undefined.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "first", Arg: args[0]}
				}
				if len(items) == 0 {
					return Undefined, nil
				}
				return items[0], nil
			}},
		{Name: "last", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "Last item of a list, or Undefined.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "last", Arg: args[0]}
				}
				if len(items) == 0 {
					return Undefined, nil
				}
				return items[len(items)-1], nil
			}},
		{Name: "append", MinArity: 2, MaxArity: -1, Pure: true,
			Doc: "A new list with the items added at the end.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "append", Arg: args[0]}
				}
				acc := make([]interface{}, 0, len(items)+len(args)-1)
				acc = append(acc, items...)
				acc = append(acc, args[1:]...)
				return acc, nil
			}},
		{Name: "includes", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "True when the list contains the value (structural equality).",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "includes", Arg: args[0]}
				}
				for _, x := range items {
					if equalValues(x, args[1]) {
						return true, nil
					}
				}
				return false, nil
			}},
		{Name: "sum", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "Numeric sum of a list.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				items, is := asItems(args[0])
				if !is {
					return nil, &BadOperand{Op: "sum", Arg: args[0]}
				}
				var total float64
				for _, x := range items {
					n, err := numOperand("sum", x)
					if err != nil {
						return nil, err
					}
					total += n
				}
				return total, nil
			}},
		{Name: "merge", MinArity: 1, MaxArity: -1, Pure: true,
			Doc:   "Merge maps left to right into a new map.  Null and Undefined arguments are skipped.",
			Apply: applyMerge},
		{Name: "keys", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "Sorted keys of a map.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				m, is := args[0].(map[string]interface{})
				if !is {
					if args[0] == nil || IsUndefined(args[0]) {
						return []interface{}{}, nil
					}
					return nil, &BadOperand{Op: "keys", Arg: args[0]}
				}
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				acc := make([]interface{}, len(keys))
				for i, k := range keys {
					acc[i] = k
				}
				return acc, nil
			}},
		{Name: "has", MinArity: 2, MaxArity: 2, Pure: true,
			Doc: "True when the map has the key.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				m, is := args[0].(map[string]interface{})
				if !is {
					if args[0] == nil || IsUndefined(args[0]) {
						return false, nil
					}
					return nil, &BadOperand{Op: "has", Arg: args[0]}
				}
				_, have := m[asText(args[1])]
				return have, nil
			}},

		{Name: "map", MinArity: 2, MaxArity: 2, Pure: true, AcceptsLambda: true,
			Doc:   "Apply a function to each item of a list.",
			Apply: applyMapOp},
		{Name: "filter", MinArity: 2, MaxArity: 2, Pure: true, AcceptsLambda: true,
			Doc:   "Keep the items a function is truthy for.",
			Apply: applyFilter},
		{Name: "find", MinArity: 2, MaxArity: 2, Pure: true, AcceptsLambda: true,
			Doc:   "First item a function is truthy for, or Undefined.",
			Apply: applyFind},

		{Name: "coalesce", MinArity: 1, MaxArity: -1, Pure: true,
			Doc: "First argument that is neither Undefined nor null.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				for _, x := range args {
					if x != nil && !IsUndefined(x) {
						return x, nil
					}
				}
				return Undefined, nil
			}},
		{Name: "defined", MinArity: 1, MaxArity: 1, Pure: true,
			Doc: "True unless the argument is Undefined.  Null counts as defined.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return !IsUndefined(args[0]), nil
			}},

		{Name: "time/now-ms", MinArity: 0, MaxArity: 0, Pure: true,
			Doc: "The current time in Unix milliseconds.",
			Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
				return float64(env.Runtime.now().UnixMilli()), nil
			}},
		{Name: "time/cron-next", MinArity: 1, MaxArity: 2, Pure: true,
			Doc:   "The next cron firing in Unix milliseconds, from now or from a given time.",
			Apply: applyCronNext},
	}
	return ops
}

func applyEq(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	for _, x := range args[1:] {
		if !equalValues(args[0], x) {
			return false, nil
		}
	}
	return true, nil
}

func orderingOp(name string, pass func(a, b float64) bool) *Op {
	return &Op{Name: name, MinArity: 2, MaxArity: 2, Pure: true,
		Doc: "Numeric ordering.  False unless both arguments are numbers.",
		Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
			a, isa := asNumber(args[0])
			b, isb := asNumber(args[1])
			if !isa || !isb {
				return false, nil
			}
			return pass(a, b), nil
		}}
}

func runAnd(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	for _, a := range args {
		v, err := Eval(ctx, a, env)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func runOr(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	for _, a := range args {
		v, err := Eval(ctx, a, env)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func runIf(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	v, err := Eval(ctx, args[0], env)
	if err != nil {
		return nil, err
	}
	if Truthy(v) {
		return Eval(ctx, args[1], env)
	}
	if len(args) == 3 {
		return Eval(ctx, args[2], env)
	}
	return Undefined, nil
}

func runWhen(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	v, err := Eval(ctx, args[0], env)
	if err != nil {
		return nil, err
	}
	if !Truthy(v) {
		return Undefined, nil
	}
	last := interface{}(Undefined)
	for _, a := range args[1:] {
		if last, err = Eval(ctx, a, env); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func runLet(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	lit, is := args[0].(Literal)
	if !is {
		return nil, &BadOperand{Op: "let", Arg: Print(args[0])}
	}
	names, is := lit.Val.([]string)
	if !is {
		return nil, &BadOperand{Op: "let", Arg: lit.Val}
	}
	n := len(names)
	if len(args) < n+2 {
		return nil, &BadArity{Op: "let", Want: "a body", Got: len(args)}
	}
	bound := env
	for i, name := range names {
		v, err := Eval(ctx, args[1+i], bound)
		if err != nil {
			return nil, err
		}
		bound = bound.push(name, v)
	}
	last := interface{}(Undefined)
	var err error
	for _, b := range args[1+n:] {
		if last, err = Eval(ctx, b, bound); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func runFn(ctx context.Context, env *Env, args []Expr) (interface{}, error) {
	lit, is := args[0].(Literal)
	if !is {
		return nil, &BadOperand{Op: "fn", Arg: Print(args[0])}
	}
	params, is := lit.Val.([]string)
	if !is {
		return nil, &BadOperand{Op: "fn", Arg: lit.Val}
	}
	return &Lambda{Params: params, Body: args[1], env: env}, nil
}

func foldNum(name string, step func(a, b float64) (float64, error)) func(context.Context, *Env, []interface{}) (interface{}, error) {
	return func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
		ns, err := numOperands(name, args)
		if err != nil {
			return nil, err
		}
		acc := ns[0]
		for _, n := range ns[1:] {
			if acc, err = step(acc, n); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

func applySub(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	ns, err := numOperands("-", args)
	if err != nil {
		return nil, err
	}
	if len(ns) == 1 {
		return -ns[0], nil
	}
	acc := ns[0]
	for _, n := range ns[1:] {
		acc -= n
	}
	return acc, nil
}

func numOp(name, doc string, f func(float64) float64) *Op {
	return &Op{Name: name, MinArity: 1, MaxArity: 1, Pure: true, Doc: doc,
		Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
			n, err := numOperand(name, args[0])
			if err != nil {
				return nil, err
			}
			return f(n), nil
		}}
}

func strOp(name, doc string, f func(string) string) *Op {
	return &Op{Name: name, MinArity: 1, MaxArity: 1, Pure: true, Doc: doc,
		Apply: func(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
			return f(asText(args[0])), nil
		}}
}

func applyCount(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case []interface{}:
		return float64(len(v)), nil
	case map[string]interface{}:
		return float64(len(v)), nil
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	}
	if args[0] == nil || IsUndefined(args[0]) {
		return float64(0), nil
	}
	return nil, &BadOperand{Op: "count", Arg: args[0]}
}

func applyGet(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case map[string]interface{}:
		x, have := v[asText(args[1])]
		if !have {
			return Undefined, nil
		}
		return x, nil
	case []interface{}:
		n, is := asNumber(args[1])
		if !is {
			return Undefined, nil
		}
		i := int(n)
		if i < 0 || len(v) <= i {
			return Undefined, nil
		}
		return v[i], nil
	}
	if args[0] == nil || IsUndefined(args[0]) {
		return Undefined, nil
	}
	return nil, &BadOperand{Op: "get", Arg: args[0]}
}

func applyMerge(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	acc := make(map[string]interface{})
	for _, x := range args {
		if x == nil || IsUndefined(x) {
			continue
		}
		m, is := x.(map[string]interface{})
		if !is {
			return nil, &BadOperand{Op: "merge", Arg: x}
		}
		for k, v := range m {
			acc[k] = v
		}
	}
	return acc, nil
}

func lambdaArg(op string, x interface{}) (*Lambda, error) {
	l, is := x.(*Lambda)
	if !is {
		return nil, &BadOperand{Op: op, Arg: x}
	}
	return l, nil
}

func applyMapOp(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	l, err := lambdaArg("map", args[0])
	if err != nil {
		return nil, err
	}
	items, is := asItems(args[1])
	if !is {
		return nil, &BadOperand{Op: "map", Arg: args[1]}
	}
	acc := make([]interface{}, len(items))
	for i, x := range items {
		v, err := l.call(ctx, []interface{}{x})
		if err != nil {
			return nil, err
		}
		acc[i] = v
	}
	return acc, nil
}

func applyFilter(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	l, err := lambdaArg("filter", args[0])
	if err != nil {
		return nil, err
	}
	items, is := asItems(args[1])
	if !is {
		return nil, &BadOperand{Op: "filter", Arg: args[1]}
	}
	acc := make([]interface{}, 0, len(items))
	for _, x := range items {
		v, err := l.call(ctx, []interface{}{x})
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			acc = append(acc, x)
		}
	}
	return acc, nil
}

func applyFind(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	l, err := lambdaArg("find", args[0])
	if err != nil {
		return nil, err
	}
	items, is := asItems(args[1])
	if !is {
		return nil, &BadOperand{Op: "find", Arg: args[1]}
	}
	for _, x := range items {
		v, err := l.call(ctx, []interface{}{x})
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return x, nil
		}
	}
	return Undefined, nil
}

func applyCronNext(ctx context.Context, env *Env, args []interface{}) (interface{}, error) {
	schedule, is := args[0].(string)
	if !is {
		return nil, &BadOperand{Op: "time/cron-next", Arg: args[0]}
	}
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, &BadOperand{Op: "time/cron-next", Arg: schedule}
	}
	// Cron schedules evaluate in UTC.
	from := env.Runtime.now().UTC()
	if 1 < len(args) {
		ms, err := numOperand("time/cron-next", args[1])
		if err != nil {
			return nil, err
		}
		from = time.UnixMilli(int64(ms)).UTC()
	}
	next := expr.Next(from)
	if next.IsZero() {
		return Undefined, nil
	}
	return float64(next.UnixMilli()), nil
}
