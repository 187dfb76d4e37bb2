package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// evalFixture makes a behavior, a state with some entity data, and a
// runtime with a frozen clock.
func evalFixture() (*Behavior, *State, *Runtime) {
	b := &Behavior{
		Name:     "std/Session",
		Category: "data",
		Entities: []*DataEntity{
			{
				Name: "session",
				Fields: []*FieldSpec{
					{Name: "score", Type: "number", Default: float64(0)},
					{Name: "tags", Type: "array"},
					{Name: "player", Type: "object"},
				},
			},
		},
		Machine: &Machine{
			Initial: "Idle",
			States:  []*StateSpec{{Name: "Idle"}},
		},
	}
	st := b.NewState(map[string]interface{}{
		"limit": float64(3),
	})
	st.Entities["session"]["score"] = float64(10)
	st.Entities["session"]["tags"] = []interface{}{"a", "b"}
	st.Entities["session"]["player"] = map[string]interface{}{"name": "pat"}

	rt := NewRuntime()
	rt.Now = func() time.Time {
		return time.UnixMilli(1700000000000).UTC()
	}
	return b, st, rt
}

func TestEval(t *testing.T) {
	b, st, rt := evalFixture()
	payload := map[string]interface{}{
		"delta": float64(2),
		"id":    "t1",
	}
	env := b.GuardEnv(st, payload, rt)
	ctx := context.Background()

	for _, tc := range []struct {
		expr string
		want string
	}{
		{`5`, `5`},
		{`"plain"`, `"plain"`},
		{`"@entity.score"`, `10`},
		{`"@entity.session.score"`, `10`},
		{`"@entity.missing"`, `null`},
		{`"@entity.player.name"`, `"pat"`},
		{`"@config.limit"`, `3`},
		{`"@payload.delta"`, `2`},
		{`"@state"`, `"Idle"`},
		{`"@nope.x"`, `null`},

		{`["+", "@entity.score", "@payload.delta"]`, `12`},
		{`["+", "@entity.missing", 5]`, `5`},
		{`["-", 10, 1, 2]`, `7`},
		{`["-", 3]`, `-3`},
		{`["*", 2, 3, 4]`, `24`},
		{`["/", 10, 4]`, `2.5`},
		{`["%", 10, 3]`, `1`},
		{`["min", 3, 1, 2]`, `1`},
		{`["max", 3, 1, 2]`, `3`},
		{`["abs", -2]`, `2`},
		{`["floor", 2.7]`, `2`},
		{`["ceil", 2.1]`, `3`},
		{`["round", 2.5]`, `3`},

		{`["=", "@entity.score", 10]`, `true`},
		{`["=", 1, 1, 2]`, `false`},
		{`["!=", 1, 2]`, `true`},
		{`["=", ["list", 1, 2], ["list", 1, 2]]`, `true`},
		{`["<", 1, 2]`, `true`},
		{`["<", "a", "b"]`, `false`},
		{`["<=", 2, 2]`, `true`},
		{`[">", "@entity.missing", 0]`, `false`},
		{`["not", "@entity.missing"]`, `true`},

		{`["and", true, ["=", 1, 1]]`, `true`},
		{`["and", false, ["/", 1, 0]]`, `false`},
		{`["or", true, ["/", 1, 0]]`, `true`},
		{`["or", false, false]`, `false`},

		{`["if", ["<", "@entity.score", 100], "low", "high"]`, `"low"`},
		{`["if", false, "then"]`, `null`},
		{`["if", false, ["/", 1, 0], "ok"]`, `"ok"`},
		{`["when", true, 1, 2]`, `2`},
		{`["when", false, 1, 2]`, `null`},
		{`["do", 1, 2, 3]`, `3`},

		{`["let", ["x", 2, "y", ["+", "@x", 3]], ["*", "@x", "@y"]]`, `10`},
		{`["let", ["score", 1], ["+", "@score", "@entity.score"]]`, `11`},

		{`["map", ["fn", ["s"], ["str/upper", "@s"]], "@entity.tags"]`, `["A","B"]`},
		{`["filter", ["fn", ["n"], [">", "@n", 1]], ["list", 1, 2, 3]]`, `[2,3]`},
		{`["find", ["fn", ["n"], [">", "@n", 1]], ["list", 1, 2, 3]]`, `2`},
		{`["find", ["fn", ["n"], [">", "@n", 9]], ["list", 1]]`, `null`},
		{`["let", ["base", 10], ["map", ["fn", ["n"], ["+", "@n", "@base"]], ["list", 1, 2]]]`, `[11,12]`},

		{`["str/concat", "score: ", "@entity.score"]`, `"score: 10"`},
		{`["str/upper", "abc"]`, `"ABC"`},
		{`["str/lower", "ABC"]`, `"abc"`},
		{`["str/trim", "  x  "]`, `"x"`},
		{`["str/contains", "hello", "ell"]`, `true`},
		{`["str/split", "a-b-c", "-"]`, `["a","b","c"]`},
		{`["str/join", ["list", "a", "b"], "-"]`, `"a-b"`},
		{`["str/concat", "@entity.missing"]`, `""`},

		{`["list", 1, "two"]`, `[1,"two"]`},
		{`["count", "@entity.tags"]`, `2`},
		{`["count", "@entity.missing"]`, `0`},
		{`["count", "héllo"]`, `5`},
		{`["get", "@entity.player", "name"]`, `"pat"`},
		{`["get", "@entity.tags", 1]`, `"b"`},
		{`["get", "@entity.tags", 9]`, `null`},
		{`["first", "@entity.tags"]`, `"a"`},
		{`["last", "@entity.tags"]`, `"b"`},
		{`["first", ["list"]]`, `null`},
		{`["append", "@entity.tags", "c"]`, `["a","b","c"]`},
		{`["includes", "@entity.tags", "b"]`, `true`},
		{`["includes", "@entity.missing", "b"]`, `false`},
		{`["sum", ["list", 1, 2, 3]]`, `6`},
		{`["merge", {"a": 1}, {"b": "@entity.score"}]`, `{"a":1,"b":10}`},
		{`["keys", {"b": 1, "a": 2}]`, `["a","b"]`},
		{`["has", "@entity.player", "name"]`, `true`},
		{`["has", "@entity.player", "rank"]`, `false`},

		{`["coalesce", "@entity.missing", null, "fallback"]`, `"fallback"`},
		{`["coalesce", 0, 1]`, `0`},
		{`["defined", "@entity.missing"]`, `false`},
		{`["defined", "@entity.score"]`, `true`},
		{`["defined", null]`, `true`},

		{`["time/now-ms"]`, `1700000000000`},
		{`["time/cron-next", "0 0 * * *", 1700000000000]`, `1700006400000`},

		{`{"who": "@entity.player.name", "raw": ["+", 1, 2]}`,
			`{"raw":["+",1,2],"who":"pat"}`},
	} {
		var raw interface{}
		if err := json.Unmarshal([]byte(tc.expr), &raw); err != nil {
			t.Fatal(err)
		}
		e, err := Parse(raw)
		if err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		got, err := Eval(ctx, e, env)
		if err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		js, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		var want interface{}
		if err := json.Unmarshal([]byte(tc.want), &want); err != nil {
			t.Fatal(err)
		}
		var have interface{}
		if err := json.Unmarshal(js, &have); err != nil {
			t.Fatal(err)
		}
		if !equalValues(have, want) {
			t.Fatalf("%s gave %s; want %s", tc.expr, js, tc.want)
		}
	}
}

func TestEvalFaults(t *testing.T) {
	b, st, rt := evalFixture()
	env := b.GuardEnv(st, nil, rt)
	ctx := context.Background()

	t.Run("unknownOp", func(t *testing.T) {
		_, err := Eval(ctx, MustParseJSON(`["frobnicate", 1]`), env)
		var unknown *UnknownOp
		if !errors.As(err, &unknown) {
			t.Fatalf("got %v", err)
		}
		if unknown.Op != "frobnicate" {
			t.Fatal(unknown.Op)
		}
	})

	t.Run("badArity", func(t *testing.T) {
		_, err := Eval(ctx, MustParseJSON(`["not"]`), env)
		var bad *BadArity
		if !errors.As(err, &bad) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("divByZero", func(t *testing.T) {
		_, err := Eval(ctx, MustParseJSON(`["/", 1, 0]`), env)
		var bad *BadOperand
		if !errors.As(err, &bad) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("arithmeticOnString", func(t *testing.T) {
		_, err := Eval(ctx, MustParseJSON(`["+", 1, "two"]`), env)
		var bad *BadOperand
		if !errors.As(err, &bad) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("effectInGuard", func(t *testing.T) {
		for _, js := range []string{
			`["set", "@entity.score", 1]`,
			`["emit", "PING"]`,
			`["if", true, ["emit", "PING"]]`,
		} {
			_, err := Eval(ctx, MustParseJSON(js), env)
			var impure *EffectInGuard
			if !errors.As(err, &impure) {
				t.Fatalf("%s gave %v", js, err)
			}
		}
	})
}

func TestResolveNow(t *testing.T) {
	b, st, rt := evalFixture()
	env := b.GuardEnv(st, nil, rt)
	v, err := Eval(context.Background(), MustParseJSON(`"@now"`), env)
	if err != nil {
		t.Fatal(err)
	}
	s, is := v.(string)
	if !is {
		t.Fatalf("got %#v", v)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatal(err)
	}
	if ts.UnixMilli() != 1700000000000 {
		t.Fatal(s)
	}
}

func TestMatchRow(t *testing.T) {
	rt := NewRuntime()
	row := map[string]interface{}{
		"status": "open",
		"n":      float64(4),
	}
	ctx := context.Background()

	ok, err := MatchRow(ctx, MustParseJSON(`["=", "@entity.status", "open"]`), row, rt)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no match")
	}

	ok, err = MatchRow(ctx, MustParseJSON(`[">", "@entity.n", 10]`), row, rt)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unexpected match")
	}

	if ok, err = MatchRow(ctx, nil, row, rt); err != nil || !ok {
		t.Fatal(ok, err)
	}

	// Filters are guards: no effects allowed.
	if _, err = MatchRow(ctx, MustParseJSON(`["emit", "X"]`), row, rt); err == nil {
		t.Fatal("expected an error")
	}
}

func TestTruthy(t *testing.T) {
	for _, tc := range []struct {
		x    interface{}
		want bool
	}{
		{nil, false},
		{Undefined, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{float64(0), false},
		{float64(1), true},
		{int(2), true},
		{[]interface{}{}, false},
		{[]interface{}{1}, true},
		{map[string]interface{}{}, false},
		{map[string]interface{}{"a": 1}, true},
	} {
		if got := Truthy(tc.x); got != tc.want {
			t.Fatalf("Truthy(%#v) = %v", tc.x, got)
		}
	}
}
