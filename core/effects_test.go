package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"
)

type renderCall struct {
	slot, component string
	props           map[string]interface{}
}

type noticeCall struct {
	level, message string
	action         interface{}
}

type navCall struct {
	path   string
	params map[string]interface{}
}

type timerCall struct {
	id string
	d  time.Duration
	ev Event
}

// testSinks records everything.
type testSinks struct {
	renders   []renderCall
	notices   []noticeCall
	navs      []navCall
	delays    []timerCall
	intervals []timerCall
	canceled  []string
}

func (s *testSinks) Render(ctx context.Context, slot, component string, props map[string]interface{}) error {
	s.renders = append(s.renders, renderCall{slot, component, props})
	return nil
}

func (s *testSinks) Notify(ctx context.Context, level, message string, action interface{}) error {
	s.notices = append(s.notices, noticeCall{level, message, action})
	return nil
}

func (s *testSinks) Navigate(ctx context.Context, path string, params map[string]interface{}) error {
	s.navs = append(s.navs, navCall{path, params})
	return nil
}

func (s *testSinks) Delay(ctx context.Context, id string, d time.Duration, ev Event) error {
	s.delays = append(s.delays, timerCall{id, d, ev})
	return nil
}

func (s *testSinks) Every(ctx context.Context, id string, d time.Duration, ev Event) error {
	s.intervals = append(s.intervals, timerCall{id, d, ev})
	return nil
}

func (s *testSinks) Cancel(ctx context.Context, id string) error {
	s.canceled = append(s.canceled, id)
	return nil
}

func (s *testSinks) sinks() Sinks {
	return Sinks{Render: s, Notify: s, Navigate: s, Timer: s}
}

// testStore is a tiny in-memory EntityStore.
type testStore struct {
	rows map[string]map[string]map[string]interface{}
	seq  int
}

func newTestStore() *testStore {
	return &testStore{rows: make(map[string]map[string]map[string]interface{})}
}

func (s *testStore) kind(kind string) map[string]map[string]interface{} {
	m, have := s.rows[kind]
	if !have {
		m = make(map[string]map[string]interface{})
		s.rows[kind] = m
	}
	return m
}

func (s *testStore) Get(ctx context.Context, kind, id string) (map[string]interface{}, error) {
	row, have := s.kind(kind)[id]
	if !have {
		return nil, nil
	}
	return row, nil
}

func (s *testStore) List(ctx context.Context, kind string, filter Expr, rt *Runtime) ([]map[string]interface{}, error) {
	m := s.kind(kind)
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	acc := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		ok, err := MatchRow(ctx, filter, m[id], rt)
		if err != nil {
			return nil, err
		}
		if ok {
			acc = append(acc, m[id])
		}
	}
	return acc, nil
}

func (s *testStore) Create(ctx context.Context, kind string, fields map[string]interface{}) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	id, is := row["id"].(string)
	if !is || id == "" {
		s.seq++
		id = fmt.Sprintf("id-%d", s.seq)
		row["id"] = id
	}
	s.kind(kind)[id] = row
	return row, nil
}

func (s *testStore) Update(ctx context.Context, kind, id string, fields map[string]interface{}) (map[string]interface{}, error) {
	row, have := s.kind(kind)[id]
	if !have {
		row = map[string]interface{}{"id": id}
		s.kind(kind)[id] = row
	}
	for k, v := range fields {
		row[k] = v
	}
	return row, nil
}

func (s *testStore) Delete(ctx context.Context, kind, id string) error {
	delete(s.kind(kind), id)
	return nil
}

func effectsFixture() (*Behavior, *State, *Runtime, *testSinks, *testStore) {
	b := &Behavior{
		Name:     "std/Todos",
		Category: "data",
		Entities: []*DataEntity{
			{
				Name: "view",
				Fields: []*FieldSpec{
					{Name: "count", Type: "number", Default: float64(0)},
				},
			},
		},
	}
	st := b.NewState(nil)
	sinks := &testSinks{}
	store := newTestStore()
	rt := NewRuntime()
	rt.Sinks = sinks.sinks()
	rt.Store = store
	return b, st, rt, sinks, store
}

func runOne(t *testing.T, b *Behavior, st *State, rt *Runtime, js string) *Cascade {
	t.Helper()
	c, err := b.RunEffects(context.Background(), st, []Expr{MustParseJSON(js)}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSetEffect(t *testing.T) {
	b, st, rt, _, _ := effectsFixture()

	c := runOne(t, b, st, rt, `["set", "@entity.count", ["+", "@entity.count", 5]]`)
	if c.StoppedBecause != Drained {
		t.Fatal(c.Err)
	}
	if st.Entities["view"]["count"] != float64(5) {
		t.Fatalf("got %#v", st.Entities["view"]["count"])
	}

	// Nested paths create intermediate maps.
	runOne(t, b, st, rt, `["set", "@entity.draft.title", "hi"]`)
	draft, is := st.Entities["view"]["draft"].(map[string]interface{})
	if !is || draft["title"] != "hi" {
		t.Fatalf("got %#v", st.Entities["view"]["draft"])
	}

	// The target must be a reference.
	c = runOne(t, b, st, rt, `["set", "count", 1]`)
	if c.StoppedBecause != Faulted {
		t.Fatal("expected a fault")
	}
	var bad *BadOperand
	if !errors.As(c.Fault, &bad) {
		t.Fatal(c.Fault)
	}
}

func TestRenderEffect(t *testing.T) {
	b, st, rt, sinks, _ := effectsFixture()

	runOne(t, b, st, rt, `["render", "main", "Counter", {"n": "@entity.count"}]`)
	if len(sinks.renders) != 1 {
		t.Fatal(len(sinks.renders))
	}
	r := sinks.renders[0]
	if r.slot != "main" || r.component != "Counter" {
		t.Fatalf("got %#v", r)
	}
	if r.props["n"] != float64(0) {
		t.Fatalf("got %#v", r.props)
	}

	// Omitted props clear the slot.
	runOne(t, b, st, rt, `["render", "main", "Counter"]`)
	if sinks.renders[1].props != nil {
		t.Fatalf("got %#v", sinks.renders[1].props)
	}

	// render-ui is an alias.
	runOne(t, b, st, rt, `["render-ui", "aside", "Help", {}]`)
	if sinks.renders[2].slot != "aside" {
		t.Fatalf("got %#v", sinks.renders[2])
	}

	// No render sink: the effect is dropped, not a fault.
	rt.Sinks.Render = nil
	c := runOne(t, b, st, rt, `["render", "main", "Counter"]`)
	if c.StoppedBecause != Drained {
		t.Fatal(c.Err)
	}
}

func TestNotifyEffect(t *testing.T) {
	b, st, rt, sinks, _ := effectsFixture()

	runOne(t, b, st, rt, `["notify", "success", "saved", {"label": "Undo", "emit": "UNDO"}]`)
	n := sinks.notices[0]
	if n.level != "success" || n.message != "saved" {
		t.Fatalf("got %#v", n)
	}
	if n.action == nil {
		t.Fatal("no action")
	}

	c := runOne(t, b, st, rt, `["notify", "fatal", "boom"]`)
	if c.StoppedBecause != Faulted {
		t.Fatal("expected a fault")
	}
}

func TestNavigateEffect(t *testing.T) {
	b, st, rt, sinks, _ := effectsFixture()

	runOne(t, b, st, rt, `["navigate", "/todos", {"tab": "open"}]`)
	nav := sinks.navs[0]
	if nav.path != "/todos" || nav.params["tab"] != "open" {
		t.Fatalf("got %#v", nav)
	}
}

func TestPersistEffect(t *testing.T) {
	b, st, rt, _, store := effectsFixture()
	ctx := context.Background()

	// create assigns an id and leaves the row in @data for later
	// effects in the same hop.
	c, err := b.RunEffects(ctx, st, []Expr{
		MustParseJSON(`["persist", "create", "todo", {"title": "one"}]`),
		MustParseJSON(`["set", "@entity.count", ["count", ["list", "@data.todo.id"]]]`),
	}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.StoppedBecause != Drained {
		t.Fatal(c.Err)
	}
	rows, err := store.List(ctx, "todo", nil, rt)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["title"] != "one" {
		t.Fatalf("got %#v", rows)
	}
	id := rows[0]["id"].(string)

	// update by id in the payload
	runOne(t, b, st, rt, `["persist", "update", "todo", {"id": "`+id+`", "title": "uno"}]`)
	row, err := store.Get(ctx, "todo", id)
	if err != nil {
		t.Fatal(err)
	}
	if row["title"] != "uno" {
		t.Fatalf("got %#v", row)
	}

	// save without an id creates
	runOne(t, b, st, rt, `["persist", "save", "todo", {"title": "two"}]`)
	if rows, _ = store.List(ctx, "todo", nil, rt); len(rows) != 2 {
		t.Fatalf("got %#v", rows)
	}

	// delete by bare id
	runOne(t, b, st, rt, `["persist", "delete", "todo", "`+id+`"]`)
	if row, _ = store.Get(ctx, "todo", id); row != nil {
		t.Fatalf("got %#v", row)
	}

	// update without an id is a fault
	c = runOne(t, b, st, rt, `["persist", "update", "todo", {"title": "x"}]`)
	if c.StoppedBecause != Faulted {
		t.Fatal("expected a fault")
	}

	// no store: a fault
	rt.Store = nil
	c = runOne(t, b, st, rt, `["persist", "create", "todo", {}]`)
	var missing *NoStore
	if !errors.As(c.Fault, &missing) {
		t.Fatal(c.Fault)
	}
}

func TestFetchEffect(t *testing.T) {
	b, st, rt, sinks, store := effectsFixture()
	ctx := context.Background()

	for i, status := range []string{"open", "done", "open"} {
		if _, err := store.Create(ctx, "todo", map[string]interface{}{
			"id":     fmt.Sprintf("t%d", i+1),
			"status": status,
		}); err != nil {
			t.Fatal(err)
		}
	}

	// fetch all, then render the count
	c, err := b.RunEffects(ctx, st, []Expr{
		MustParseJSON(`["fetch", "todo"]`),
		MustParseJSON(`["render", "main", "List", {"n": ["count", "@data.todo"]}]`),
	}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.StoppedBecause != Drained {
		t.Fatal(c.Err)
	}
	if sinks.renders[0].props["n"] != float64(3) {
		t.Fatalf("got %#v", sinks.renders[0].props)
	}

	// fetch by filter
	c, err = b.RunEffects(ctx, st, []Expr{
		MustParseJSON(`["fetch", "todo", {"filter": ["=", "@entity.status", "open"]}]`),
		MustParseJSON(`["render", "main", "List", {"n": ["count", "@data.todo"]}]`),
	}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sinks.renders[1].props["n"] != float64(2) {
		t.Fatalf("got %#v", sinks.renders[1].props)
	}

	// fetch by id resolves the id from the payload template
	c, err = b.RunEffects(ctx, st, []Expr{
		MustParseJSON(`["fetch", "todo", {"id": "t2"}]`),
		MustParseJSON(`["render", "main", "Item", {"status": "@data.todo.status"}]`),
	}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sinks.renders[2].props["status"] != "done" {
		t.Fatalf("got %#v", sinks.renders[2].props)
	}

	// fetch of an absent id leaves @data undefined
	c, err = b.RunEffects(ctx, st, []Expr{
		MustParseJSON(`["fetch", "todo", {"id": "nope"}]`),
		MustParseJSON(`["render", "main", "Item", {"found": ["defined", "@data.todo"]}]`),
	}, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sinks.renders[3].props["found"] != false {
		t.Fatalf("got %#v", sinks.renders[3].props)
	}

	// a filter is a guard: effects inside it fault
	c = runOne(t, b, st, rt, `["fetch", "todo", {"filter": ["emit", "X"]}]`)
	if c.StoppedBecause != Faulted {
		t.Fatal("expected a fault")
	}
}

func TestAsyncEffects(t *testing.T) {
	b, st, rt, sinks, _ := effectsFixture()

	runOne(t, b, st, rt, `["async/delay", "view.reset", 1500, "RESET", {"why": "idle"}]`)
	if len(sinks.delays) != 1 {
		t.Fatal(len(sinks.delays))
	}
	d := sinks.delays[0]
	if d.id != "view.reset" || d.d != 1500*time.Millisecond || d.ev.Key != "RESET" {
		t.Fatalf("got %#v", d)
	}

	runOne(t, b, st, rt, `["async/interval", "view.poll", 250, "POLL"]`)
	if sinks.intervals[0].d != 250*time.Millisecond {
		t.Fatalf("got %#v", sinks.intervals[0])
	}

	runOne(t, b, st, rt, `["async/cancel", "view.poll"]`)
	if len(sinks.canceled) != 1 || sinks.canceled[0] != "view.poll" {
		t.Fatalf("got %#v", sinks.canceled)
	}

	// a zero interval is a fault
	c := runOne(t, b, st, rt, `["async/interval", "x", 0, "POLL"]`)
	if c.StoppedBecause != Faulted {
		t.Fatal("expected a fault")
	}

	// no timer sink: a fault
	rt.Sinks.Timer = nil
	c = runOne(t, b, st, rt, `["async/delay", "x", 10, "RESET"]`)
	var missing *NoSink
	if !errors.As(c.Fault, &missing) {
		t.Fatal(c.Fault)
	}
}
