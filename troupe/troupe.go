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

// Package troupe runs behavior instances.
//
// A Troupe owns a set of activated instances, serializes dispatch per
// instance, shares singleton entities across instances of the same
// behavior, routes emitted events to listening instances, and drives
// ticks and async/* effects through a timer scheduler.
package troupe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/registry"
	"github.com/Comcast/bearings/timers"
)

// DefaultFrame is the tick interval for ticks declared with
// every: "frame".
const DefaultFrame = 16 * time.Millisecond

// DefaultRouteLimit bounds how many routed dispatches one event
// ingress can trigger across the troupe.
const DefaultRouteLimit = 100

// Options tune a Troupe.  The zero value is usable.
type Options struct {
	// Frame is the interval for every: "frame" ticks.
	Frame time.Duration

	// Control bounds each instance's cascades.
	Control *core.Control

	// RouteLimit bounds listens-routing per ingress event.
	RouteLimit int
}

// Instance is one activation of a behavior for a subject.
type Instance struct {
	ID       string         `json:"id"`
	Subject  string         `json:"subject,omitempty"`
	Behavior *core.Behavior `json:"-"`
	State    *core.State    `json:"state"`

	// gate serializes dispatch.  Instances of a behavior with a
	// singleton entity share one gate.
	gate *sync.Mutex

	rt *core.Runtime
}

// BehaviorName is for snapshots, where Behavior itself isn't
// serialized.
func (i *Instance) BehaviorName() string {
	return i.Behavior.Name
}

// Troupe is a set of running behavior instances.
type Troupe struct {
	sync.Mutex

	reg  *registry.Registry
	base *core.Runtime

	frame      time.Duration
	ctl        *core.Control
	routeLimit int

	timers    *timers.Timers
	instances map[string]*Instance

	// gates has one entry per behavior that declares a singleton
	// entity.
	gates map[string]*sync.Mutex

	// singletons maps behavior name to entity name to the shared
	// field map.
	singletons map[string]map[string]map[string]interface{}
}

// NewTroupe makes a Troupe over the given registry.  The runtime
// carries the host's sinks and store; the troupe itself supplies the
// timer sink, so rt.Sinks.Timer is ignored.
func NewTroupe(reg *registry.Registry, rt *core.Runtime, opts *Options) *Troupe {
	if rt == nil {
		rt = core.NewRuntime()
	}
	if opts == nil {
		opts = &Options{}
	}
	t := &Troupe{
		reg:        reg,
		base:       rt,
		frame:      opts.Frame,
		ctl:        opts.Control,
		routeLimit: opts.RouteLimit,
		instances:  make(map[string]*Instance, 32),
		gates:      make(map[string]*sync.Mutex),
		singletons: make(map[string]map[string]map[string]interface{}),
	}
	if t.frame <= 0 {
		t.frame = DefaultFrame
	}
	if t.routeLimit <= 0 {
		t.routeLimit = DefaultRouteLimit
	}
	t.timers = timers.NewTimers(t.onTimer)
	return t
}

// Shutdown cancels all timers.  Instances stay readable.
func (t *Troupe) Shutdown() error {
	return t.timers.Shutdown()
}

// Activate validates the config, makes an instance of the named
// behavior, runs its initial effects, and arms its ticks.  Returns
// the new instance's id.
func (t *Troupe) Activate(ctx context.Context, behaviorName, subject string, config map[string]interface{}) (string, error) {
	b, have := t.reg.Get(behaviorName)
	if !have {
		return "", t.reg.ValidateReference(behaviorName)
	}

	resolved, errs := b.ValidateConfig(config)
	if 0 < len(errs) {
		return "", fmt.Errorf("can't activate %s: %w", behaviorName, errors.Join(errs...))
	}

	id := uuid.NewString()
	inst := t.install(id, subject, b, b.NewState(resolved))

	t.boot(ctx, inst)

	return id, nil
}

// Restore brings back an instance from a snapshot: no initial
// effects, but ticks are armed.  The id must not collide with a live
// instance.
func (t *Troupe) Restore(ctx context.Context, id, behaviorName, subject string, st *core.State) error {
	b, have := t.reg.Get(behaviorName)
	if !have {
		return t.reg.ValidateReference(behaviorName)
	}
	if st == nil {
		return errors.New("nil state")
	}

	t.Lock()
	_, collision := t.instances[id]
	t.Unlock()
	if collision {
		return fmt.Errorf("instance %s already live", id)
	}

	inst := t.install(id, subject, b, st)
	t.armTicks(ctx, inst)
	return nil
}

// install registers the instance, wiring its gate, its singleton
// entities, and its instance-scoped runtime.
func (t *Troupe) install(id, subject string, b *core.Behavior, st *core.State) *Instance {
	t.Lock()
	defer t.Unlock()

	inst := &Instance{
		ID:       id,
		Subject:  subject,
		Behavior: b,
		State:    st,
	}

	inst.gate = &sync.Mutex{}
	for _, ent := range b.Entities {
		if !ent.Singleton {
			continue
		}
		gate, have := t.gates[b.Name]
		if !have {
			gate = &sync.Mutex{}
			t.gates[b.Name] = gate
		}
		inst.gate = gate

		shared, have := t.singletons[b.Name]
		if !have {
			shared = make(map[string]map[string]interface{})
			t.singletons[b.Name] = shared
		}
		fields, have := shared[ent.Name]
		if !have {
			// First activation donates its default fields.
			fields = st.Entities[ent.Name]
			shared[ent.Name] = fields
		}
		st.Entities[ent.Name] = fields
	}

	rt := *t.base
	rt.Sinks.Timer = &timerSink{troupe: t, owner: id}
	inst.rt = &rt

	t.instances[id] = inst
	return inst
}

// boot runs initial effects and arms ticks.  An initial-effect fault
// doesn't undo the activation.
func (t *Troupe) boot(ctx context.Context, inst *Instance) {
	if 0 < len(inst.Behavior.InitialEffects) {
		inst.gate.Lock()
		c, err := inst.Behavior.RunEffects(ctx, inst.State, inst.Behavior.InitialEffects, inst.rt, t.ctl)
		inst.gate.Unlock()
		if err == nil && c.Fault != nil {
			log.Printf("troupe: %s initial effects: %v", inst.Behavior.Name, c.Fault)
		}
		if c != nil {
			t.route(ctx, inst.ID, c.Emitted)
		}
	}
	t.armTicks(ctx, inst)
}

func (t *Troupe) armTicks(ctx context.Context, inst *Instance) {
	for _, tick := range inst.Behavior.Ticks {
		var err error
		switch {
		case tick.Frame:
			err = t.timers.Repeat(ctx, inst.ID, "tick/"+tick.Name, tick, t.frame)
		case 0 < tick.Every:
			err = t.timers.Repeat(ctx, inst.ID, "tick/"+tick.Name, tick, tick.Every)
		case tick.Cron != "":
			err = t.timers.Schedule(ctx, inst.ID, "tick/"+tick.Name, tick, tick.Cron)
		}
		if err != nil {
			log.Printf("troupe: arming tick %s for %s: %v", tick.Name, inst.Behavior.Name, err)
		}
	}
}

// Deactivate cancels the instance's timers and drops it.  Unknown
// ids are a no-op.
func (t *Troupe) Deactivate(ctx context.Context, id string) {
	t.timers.CancelOwner(ctx, id)

	t.Lock()
	delete(t.instances, id)
	t.Unlock()
}

// Dispatch delivers an event to an instance, then routes whatever
// the cascade emitted to listening instances.  This is the sole
// event ingress.
func (t *Troupe) Dispatch(ctx context.Context, id, eventKey string, payload interface{}) (*core.Cascade, error) {
	inst, have := t.instance(id)
	if !have {
		return nil, fmt.Errorf("no instance %s", id)
	}

	ev := core.Event{Key: eventKey, Payload: payload}

	inst.gate.Lock()
	c, err := inst.Behavior.Dispatch(ctx, inst.State, ev, inst.rt, t.ctl)
	inst.gate.Unlock()
	if err != nil {
		return nil, err
	}

	t.route(ctx, id, c.Emitted)
	return c, nil
}

// route delivers emitted events to instances whose behaviors listen
// for them.  Routing is breadth-first and never returns an event to
// its own emitter, though a later hop can reach it.
func (t *Troupe) route(ctx context.Context, emitter string, emitted []core.Event) {
	type envelope struct {
		from string
		ev   core.Event
	}

	queue := make([]envelope, 0, len(emitted))
	for _, ev := range emitted {
		queue = append(queue, envelope{from: emitter, ev: ev})
	}

	routed := 0
	for 0 < len(queue) {
		e := queue[0]
		queue = queue[1:]

		for _, target := range t.listeners(e.ev.Key, e.from) {
			if t.routeLimit <= routed {
				log.Printf("troupe: route limit %d reached; dropping %s", t.routeLimit, e.ev.Key)
				return
			}
			routed++

			target.gate.Lock()
			c, err := target.Behavior.Dispatch(ctx, target.State, e.ev, target.rt, t.ctl)
			target.gate.Unlock()
			if err != nil {
				log.Printf("troupe: routing %s to %s: %v", e.ev.Key, target.ID, err)
				continue
			}
			for _, ev := range c.Emitted {
				queue = append(queue, envelope{from: target.ID, ev: ev})
			}
		}
	}
}

// listeners snapshots the instances listening for a key, excluding
// the emitter, ordered by id for determinism.
func (t *Troupe) listeners(key, emitter string) []*Instance {
	t.Lock()
	defer t.Unlock()

	var targets []*Instance
	for id, inst := range t.instances {
		if id == emitter {
			continue
		}
		if inst.Behavior.ListensTo(key) {
			targets = append(targets, inst)
		}
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].ID < targets[j].ID
	})
	return targets
}

func (t *Troupe) instance(id string) (*Instance, bool) {
	t.Lock()
	defer t.Unlock()
	inst, have := t.instances[id]
	return inst, have
}

// IDs returns the live instance ids, sorted.
func (t *Troupe) IDs() []string {
	t.Lock()
	defer t.Unlock()

	ids := make([]string, 0, len(t.instances))
	for id := range t.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot copies an instance's current state under its gate, for
// persistence or inspection.
func (t *Troupe) Snapshot(id string) (*Snapshot, bool) {
	inst, have := t.instance(id)
	if !have {
		return nil, false
	}

	inst.gate.Lock()
	st := inst.State.Copy()
	inst.gate.Unlock()

	return &Snapshot{
		ID:       inst.ID,
		Behavior: inst.Behavior.Name,
		Subject:  inst.Subject,
		State:    st,
	}, true
}

// Snapshot is a serializable picture of one instance.
type Snapshot struct {
	ID       string      `json:"id"`
	Behavior string      `json:"behavior"`
	Subject  string      `json:"subject,omitempty"`
	State    *core.State `json:"state"`
}

// onTimer handles a timer firing: an Event scheduled by async/delay
// or async/interval, or a Tick due to run.
func (t *Troupe) onTimer(ctx context.Context, owner string, message interface{}) error {
	inst, have := t.instance(owner)
	if !have {
		// Deactivated between scheduling and firing.
		return nil
	}

	switch m := message.(type) {
	case core.Event:
		inst.gate.Lock()
		c, err := inst.Behavior.Dispatch(ctx, inst.State, m, inst.rt, t.ctl)
		inst.gate.Unlock()
		if err != nil {
			return err
		}
		t.route(ctx, owner, c.Emitted)
		return nil
	case *core.Tick:
		return t.fireTick(ctx, inst, m)
	}
	return fmt.Errorf("unknown timer message %T", message)
}

// fireTick checks the tick's guard and runs its effects under the
// instance's gate.
func (t *Troupe) fireTick(ctx context.Context, inst *Instance, tick *core.Tick) error {
	inst.gate.Lock()

	if tick.Guard != nil {
		v, err := core.Eval(ctx, tick.Guard, inst.Behavior.GuardEnv(inst.State, nil, inst.rt))
		if err != nil {
			inst.gate.Unlock()
			return err
		}
		if !core.Truthy(v) {
			inst.gate.Unlock()
			return nil
		}
	}

	c, err := inst.Behavior.RunEffects(ctx, inst.State, tick.Effects, inst.rt, t.ctl)
	inst.gate.Unlock()
	if err != nil {
		return err
	}
	if c.Fault != nil {
		return c.Fault
	}

	t.route(ctx, inst.ID, c.Emitted)
	return nil
}

// timerSink adapts the troupe's scheduler to the core.TimerSink
// contract: scheduling an existing id replaces it, cancelling an
// unknown id is a no-op.
type timerSink struct {
	troupe *Troupe
	owner  string
}

var _ core.TimerSink = (*timerSink)(nil)

func (s *timerSink) Delay(ctx context.Context, id string, d time.Duration, ev core.Event) error {
	if err := s.troupe.timers.Rem(ctx, s.owner, id); err != nil && err != timers.NotFound {
		return err
	}
	return s.troupe.timers.Add(ctx, s.owner, id, ev, d)
}

func (s *timerSink) Every(ctx context.Context, id string, d time.Duration, ev core.Event) error {
	if err := s.troupe.timers.Rem(ctx, s.owner, id); err != nil && err != timers.NotFound {
		return err
	}
	return s.troupe.timers.Repeat(ctx, s.owner, id, ev, d)
}

func (s *timerSink) Cancel(ctx context.Context, id string) error {
	if err := s.troupe.timers.Rem(ctx, s.owner, id); err != nil && err != timers.NotFound {
		return err
	}
	return nil
}
