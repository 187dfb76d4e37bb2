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

// Package timers provides in-process timers that deliver messages to
// an Emitter when they fire.
//
// Timers are scoped by owner so a host can cancel everything a
// behavior instance scheduled in one call.  One-shot, repeating, and
// cron-scheduled timers are supported.
package timers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

// Emitter receives a timer's message when the timer fires.  The owner
// is whatever was given to Add/Repeat/Schedule.
type Emitter func(ctx context.Context, owner string, message interface{}) error

var (
	Exists   = errors.New("id exists")
	NotFound = errors.New("not found")
)

// Entry is a pending timer.
type Entry struct {
	Owner   string      `json:"owner"`
	Id      string      `json:"id"`
	Message interface{} `json:"message"`

	// At is the next firing time.
	At time.Time `json:"at"`

	// Every is non-zero for a repeating timer.
	Every time.Duration `json:"every,omitempty"`

	// Cron is the schedule for a cron timer.
	Cron string `json:"cron,omitempty"`

	ctl chan bool
}

// Timers schedules message deliveries.
type Timers struct {
	// Errors, if non-nil, receives errors from timer goroutines.
	// Otherwise errors go to the log.
	Errors chan interface{} `json:"-"`

	sync.Mutex

	timers map[string]*Entry
	ctl    chan bool
	emit   Emitter
}

func NewTimers(emitter Emitter) *Timers {
	return &Timers{
		timers: make(map[string]*Entry, 32),
		emit:   emitter,
		ctl:    make(chan bool),
	}
}

func key(owner, id string) string {
	return owner + "\x00" + id
}

func (ts *Timers) MarshalJSON() ([]byte, error) {
	ts.Lock()
	m := map[string]interface{}{
		"map": ts.timers,
	}
	bs, err := json.Marshal(&m)
	ts.Unlock()
	return bs, err
}

// Pending returns the number of scheduled timers.
func (ts *Timers) Pending() int {
	ts.Lock()
	n := len(ts.timers)
	ts.Unlock()
	return n
}

// Add schedules a one-shot timer.  Returns Exists if the owner
// already has a timer with that id.
func (ts *Timers) Add(ctx context.Context, owner, id string, message interface{}, in time.Duration) error {
	te := &Entry{
		Owner:   owner,
		Id:      id,
		Message: message,
		At:      time.Now().UTC().Add(in),
	}
	return ts.install(ctx, te)
}

// Repeat schedules a timer that fires every interval until removed.
func (ts *Timers) Repeat(ctx context.Context, owner, id string, message interface{}, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("bad interval %v", every)
	}
	te := &Entry{
		Owner:   owner,
		Id:      id,
		Message: message,
		At:      time.Now().UTC().Add(every),
		Every:   every,
	}
	return ts.install(ctx, te)
}

// Schedule schedules a timer driven by a cron expression.  The
// schedule is evaluated in UTC.
func (ts *Timers) Schedule(ctx context.Context, owner, id string, message interface{}, schedule string) error {
	c, err := cronexpr.Parse(schedule)
	if err != nil {
		return err
	}
	at := c.Next(time.Now().UTC())
	if at.IsZero() {
		return fmt.Errorf("schedule %q never fires", schedule)
	}
	te := &Entry{
		Owner:   owner,
		Id:      id,
		Message: message,
		At:      at,
		Cron:    schedule,
	}
	return ts.install(ctx, te)
}

func (ts *Timers) install(ctx context.Context, te *Entry) error {
	ts.Lock()
	defer ts.Unlock()

	k := key(te.Owner, te.Id)
	if _, have := ts.timers[k]; have {
		return Exists
	}

	te.ctl = make(chan bool)
	ts.timers[k] = te

	stop := func() {
		if err := ts.Rem(ctx, te.Owner, te.Id); err != nil && err != NotFound {
			ts.err(fmt.Errorf("timers rem error %v owner=%s id=%s", err, te.Owner, te.Id))
		}
	}

	go func() {
		at := te.At
		for {
			timer := time.NewTimer(at.Sub(time.Now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				stop()
				return
			case <-te.ctl:
				// We only get here via a Rem() call.
				timer.Stop()
				return
			case <-ts.ctl:
				timer.Stop()
				stop()
				return
			case <-timer.C:
				if err := ts.emit(ctx, te.Owner, te.Message); err != nil {
					ts.err(fmt.Errorf("timers emit error %v owner=%s id=%s", err, te.Owner, te.Id))
				}
			}

			next, again := te.next(at)
			if !again {
				ts.Lock()
				delete(ts.timers, k)
				ts.Unlock()
				return
			}
			at = next
			ts.Lock()
			te.At = at
			ts.Unlock()
		}
	}()

	return nil
}

// next computes the firing time after the given one.  The second
// return value is false when the timer is done.
func (te *Entry) next(after time.Time) (time.Time, bool) {
	if 0 < te.Every {
		return after.Add(te.Every), true
	}
	if te.Cron != "" {
		c, err := cronexpr.Parse(te.Cron)
		if err != nil {
			return time.Time{}, false
		}
		at := c.Next(time.Now().UTC())
		if at.IsZero() {
			return time.Time{}, false
		}
		return at, true
	}
	return time.Time{}, false
}

// Rem cancels a timer.  Returns NotFound if the owner has no timer
// with that id.
func (ts *Timers) Rem(ctx context.Context, owner, id string) error {
	ts.Lock()
	defer ts.Unlock()

	k := key(owner, id)
	te, have := ts.timers[k]
	if !have {
		return NotFound
	}

	delete(ts.timers, k)

	close(te.ctl)

	return nil
}

// CancelOwner cancels every timer the owner has scheduled and
// returns how many it found.
func (ts *Timers) CancelOwner(ctx context.Context, owner string) int {
	ts.Lock()
	defer ts.Unlock()

	n := 0
	for k, te := range ts.timers {
		if te.Owner != owner {
			continue
		}
		delete(ts.timers, k)
		close(te.ctl)
		n++
	}
	return n
}

// Shutdown cancels all timers.
func (ts *Timers) Shutdown() error {
	close(ts.ctl)
	return nil
}

func (ts *Timers) err(err error) {
	if ts.Errors != nil {
		ts.Errors <- err
	} else {
		log.Println(err)
	}
}
