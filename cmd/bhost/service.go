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

package main

import (
	"context"
	"log/slog"

	"github.com/Comcast/bearings/catalog"
	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/registry"
	"github.com/Comcast/bearings/store/mem"
	"github.com/Comcast/bearings/troupe"
)

// Service is the daemon: a troupe over a loaded catalog, with sink
// output going to the WebSocket hub and instance snapshots going to
// the snapshot store after every change.
type Service struct {
	logger  *slog.Logger
	metrics *Metrics

	reg    *registry.Registry
	troupe *troupe.Troupe
	hub    *Hub

	entities  core.EntityStore
	snapshots *SnapshotStore
}

// NewService loads the catalog directory, builds the registry and the
// troupe, and wires the hub in as the sink for render, notify, and
// navigate effects.  Behaviors that fail validation are logged and
// skipped; the rest still load.
func NewService(ctx context.Context, catalogDir string, entities core.EntityStore, snapshots *SnapshotStore, logger *slog.Logger) (*Service, error) {
	bs, err := catalog.ReadDir(catalogDir)
	if err != nil {
		return nil, err
	}

	reg := registry.NewBuilder().Add(bs...).Build()
	for name, errs := range reg.Rejected() {
		for _, err := range errs {
			logger.Warn("behavior rejected", "behavior", name, "error", err)
		}
	}
	logger.Info("catalog loaded", "dir", catalogDir,
		"behaviors", len(reg.List()), "rejected", len(reg.Rejected()))

	if entities == nil {
		entities = mem.NewStore()
	}

	metrics := NewMetrics()
	hub := NewHub(logger, metrics)

	rt := core.NewRuntime()
	rt.Store = entities
	rt.Sinks.Render = hub
	rt.Sinks.Notify = hub
	rt.Sinks.Navigate = hub

	s := &Service{
		logger:    logger,
		metrics:   metrics,
		reg:       reg,
		troupe:    troupe.NewTroupe(reg, rt, nil),
		hub:       hub,
		entities:  entities,
		snapshots: snapshots,
	}

	hub.OnEvent = s.DispatchEvent

	return s, nil
}

// Activate starts an instance and saves its first snapshot.
func (s *Service) Activate(ctx context.Context, behavior, subject string, config map[string]interface{}) (string, error) {
	id, err := s.troupe.Activate(ctx, behavior, subject, config)
	if err != nil {
		return "", err
	}

	s.metrics.Activations.WithLabelValues(behavior).Inc()
	s.metrics.Instances.Set(float64(len(s.troupe.IDs())))
	s.logger.Info("activated", "behavior", behavior, "subject", subject, "id", id)

	s.save(ctx, id)
	return id, nil
}

// DispatchEvent sends an event to an instance and saves the
// instance's snapshot afterward.  Routed listeners are snapshotted
// too, since routing may have changed their state.
func (s *Service) DispatchEvent(ctx context.Context, id, eventKey string, payload interface{}) error {
	c, err := s.Dispatch(ctx, id, eventKey, payload)
	if err != nil {
		return err
	}
	if c.Fault != nil {
		s.logger.Warn("dispatch fault", "id", id, "event", eventKey, "error", c.Fault)
	}
	return nil
}

// Dispatch is DispatchEvent when the caller wants the cascade back.
func (s *Service) Dispatch(ctx context.Context, id, eventKey string, payload interface{}) (*core.Cascade, error) {
	inst, have := s.troupe.Snapshot(id)
	if !have {
		// Let the troupe produce its error.
		_, err := s.troupe.Dispatch(ctx, id, eventKey, payload)
		return nil, err
	}

	c, err := s.troupe.Dispatch(ctx, id, eventKey, payload)
	if err != nil {
		return nil, err
	}

	s.metrics.Dispatches.WithLabelValues(inst.Behavior, c.StoppedBecause.String()).Inc()
	s.metrics.Emitted.Add(float64(len(c.Emitted)))

	if 0 < len(c.Emitted) {
		// Routing can touch any listener.
		s.saveAll(ctx)
	} else {
		s.save(ctx, id)
	}
	return c, nil
}

// Deactivate stops an instance and drops its snapshot.
func (s *Service) Deactivate(ctx context.Context, id string) {
	s.troupe.Deactivate(ctx, id)
	s.metrics.Instances.Set(float64(len(s.troupe.IDs())))
	if err := s.snapshots.Delete(ctx, id); err != nil {
		s.logger.Warn("snapshot delete failed", "id", id, "error", err)
	}
	s.logger.Info("deactivated", "id", id)
}

// Restore brings back every stored snapshot.  A snapshot whose
// behavior is no longer in the catalog is logged and skipped.
func (s *Service) Restore(ctx context.Context) error {
	snaps, err := s.snapshots.All(ctx)
	if err != nil {
		return err
	}
	restored := 0
	for _, snap := range snaps {
		if err := s.troupe.Restore(ctx, snap.ID, snap.Behavior, snap.Subject, snap.State); err != nil {
			s.logger.Warn("restore failed", "id", snap.ID, "behavior", snap.Behavior, "error", err)
			continue
		}
		restored++
	}
	s.metrics.Instances.Set(float64(len(s.troupe.IDs())))
	if 0 < restored {
		s.logger.Info("instances restored", "count", restored)
	}
	return nil
}

func (s *Service) save(ctx context.Context, id string) {
	snap, have := s.troupe.Snapshot(id)
	if !have {
		return
	}
	if err := s.snapshots.Put(ctx, snap); err != nil {
		s.logger.Warn("snapshot failed", "id", id, "error", err)
	}
}

func (s *Service) saveAll(ctx context.Context) {
	for _, id := range s.troupe.IDs() {
		s.save(ctx, id)
	}
}

// Close shuts down the troupe's timers and the snapshot store.  The
// entity store is the caller's to close.
func (s *Service) Close(ctx context.Context) error {
	s.saveAll(ctx)
	if err := s.troupe.Shutdown(); err != nil {
		return err
	}
	return s.snapshots.Close(ctx)
}
