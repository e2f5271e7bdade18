// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sndie3/LABAN/internal/adapter"
	"github.com/sndie3/LABAN/models"
)

// LiveSubscription proxies a realtime subscription. While offline it is a
// stub that delivers nothing; the coordinator attaches it to the backend on
// reconnect and detaches it when the connection is lost.
type LiveSubscription struct {
	entityType models.EntityType
	filter     models.EventFilter
	listener   func(models.ChangeEvent)

	coordinator *SyncCoordinator

	mu     sync.Mutex
	remote *adapter.Subscription
	closed bool
}

// Subscribe registers listener for changes to entityType rows. It never
// fails because the backend is unreachable: the subscription then starts as
// a stub.
func (c *SyncCoordinator) Subscribe(ctx context.Context, entityType models.EntityType, filter models.EventFilter, listener func(models.ChangeEvent)) (*LiveSubscription, error) {
	if entityType == "" {
		return nil, ErrEmptyEntityType
	}

	s := &LiveSubscription{
		entityType:  entityType,
		filter:      filter,
		listener:    listener,
		coordinator: c,
	}
	c.live.add(s)

	if c.online() {
		if err := s.attach(ctx); err != nil {
			c.logger.Warn().Err(err).Str("func", "SyncCoordinator.Subscribe").Str("entity_type", entityType).Msg("realtime unavailable, subscription is a stub for now")
		}
	}
	return s, nil
}

// Live reports whether the subscription is attached to the backend.
func (s *LiveSubscription) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote != nil
}

// Unsubscribe stops delivery. A stub unsubscribes without error.
func (s *LiveSubscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	remote := s.remote
	s.remote = nil
	s.mu.Unlock()

	s.coordinator.live.remove(s)

	if remote == nil {
		return nil
	}
	if err := s.coordinator.remote.Unsubscribe(ctx, *remote); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.entityType, err)
	}
	return nil
}

func (s *LiveSubscription) attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.remote != nil {
		return nil
	}

	sub, err := s.coordinator.remote.Subscribe(ctx, models.TableFor(s.entityType), s.filter, s.deliver)
	if err != nil {
		return err
	}
	s.remote = &sub
	return nil
}

func (s *LiveSubscription) detach(ctx context.Context) {
	s.mu.Lock()
	remote := s.remote
	s.remote = nil
	s.mu.Unlock()

	if remote == nil {
		return
	}
	// the connection is usually gone already; a failed leave is expected
	if err := s.coordinator.remote.Unsubscribe(ctx, *remote); err != nil {
		s.coordinator.logger.Debug().Err(err).Str("func", "LiveSubscription.detach").Msg("leave failed")
	}
}

func (s *LiveSubscription) deliver(ev models.ChangeEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.listener(ev)
	}
}

type liveRegistry struct {
	mu   sync.Mutex
	subs map[*LiveSubscription]struct{}
}

func newLiveRegistry() *liveRegistry {
	return &liveRegistry{subs: make(map[*LiveSubscription]struct{})}
}

func (r *liveRegistry) add(s *LiveSubscription) {
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
}

func (r *liveRegistry) remove(s *LiveSubscription) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
}

func (r *liveRegistry) snapshot() []*LiveSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*LiveSubscription, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *liveRegistry) upgradeAll(ctx context.Context, c *SyncCoordinator) {
	for _, s := range r.snapshot() {
		if err := s.attach(ctx); err != nil {
			c.logger.Warn().Err(err).Str("func", "liveRegistry.upgradeAll").Str("entity_type", s.entityType).Msg("could not restore realtime subscription")
		}
	}
}

func (r *liveRegistry) downgradeAll(ctx context.Context) {
	for _, s := range r.snapshot() {
		s.detach(ctx)
	}
}

func (r *liveRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
