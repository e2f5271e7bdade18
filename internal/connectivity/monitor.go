// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package connectivity tracks whether the remote backend is reachable. A
// Monitor holds the current state and fans every signal out to subscribers;
// a Prober feeds it from periodic probes.
package connectivity

import (
	"sync"

	"github.com/sndie3/LABAN/internal/logger"
)

// Monitor is the connectivity signal. Every Set fires all subscribers, even
// when the state did not change; subscribers compare with their own last
// value to detect transitions.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	nextID int
	order  []int
	subs   map[int]func(online bool)
	logger *logger.Logger
}

func NewMonitor(initial bool, log *logger.Logger) *Monitor {
	return &Monitor{
		online: initial,
		subs:   make(map[int]func(bool)),
		logger: log,
	}
}

// IsOnline returns the last signalled state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers fn and returns a function that removes it.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.order = append(m.order, id)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Set records the state and notifies subscribers in subscription order.
// A panicking subscriber is logged and does not stop the others.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	fns := make([]func(bool), 0, len(m.order))
	for _, id := range m.order {
		fns = append(fns, m.subs[id])
	}
	m.mu.Unlock()

	if changed {
		m.logger.Info().Str("func", "Monitor.Set").Bool("online", online).Msg("connectivity changed")
	}

	for _, fn := range fns {
		m.notify(fn, online)
	}
}

func (m *Monitor) notify(fn func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("func", "Monitor.notify").Interface("panic", r).Msg("connectivity subscriber panicked")
		}
	}()
	fn(online)
}
