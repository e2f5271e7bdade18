// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package mesh

import (
	"fmt"
	"sync"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/models"
)

// Listener receives records relayed by nearby devices. A returned error is
// logged and does not affect other listeners.
type Listener func(records []models.MeshRecord) error

// ListenerID identifies a registered [Listener].
type ListenerID uint64

type listenerSet struct {
	mu     sync.Mutex
	nextID ListenerID
	order  []ListenerID
	fns    map[ListenerID]Listener
	logger *logger.Logger
}

func newListenerSet(log *logger.Logger) *listenerSet {
	return &listenerSet{fns: make(map[ListenerID]Listener), logger: log}
}

func (s *listenerSet) add(fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.fns[s.nextID] = fn
	s.order = append(s.order, s.nextID)
	return s.nextID
}

func (s *listenerSet) remove(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fns[id]; !ok {
		return
	}
	delete(s.fns, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// notify calls every listener in registration order with its own copy of
// records.
func (s *listenerSet) notify(records []models.MeshRecord) {
	s.mu.Lock()
	type entry struct {
		id ListenerID
		fn Listener
	}
	fns := make([]entry, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, entry{id: id, fn: s.fns[id]})
	}
	s.mu.Unlock()

	for _, e := range fns {
		batch := make([]models.MeshRecord, len(records))
		copy(batch, records)
		if err := s.call(e.fn, batch); err != nil {
			s.logger.Warn().Err(err).Str("func", "listenerSet.notify").Uint64("listener", uint64(e.id)).Msg("mesh listener failed")
		}
	}
}

func (s *listenerSet) call(fn Listener, records []models.MeshRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(records)
}
