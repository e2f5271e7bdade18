// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"sync"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/models"
)

// eventBus fans connection events out to listeners in registration order.
type eventBus struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]func(models.ConnectionEvent)
	logger    *logger.Logger
}

func newEventBus(log *logger.Logger) *eventBus {
	return &eventBus{listeners: make(map[int]func(models.ConnectionEvent)), logger: log}
}

func (b *eventBus) subscribe(fn func(models.ConnectionEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *eventBus) emit(ev models.ConnectionEvent) {
	b.mu.Lock()
	fns := make([]func(models.ConnectionEvent), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(fn, ev)
	}
}

func (b *eventBus) deliver(fn func(models.ConnectionEvent), ev models.ConnectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("func", "eventBus.deliver").Str("event", string(ev.Type)).Interface("panic", r).Msg("connection listener panicked")
		}
	}()
	fn(ev)
}
