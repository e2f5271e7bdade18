// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers provides the agent's background scheduling: periodic
// tasks with cancel functions and a re-entrancy guard, cron-scheduled
// maintenance, and a Workers aggregate that starts and stops them together.
package workers

import "context"

// Worker is the interface that must be implemented by any background worker.
//
// Start must not block; Stop cancels the worker and waits for it to exit.
// Both are idempotent.
//
// Example implementation:
//
//	type MyWorker struct{ cancel context.CancelFunc }
//
//	func (w *MyWorker) Start(ctx context.Context) {
//	    ctx, w.cancel = context.WithCancel(ctx)
//	    go w.loop(ctx)
//	}
type Worker interface {
	Start(ctx context.Context)
	Stop()
}
