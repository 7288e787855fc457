/*
Copyright (c) RAVENNA Kit contributors.

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

// Package node owns the coordinator: the single logical event loop a node's
// components run on, and the ordered lifecycle (construction and LIFO
// teardown) of everything hung off it.
package node

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner is the coordinator-runner abstraction (spec section 5, "parallel
// hosts for blocking I/O"): one or more OS threads driving a single logical
// event loop, kept alive by a guard task while idle so the loop does not
// exit out from under work posted to it from elsewhere. Every task added
// with Go shares the runner's cancellation: if one returns an error, every
// other task's context is cancelled and Stop collects the first error.
type Runner struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	post   chan func()
}

// NewRunner creates a Runner whose tasks are all cancelled when parent is
// done or Stop is called.
func NewRunner(parent context.Context) *Runner {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	r := &Runner{group: g, ctx: gctx, cancel: cancel, post: make(chan func(), 64)}
	r.group.Go(r.guard)
	return r
}

// guard is the keep-alive task: it drains work posted from other threads
// onto the loop thread and otherwise blocks on ctx, so errgroup.Wait never
// returns early just because every other task happens to be idle.
func (r *Runner) guard() error {
	for {
		select {
		case <-r.ctx.Done():
			return nil
		case fn := <-r.post:
			fn()
		}
	}
}

// Go adds fn as a task driving the loop, typically a blocking receive loop
// (timebase.Timebase.receiveLoop, rtsp.Server.Serve, rtp.ReceiveSocket.Run).
// fn must return promptly once its context is done.
func (r *Runner) Go(fn func(ctx context.Context) error) {
	r.group.Go(func() error { return fn(r.ctx) })
}

// Post dispatches fn to run on the loop thread from any goroutine. Callers
// must not block inside fn; the whole point of the guard task is that
// handlers still run serialized with everything else posted to the loop.
// Post is a no-op once the runner is stopping.
func (r *Runner) Post(fn func()) {
	select {
	case r.post <- fn:
	case <-r.ctx.Done():
	}
}

// Stop cancels every task's context and waits for all of them, including
// the guard, to return. The first non-nil task error, if any, is returned.
func (r *Runner) Stop() error {
	r.cancel()
	return r.group.Wait()
}
