// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package authclient

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned by OnAuthStateChange.
type Subscription struct {
	sub    *subscriber
	remove func(uint64)
	once   sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside the callback. It does not wait: a callback already running, or
// one the dispatcher was just starting, may still run after Unsubscribe
// returns. Queued notifications behind it are dropped. Callers that must
// not act on a late notification check their own closed state.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.stop()
		s.remove(s.sub.id)
	})
}

// subscriber is an unbounded FIFO mailbox drained by one goroutine.
type subscriber struct {
	id      uint64
	cb      Callback
	logger  *slog.Logger
	mu      sync.Mutex
	queue   []notification
	wake    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

func newSubscriber(id uint64, cb Callback, logger *slog.Logger) *subscriber {
	return &subscriber{
		id:     id,
		cb:     cb,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) enqueue(n notification) {
	if s.stopped.Load() {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.done)
	}
}

func (s *subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			n, ok := s.next()
			if !ok {
				break
			}
			if s.stopped.Load() {
				return
			}
			s.deliver(n)
		}
	}
}

func (s *subscriber) next() (notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return notification{}, false
	}
	n := s.queue[0]
	s.queue[0] = notification{}
	s.queue = s.queue[1:]
	return n, true
}

func (s *subscriber) deliver(n notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auth state callback panicked",
				"event", string(n.event),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.cb(n.event, n.session)
}
