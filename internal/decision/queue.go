// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package decision

import (
	"context"
	"log/slog"
	"sync"
)

// Queue decouples submission handling from decisioning. Producers
// publish a token and return immediately; a single consumer goroutine
// owns processing and absorbs per-token failures. Callers must not
// assume verification has completed when Enqueue returns.
type Queue struct {
	engine *Engine
	tasks  chan string
	once   sync.Once
	done   chan struct{}
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(engine *Engine, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		engine: engine,
		tasks:  make(chan string, buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the consumer. It drains remaining tasks after the
// context is canceled, then exits.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				q.drain()
				return
			case tok, ok := <-q.tasks:
				if !ok {
					return
				}
				q.process(ctx, tok)
			}
		}
	}()
}

// Enqueue publishes a token for decisioning. Returns false when the
// queue is saturated; the token stays pending and can be re-notified.
func (q *Queue) Enqueue(tok string) bool {
	select {
	case q.tasks <- tok:
		return true
	default:
		slog.Warn("decision queue saturated, dropping notification")
		return false
	}
}

// Close stops accepting tasks and waits for the consumer to finish.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.tasks)
	})
	<-q.done
}

func (q *Queue) drain() {
	for {
		select {
		case tok, ok := <-q.tasks:
			if !ok {
				return
			}
			q.process(context.Background(), tok)
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, tok string) {
	if err := q.engine.ProcessToken(ctx, tok); err != nil {
		slog.Error("token decisioning failed", "error", err)
	}
}
