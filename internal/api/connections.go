package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"zerorag/internal/logging"
	"zerorag/internal/zerotypes"
)

// connectionTracker holds every open SSE connection in a concurrent map
// and periodically reaps ones idle past idleTimeout.
type connectionTracker struct {
	mu      sync.RWMutex
	conns   map[string]*zerotypes.StreamConnection
	idle    time.Duration
	log     logging.Logger
	done    chan struct{}
}

func newConnectionTracker(idleTimeout time.Duration, log logging.Logger) *connectionTracker {
	return &connectionTracker{
		conns: make(map[string]*zerotypes.StreamConnection),
		idle:  idleTimeout,
		log:   log.WithComponent("connections"),
		done:  make(chan struct{}),
	}
}

// register tracks a new connection and returns its ID.
func (t *connectionTracker) register(remoteAddr, userAgent, query string, cancel func()) string {
	id := uuid.New().String()
	now := time.Now()
	t.mu.Lock()
	t.conns[id] = &zerotypes.StreamConnection{
		ConnectionID:   id,
		CreatedAt:      now,
		LastActivityAt: now,
		Status:         zerotypes.ConnectionActive,
		RemoteAddr:     remoteAddr,
		UserAgent:      userAgent,
		Query:          query,
		Cancel:         cancel,
	}
	t.mu.Unlock()
	return id
}

func (t *connectionTracker) touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[id]; ok {
		c.LastActivityAt = time.Now()
	}
}

func (t *connectionTracker) unregister(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

// list returns copies of every tracked connection, safe to serialize.
func (t *connectionTracker) list() []zerotypes.StreamConnection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]zerotypes.StreamConnection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c.Clone())
	}
	return out
}

// close cancels and removes a single tracked connection.
func (t *connectionTracker) close(id string) bool {
	t.mu.Lock()
	c, ok := t.conns[id]
	if ok {
		delete(t.conns, id)
	}
	t.mu.Unlock()
	if ok && c.Cancel != nil {
		c.Cancel()
	}
	return ok
}

// startReaper runs until ctx is cancelled, closing connections idle beyond
// the configured timeout.
func (t *connectionTracker) startReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case <-ticker.C:
				t.reapIdle()
			}
		}
	}()
}

func (t *connectionTracker) reapIdle() {
	now := time.Now()
	t.mu.Lock()
	var stale []string
	for id, c := range t.conns {
		if now.Sub(c.LastActivityAt) > t.idle {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		c := t.conns[id]
		delete(t.conns, id)
		if c.Cancel != nil {
			c.Cancel()
		}
	}
	t.mu.Unlock()
	if len(stale) > 0 {
		t.log.Info("reaped idle streaming connections", "count", len(stale))
	}
}

func (t *connectionTracker) stop() {
	close(t.done)
}
