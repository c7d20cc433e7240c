package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alxayo/hlssink/internal/logger"
)

// Manager dispatches events to every Notifier registered for the event's
// type, through a bounded worker pool. Adapted from the teacher's
// hooks.HookManager/executionPool: same registration API, same fire-and-log
// dispatch, concurrency limiting preserved verbatim.
type Manager struct {
	mu        sync.RWMutex
	notifiers map[EventType][]Notifier
	pool      *executionPool
}

// NewManager creates a Manager with the given concurrency bound.
func NewManager(cfg Config) *Manager {
	return &Manager{
		notifiers: make(map[EventType][]Notifier),
		pool:      newExecutionPool(cfg.Concurrency),
	}
}

// Register adds n to the dispatch list for eventType.
func (m *Manager) Register(eventType EventType, n Notifier) error {
	if n == nil {
		return fmt.Errorf("notify: cannot register nil notifier")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers[eventType] = append(m.notifiers[eventType], n)
	return nil
}

// Unregister removes the notifier with the given id from eventType's list.
func (m *Manager) Unregister(eventType EventType, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.notifiers[eventType]
	for i, n := range list {
		if n.ID() == id {
			m.notifiers[eventType] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Emit dispatches e to every notifier registered for e.Type, asynchronously,
// through the bounded pool. It does not block on notifier completion.
func (m *Manager) Emit(ctx context.Context, e Event) {
	m.mu.RLock()
	list := make([]Notifier, len(m.notifiers[e.Type]))
	copy(list, m.notifiers[e.Type])
	m.mu.RUnlock()

	for _, n := range list {
		m.pool.execute(ctx, n, e)
	}
}

// Close waits for all in-flight notifier executions to finish.
func (m *Manager) Close() {
	m.pool.close()
}

// executionPool bounds the number of concurrently running notifier calls.
type executionPool struct {
	workers chan struct{}
	wg      sync.WaitGroup
}

func newExecutionPool(size int) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{workers: make(chan struct{}, size)}
}

func (p *executionPool) execute(ctx context.Context, n Notifier, e Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.workers <- struct{}{}
		defer func() { <-p.workers }()

		start := time.Now()
		err := n.Notify(ctx, e)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("notifier execution failed", "notifier_type", n.Type(), "notifier_id", n.ID(), "event", e.String(), "elapsed_ms", elapsed.Milliseconds(), "err", err)
		} else {
			logger.Debug("notifier executed", "notifier_type", n.Type(), "notifier_id", n.ID(), "event", e.String(), "elapsed_ms", elapsed.Milliseconds())
		}
	}()
}

func (p *executionPool) close() {
	p.wg.Wait()
}
