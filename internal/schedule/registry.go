package schedule

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key derives the registry key for a resource's recurring check.
func Key(resourceID int64) string {
	return fmt.Sprintf("check-resource-%d", resourceID)
}

type entry struct {
	interval time.Duration
	stop     chan struct{}
}

// Registry owns at most one recurring timer per resource. Register has
// replace semantics, so two timers can never coexist for the same id.
// Each fire runs in its own goroutine; a slow callback never delays the
// next fire or other resources' timers.
type Registry struct {
	log *zap.Logger

	mu     sync.Mutex
	timers map[string]*entry
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:    log,
		timers: make(map[string]*entry),
	}
}

// Register starts a timer firing fn every interval. An existing timer
// for the same resource is cancelled first. Callers pass whole-minute
// intervals; non-positive values fall back to one minute.
func (r *Registry) Register(resourceID int64, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	key := Key(resourceID)

	r.mu.Lock()
	if old, ok := r.timers[key]; ok {
		close(old.stop)
		delete(r.timers, key)
		r.log.Info("timer_replaced", zap.String("key", key))
	}
	e := &entry{interval: interval, stop: make(chan struct{})}
	r.timers[key] = e
	r.mu.Unlock()

	go r.run(key, e, fn)

	r.log.Info("timer_registered",
		zap.String("key", key),
		zap.Duration("interval", interval),
	)
}

func (r *Registry) run(key string, e *entry, fn func()) {
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			go fn()
		}
	}
}

// Unregister cancels the resource's timer; no-op when absent. An
// in-flight callback keeps running to completion.
func (r *Registry) Unregister(resourceID int64) {
	key := Key(resourceID)

	r.mu.Lock()
	e, ok := r.timers[key]
	if ok {
		close(e.stop)
		delete(r.timers, key)
	}
	r.mu.Unlock()

	if ok {
		r.log.Info("timer_unregistered", zap.String("key", key))
	}
}

func (r *Registry) Exists(resourceID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[Key(resourceID)]
	return ok
}

// Interval reports the registered interval for a resource, if any.
func (r *Registry) Interval(resourceID int64) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[Key(resourceID)]
	if !ok {
		return 0, false
	}
	return e.interval, true
}

// StopAll cancels every timer; used on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.timers {
		close(e.stop)
		delete(r.timers, key)
	}
}
