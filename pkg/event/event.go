// Package event is an in-process publish/subscribe bus for domain events.
package event

import (
	"sync"

	"github.com/shashiranjanraj/phonedeals/pkg/logger"
)

// Name identifies an event, e.g. "user.registered".
type Name string

// Handler receives an event payload.
type Handler func(payload any)

// Submitter is satisfied by *workerpool.Pool.
type Submitter interface {
	Run(name string, job func() error) error
}

// Bus dispatches events to listeners.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
	async    Submitter
}

// New returns a Bus. When async is non-nil FireAsync hands listeners to it;
// otherwise each listener gets its own goroutine.
func New(async Submitter) *Bus {
	return &Bus{handlers: map[Name][]Handler{}, async: async}
}

// Listen registers h for name.
func (b *Bus) Listen(name Name, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

func (b *Bus) listeners(name Name) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	return hs
}

// Fire calls every listener synchronously, in registration order.
func (b *Bus) Fire(name Name, payload any) {
	for _, h := range b.listeners(name) {
		h(payload)
	}
}

// FireAsync dispatches without waiting for listeners.
func (b *Bus) FireAsync(name Name, payload any) {
	for _, h := range b.listeners(name) {
		h := h
		if b.async == nil {
			go h(payload)
			continue
		}
		err := b.async.Run(string(name), func() error {
			h(payload)
			return nil
		})
		if err != nil {
			logger.Warn("event dropped", "event", name, "error", err)
		}
	}
}

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[Name][]Handler{}
}
