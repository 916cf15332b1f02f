package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/phonedeals/pkg/event"
	"github.com/shashiranjanraj/phonedeals/pkg/workerpool"
)

func TestFireCallsListenersInOrder(t *testing.T) {
	bus := event.New(nil)
	var got []int
	bus.Listen("user.registered", func(any) { got = append(got, 1) })
	bus.Listen("user.registered", func(any) { got = append(got, 2) })
	bus.Listen("other", func(any) { got = append(got, 99) })

	bus.Fire("user.registered", nil)
	assert.Equal(t, []int{1, 2}, got)
}

func TestFireAsyncThroughPool(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Shutdown()
	bus := event.New(pool)

	var wg sync.WaitGroup
	wg.Add(1)
	var payload any
	bus.Listen("audit.recorded", func(p any) {
		payload = p
		wg.Done()
	})

	bus.FireAsync("audit.recorded", "entry")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		assert.Equal(t, "entry", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never ran")
	}
}

func TestFlush(t *testing.T) {
	bus := event.New(nil)
	called := false
	bus.Listen("x", func(any) { called = true })
	bus.Flush()
	bus.Fire("x", nil)
	assert.False(t, called)
}
