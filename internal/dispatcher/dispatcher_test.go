package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, l *Listener) *Event {
	select {
	case ev, ok := <-l.Receive():
		require.True(t, ok, "listener channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroadcastReachesAllListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	a := d.NewListener()
	b := d.NewListener()
	defer a.Close()
	defer b.Close()

	d.BroadcastEvent("climate.tesy_convector", 21.0)

	for _, l := range []*Listener{a, b} {
		ev := receive(t, l)
		assert.Equal(t, "climate.tesy_convector", ev.Source)
		assert.Equal(t, 21.0, ev.Data)
	}
}

func TestCloseDeregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	l := d.NewListener()
	l.Close()
	l.Close()

	select {
	case _, ok := <-l.Receive():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("listener channel was not closed")
	}
}

func TestSlowListenerDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := New(ctx)

	l := d.NewListener()
	for i := 0; i < 40; i++ {
		d.BroadcastEvent("src", i)
	}
	// once the queue drains the overflow has been handled
	require.Eventually(t, func() bool { return len(d.broadcast) == 0 }, time.Second, time.Millisecond)

	count := 0
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-l.Receive():
			if !ok {
				assert.Equal(t, 32, count)
				return
			}
			count++
		case <-timeout:
			t.Fatal("slow listener was never dropped")
		}
	}
}

func TestStoppedDispatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := New(ctx)
	l := d.NewListener()
	cancel()

	select {
	case _, ok := <-l.Receive():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("listener not closed on shutdown")
	}

	// must not block once stopped
	d.BroadcastEvent("src", 1)
	late := d.NewListener()
	_, ok := <-late.Receive()
	assert.False(t, ok)
	late.Close()
}
