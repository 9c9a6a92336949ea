package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubExit(t *testing.T) *int {
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })
	return &code
}

func TestRunReverseOrder(t *testing.T) {
	var order []string
	hook := func(name string) Hook {
		return Hook{Name: name, Fn: func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	require.NoError(t, Run(time.Second, hook("db"), hook("poller"), hook("api")))
	assert.Equal(t, []string{"api", "poller", "db"}, order)
}

func TestRunContinuesAfterFailure(t *testing.T) {
	var ran []string
	err := Run(time.Second,
		Hook{Name: "db", Fn: func(ctx context.Context) error { ran = append(ran, "db"); return nil }},
		Hook{Name: "api", Fn: func(ctx context.Context) error { ran = append(ran, "api"); return errors.New("boom") }},
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api: boom")
	assert.Equal(t, []string{"api", "db"}, ran)
}

func TestRunHookSeesDeadline(t *testing.T) {
	err := Run(10*time.Millisecond, Hook{Name: "slow", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestShutdownExitCodes(t *testing.T) {
	code := stubExit(t)
	Shutdown(time.Second)
	assert.Equal(t, 0, *code)

	Shutdown(time.Second, Hook{Name: "api", Fn: func(ctx context.Context) error { return errors.New("boom") }})
	assert.Equal(t, 1, *code)
}

func TestShutdownWithError(t *testing.T) {
	code := stubExit(t)
	called := false
	ShutdownWithError(errors.New("listen failed"), "API server failed",
		Hook{Name: "db", Fn: func(ctx context.Context) error { called = true; return nil }})

	assert.Equal(t, 1, *code)
	assert.True(t, called)
}

func TestWaitForSignalReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WaitForSignal(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not return after cancel")
	}
}
