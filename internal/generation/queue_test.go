package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, InitialBackoff: time.Millisecond}
}

func TestQueueRunsTask(t *testing.T) {
	q := NewQueue(1, 4, testPolicy(1), nil)
	q.Start(context.Background())

	done := make(chan struct{})
	err := q.Submit("ok", func(context.Context) error {
		close(done)
		return nil
	}, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	q.Close()
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue(1, 4, testPolicy(3), nil)
	q.Start(context.Background())

	var attempts atomic.Int32
	done := make(chan struct{})
	failed := false

	err := q.Submit("flaky", func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, func(error) { failed = true })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never succeeded")
	}
	q.Close()

	assert.Equal(t, int32(3), attempts.Load())
	assert.False(t, failed, "onFailure must not fire for an eventual success")
}

func TestQueueExhaustsRetriesThenFails(t *testing.T) {
	q := NewQueue(1, 4, testPolicy(2), nil)
	q.Start(context.Background())

	var attempts atomic.Int32
	var mu sync.Mutex
	var failureErr error
	done := make(chan struct{})

	err := q.Submit("doomed", func(context.Context) error {
		attempts.Add(1)
		return errors.New("permanent")
	}, func(err error) {
		mu.Lock()
		failureErr = err
		mu.Unlock()
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onFailure never fired")
	}
	q.Close()

	assert.Equal(t, int32(2), attempts.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.EqualError(t, failureErr, "permanent")
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, 1, testPolicy(1), nil)
	// Not started: nothing drains the buffer.

	require.NoError(t, q.Submit("first", func(context.Context) error { return nil }, nil))
	err := q.Submit("second", func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}
