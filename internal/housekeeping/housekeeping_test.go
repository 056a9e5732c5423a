package housekeeping

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCompleter struct {
	calls atomic.Int64
	err   error
}

func (c *countingCompleter) CompleteEnded(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 2, nil
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New("every now and then", time.UTC, &countingCompleter{})
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	job := &countingCompleter{}
	s, err := New("*/15 * * * *", time.UTC, job)
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	job.err = errors.New("database is locked")
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, int64(2), job.calls.Load())
}

func TestRunFiresOnSchedule(t *testing.T) {
	job := &countingCompleter{}
	s, err := New("@every 1s", time.UTC, job)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
