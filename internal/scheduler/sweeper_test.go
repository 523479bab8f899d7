package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangamirror/internal/mirror"
)

type fakeSweeper struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (f *fakeSweeper) Sweep(_ context.Context, limit int) (mirror.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	return mirror.SweepResult{DeletedRows: 2, DeletedFiles: 2, ChaptersProcessed: 1}, f.err
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRunOncePassesLimit(t *testing.T) {
	fs := &fakeSweeper{}
	r := NewRunner(fs, Config{Interval: time.Minute, Limit: 250})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []int{250}, fs.limits)
	assert.Equal(t, 1, r.Runs())
}

func TestRunOnceWrapsError(t *testing.T) {
	boom := errors.New("db down")
	fs := &fakeSweeper{err: boom}
	r := NewRunner(fs, Config{})

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, DefaultInterval, r.interval)
}

func TestRunOnceCancelled(t *testing.T) {
	fs := &fakeSweeper{}
	r := NewRunner(fs, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.RunOnce(ctx), context.Canceled)
	assert.Zero(t, fs.count())
}

func TestStartRunsUntilCancelled(t *testing.T) {
	fs := &fakeSweeper{}
	r := NewRunner(fs, Config{Interval: 10 * time.Millisecond, Limit: 5})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	assert.Eventually(t, func() bool { return fs.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	r.StopWait(time.Second)

	n := fs.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, fs.count(), "no sweeps after stop")
}
