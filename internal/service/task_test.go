package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorfeed/pkg/logger"
)

func TestTask_WaitReturnsResult(t *testing.T) {
	r := NewRunner(logger.NewNop())
	task := Start(r, "answer", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	got, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	require.NoError(t, r.Shutdown(context.Background()))
}

func TestTask_WaitReturnsError(t *testing.T) {
	r := NewRunner(logger.NewNop())
	task := Start(r, "broken", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("boom")
	})

	_, err := task.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestTask_OutlivesCaller(t *testing.T) {
	r := NewRunner(logger.NewNop())
	callerCtx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	task := Start(r, "detached", func(ctx context.Context) (bool, error) {
		<-release
		return ctx.Err() == nil, nil
	})

	cancel()
	_, err := task.Wait(callerCtx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	alive, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestTask_Cancel(t *testing.T) {
	r := NewRunner(logger.NewNop())
	task := Start(r, "long", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	task.Cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after cancel")
	}
	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_ShutdownCancelsStragglers(t *testing.T) {
	r := NewRunner(logger.NewNop())
	task := Start(r, "straggler", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-task.Done():
	default:
		t.Fatal("task still running after shutdown")
	}
}
