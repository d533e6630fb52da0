package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evekb/killfeed/internal/domain/job"
	"github.com/evekb/killfeed/internal/queue"
)

func TestScheduler_CancellationIsCleanShutdown(t *testing.T) {
	s := NewScheduler(SchedulerOptions{
		Queue:           queue.New(4),
		RefreshInterval: time.Hour,
		FetchInterval:   time.Hour,
		ResolveInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}

func TestScheduler_EnqueuesOnTicks(t *testing.T) {
	q := queue.New(64)
	s := NewScheduler(SchedulerOptions{
		Queue:           q,
		RefreshInterval: 10 * time.Millisecond,
		FetchInterval:   time.Hour,
		ResolveInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for q.Len() < 3 {
		select {
		case <-deadline:
			t.Fatal("scheduler produced no ticks")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	require.NoError(t, <-done)

	for q.Len() > 0 {
		j, ok := q.Dequeue(context.Background())
		require.True(t, ok)
		assert.Equal(t, job.KindRefresh, j.Kind)
	}
}

func TestScheduler_FasterCadenceTicksMoreOften(t *testing.T) {
	q := queue.New(256)
	s := NewScheduler(SchedulerOptions{
		Queue:           q,
		RefreshInterval: 5 * time.Millisecond,
		FetchInterval:   25 * time.Millisecond,
		ResolveInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	counts := map[job.Kind]int{}
	for q.Len() > 0 {
		j, ok := q.Dequeue(context.Background())
		require.True(t, ok)
		counts[j.Kind]++
	}

	assert.Greater(t, counts[job.KindRefresh], counts[job.KindFetchKillmails],
		"refresh ticks should outnumber fetch ticks")
	assert.Positive(t, counts[job.KindFetchKillmails])
	assert.Zero(t, counts[job.KindResolveKillmails])
}
