package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/config"
)

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:    true,
		Interval:   10 * time.Millisecond,
		JobTimeout: time.Second,
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewScheduler(testConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig()
	cfg.Interval = 0
	_, err = NewScheduler(cfg, noop, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig()
	cfg.JobTimeout = 0
	_, err = NewScheduler(cfg, noop, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	var calls atomic.Int32
	s, err := NewScheduler(testConfig(), func(context.Context) error {
		calls.Add(1)
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	job := s.LastJob()
	require.NotNil(t, job)
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, TriggerInterval, job.Trigger)
}

func TestScheduler_RunOnStart(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = time.Hour
	cfg.RunOnStart = true
	ran := make(chan struct{}, 1)
	s, err := NewScheduler(cfg, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("startup pass did not run")
	}
	assert.Eventually(t, func() bool {
		j := s.LastJob()
		return j != nil && j.Status == JobStatusSuccess && j.Trigger == TriggerStartup
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_RecordsOutcome(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status JobStatus
	}{
		{"disabled is skipped", integration.ErrIntegrationDisabled, JobStatusSkipped},
		{"busy is skipped", integration.ErrSyncAlreadyRunning, JobStatusSkipped},
		{"failure", errors.New("remote down"), JobStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(testConfig(), func(context.Context) error { return tt.err }, nil)
			require.NoError(t, err)

			s.execute(context.Background(), TriggerInterval)
			job := s.LastJob()
			require.NotNil(t, job)
			assert.Equal(t, tt.status, job.Status)
			assert.Equal(t, tt.err.Error(), job.Error)
			assert.NotNil(t, job.CompletedAt)
		})
	}
}

func TestScheduler_StopCancelsInFlightPass(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = time.Hour
	cfg.RunOnStart = true
	cfg.JobTimeout = time.Minute
	started := make(chan struct{})
	s, err := NewScheduler(cfg, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	job := s.LastJob()
	require.NotNil(t, job)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, context.Canceled.Error(), job.Error)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s, err := NewScheduler(config.SchedulerConfig{Interval: time.Hour, JobTimeout: time.Second},
		func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Nil(t, s.LastJob())
}
