package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

type countingJob struct {
	name     string
	failures int32
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return "@daily" }

func (j *countingJob) Run(context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.Nop()).WithRetry(2, time.Millisecond)
}

func TestScheduler_AddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddJob(&badScheduleJob{})
	assert.Error(t, err)
	assert.Empty(t, s.GetAllJobs())
}

type badScheduleJob struct{ countingJob }

func (*badScheduleJob) Schedule() string { return "not a cron" }
func (*badScheduleJob) Name() string     { return "bad" }

func TestScheduler_RunJobRetries(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		success  bool
		calls    int32
	}{
		{"first try", 0, true, 1},
		{"recovers on retry", 2, true, 3},
		{"gives up", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &countingJob{name: "job", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			res, err := s.RunJob(context.Background(), "job")
			require.NoError(t, err)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.calls, job.calls.Load())
			assert.Equal(t, int(tt.calls), res.Attempts)
			assert.Equal(t, TriggerManual, res.Trigger)

			stats := s.GetJobStats()["job"]
			assert.Equal(t, 1, stats.TotalRuns)
			if tt.success {
				assert.NotNil(t, stats.LastSuccess)
				assert.Zero(t, stats.ConsecutiveFailures)
			} else {
				assert.Equal(t, "boom", res.Error)
				assert.NotNil(t, stats.LastFailure)
				assert.Equal(t, 1, stats.ConsecutiveFailures)
			}
		})
	}
}

func TestScheduler_RunJobUnknown(t *testing.T) {
	_, err := newTestScheduler().RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduler_CancelledRetry(t *testing.T) {
	s := New(logger.Nop()).WithRetry(3, time.Hour)
	job := &countingJob{name: "job", failures: 10}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.RunJob(ctx, "job")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int32(1), job.calls.Load())
	assert.Equal(t, context.Canceled.Error(), res.Error)
}

type summaryJob struct{ countingJob }

func (j *summaryJob) Summary() string { return "3 constituents" }

func TestScheduler_RunJobSummary(t *testing.T) {
	s := newTestScheduler()
	job := &summaryJob{countingJob{name: "refresh", failures: 1}}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJob(context.Background(), "refresh")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "3 constituents", res.Summary)
	assert.Equal(t, "3 constituents", s.GetJobStats()["refresh"].LastSummary)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-12)

	last, ok := h.Last()
	require.True(t, ok)
	assert.False(t, last.Success)
	assert.Equal(t, 1, h.ConsecutiveFailures())

	h.AddResult(JobResult{Success: false})
	assert.Equal(t, 2, h.ConsecutiveFailures())
	h.AddResult(JobResult{Success: true})
	assert.Zero(t, h.ConsecutiveFailures())
}
