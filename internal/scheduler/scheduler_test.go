package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	err      error
	runs     atomic.Int32
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func waitForRuns(t *testing.T, job *stubJob, want int32) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for job.runs.Load() < want {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want %d", job.runs.Load(), want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAddJobRejectsDuplicateName(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&stubJob{name: "morning-selection", schedule: MorningSchedule}))

	err := s.AddJob(&stubJob{name: "morning-selection", schedule: MorningSchedule})
	assert.ErrorContains(t, err, "already registered")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.Nop())
	err := s.AddJob(&stubJob{name: "broken", schedule: "not a cron expr"})
	assert.Error(t, err)
}

func TestRunNowRecordsHistory(t *testing.T) {
	s := New(logger.Nop())
	job := &stubJob{name: "ok-job", schedule: MorningSchedule}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunNow("ok-job"))
	waitForRuns(t, job, 1)

	var history []RunRecord
	deadline := time.After(2 * time.Second)
	for len(history) == 0 {
		select {
		case <-deadline:
			t.Fatal("no run record written")
		case <-time.After(10 * time.Millisecond):
		}
		history = s.History("ok-job")
	}
	assert.True(t, history[0].Success)
	assert.Empty(t, history[0].Error)
}

func TestRunNowRecordsFailure(t *testing.T) {
	s := New(logger.Nop())
	job := &stubJob{name: "failing-job", schedule: MorningSchedule, err: errors.New("pipeline: volume ranking: boom")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunNow("failing-job"))
	waitForRuns(t, job, 1)

	var history []RunRecord
	deadline := time.After(2 * time.Second)
	for len(history) == 0 {
		select {
		case <-deadline:
			t.Fatal("no run record written")
		case <-time.After(10 * time.Millisecond):
		}
		history = s.History("failing-job")
	}
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "boom")
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(logger.Nop())
	assert.ErrorContains(t, s.RunNow("missing"), "not found")
}
