package scheduler

import (
	"context"

	"github.com/wonny/sentinel/backend/internal/export"
)

// pipelineRunner is what the morning job needs from the pipeline.
type pipelineRunner interface {
	Run(ctx context.Context) (*export.Snapshot, error)
}

// PipelineJob runs the selection pipeline on a cron schedule.
type PipelineJob struct {
	runner   pipelineRunner
	name     string
	schedule string
}

// NewMorningJob is the pre-open selection run, 평일 07:30.
func NewMorningJob(runner pipelineRunner, schedule string) *PipelineJob {
	if schedule == "" {
		schedule = MorningSchedule
	}
	return &PipelineJob{runner: runner, name: "morning-selection", schedule: schedule}
}

// NewIntradayJob re-scans during market hours, 평일 9~15시 매시 정각.
func NewIntradayJob(runner pipelineRunner, schedule string) *PipelineJob {
	if schedule == "" {
		schedule = IntradaySchedule
	}
	return &PipelineJob{runner: runner, name: "intraday-scan", schedule: schedule}
}

func (j *PipelineJob) Name() string     { return j.name }
func (j *PipelineJob) Schedule() string { return j.schedule }

func (j *PipelineJob) Run(ctx context.Context) error {
	_, err := j.runner.Run(ctx)
	return err
}
