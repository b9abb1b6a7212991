// Package scheduler runs the selection pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

// 장 시작 전 실행: 평일 07:30 KST.
const MorningSchedule = "30 7 * * 1-5"

// 장중 재스캔: 평일 9~15시 매시 정각.
const IntradaySchedule = "0 9-15 * * 1-5"

// Job is one schedulable unit of work.
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error
	Schedule() string
}

// RunRecord is one execution outcome kept in memory for the status API.
type RunRecord struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Scheduler manages cron-scheduled jobs.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	history map[string][]RunRecord
}

// keep only this many run records per job
const historyLimit = 50

// New creates a scheduler in the local timezone.
func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  log,
		jobs:    make(map[string]Job),
		history: make(map[string][]RunRecord),
	}
}

// AddJob registers a job with its cron expression.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", name)
	}

	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("scheduler: schedule job %s: %w", name, err)
	}
	s.jobs[name] = job

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")
	return nil
}

// Start begins cron dispatch.
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started")
	s.cron.Start()
}

// Stop waits for running jobs and halts dispatch.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow triggers a registered job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("scheduler: job %s not found", name)
	}
	go s.runJob(job)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	name := job.Name()
	start := time.Now()
	s.logger.WithField("job", name).Info("Job started")

	err := job.Run(context.Background())

	record := RunRecord{
		JobName:   name,
		StartTime: start,
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		record.Error = err.Error()
	}

	s.mu.Lock()
	records := append(s.history[name], record)
	if len(records) > historyLimit {
		records = records[len(records)-historyLimit:]
	}
	s.history[name] = records
	s.mu.Unlock()

	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"job":      name,
			"duration": record.Duration,
			"error":    err.Error(),
		}).Error("Job failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"duration": record.Duration,
	}).Info("Job completed")
}

// History returns the recent run records of a job, oldest first.
func (s *Scheduler) History(name string) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[name]
	out := make([]RunRecord, len(records))
	copy(out, records)
	return out
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
