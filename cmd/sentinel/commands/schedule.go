package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/sentinel/backend/internal/scheduler"
)

// scheduleCmd runs the scheduler daemon without the API server.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "스케줄러 데몬 시작 (API 없이)",
	Long: `선정 잡만 스케줄하는 데몬을 시작합니다.

등록되는 작업:
- morning-selection: 평일 07:30 (장 시작 전 선정)
- intraday-scan:     평일 9-15시 매시 (--intraday 지정 시)

Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/sentinel schedule
  go run ./cmd/sentinel schedule --intraday`,
	RunE: runSchedule,
}

var scheduleIntraday bool

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleIntraday, "intraday", false, "장중 재스캔 잡도 등록")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log)
	if err := sched.AddJob(scheduler.NewMorningJob(a.runner, "")); err != nil {
		return fmt.Errorf("register morning job: %w", err)
	}
	if scheduleIntraday {
		if err := sched.AddJob(scheduler.NewIntradayJob(a.runner, "")); err != nil {
			return fmt.Errorf("register intraday job: %w", err)
		}
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}
