package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/sentinel/backend/internal/api"
	"github.com/wonny/sentinel/backend/internal/scheduler"
)

// serveCmd runs the API server plus the morning schedule.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버와 스케줄러 시작",
	Long: `읽기 전용 API 서버를 시작하고 아침 선정 잡을 스케줄합니다.

Endpoints:
  GET  /healthz                      - Health check
  GET  /api/v1/latest                - 최신 선정 결과
  GET  /api/v1/history               - 히스토리 인덱스
  GET  /api/v1/history/{name}        - 과거 스냅샷
  GET  /api/v1/token/status          - KIS 토큰 상태
  GET  /api/v1/jobs                  - 등록된 잡 목록
  POST /api/v1/jobs/{name}/run       - 잡 즉시 실행

Example:
  go run ./cmd/sentinel serve
  go run ./cmd/sentinel serve --port 8091`,
	RunE: runServe,
}

var (
	servePort     string
	serveSchedule string
	serveIntraday bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "선정 잡 cron 표현식 (기본: 평일 07:30)")
	serveCmd.Flags().BoolVar(&serveIntraday, "intraday", false, "장중 재스캔 잡도 등록 (평일 9-15시 매시)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if servePort != "" {
		port = servePort
	}

	sched := scheduler.New(a.log)
	if err := sched.AddJob(scheduler.NewMorningJob(a.runner, serveSchedule)); err != nil {
		return fmt.Errorf("register morning job: %w", err)
	}
	if serveIntraday {
		if err := sched.AddJob(scheduler.NewIntradayJob(a.runner, "")); err != nil {
			return fmt.Errorf("register intraday job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	handlers := api.NewHandlers(a.cfg.Export.OutputDir, a.tokens, sched, a.log)
	server := api.NewServer(port, api.NewRouter(handlers, a.log), a.log)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
