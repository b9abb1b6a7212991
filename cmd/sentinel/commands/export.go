package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sentinel/backend/internal/export"
	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// exportCmd groups export directory maintenance.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "내보내기 디렉터리 관리",
	Long: `내보내기 디렉터리(latest.json, history/)를 관리합니다.

Subcommands:
  prune - 보존 기간 지난 히스토리 삭제 후 인덱스 재생성

Example:
  go run ./cmd/sentinel export prune`,
}

var exportPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "오래된 히스토리 정리",
	RunE:  runExportPrune,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportPruneCmd)
}

func runExportPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	removed, err := export.New(cfg.Export, log).Prune()
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	fmt.Printf("히스토리 %d건 삭제, 인덱스 재생성 완료\n", removed)
	return nil
}
