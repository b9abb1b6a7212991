package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// runCmd executes one selection pass immediately.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "종목 선정 파이프라인 1회 실행",
	Long: `선정 파이프라인을 즉시 1회 실행합니다.

이 명령어는:
- 거래량/거래대금/등락률 순위로 후보군 구성
- 종목별 시세/일봉/수급 수집 후 9개 기준 평가
- 결과를 latest.json과 히스토리에 내보내기
- 텔레그램 알림 발송 (설정된 경우)

Example:
  go run ./cmd/sentinel run`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	allMet := 0
	for _, v := range snap.Verdicts {
		if v.AllMet {
			allMet++
		}
	}
	fmt.Printf("후보 %d종목 / 전 기준 충족 %d종목\n", len(snap.Candidates), allMet)
	return nil
}
