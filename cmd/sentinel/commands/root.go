package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - 한국 주식 종목 선정 파이프라인",
	Long: `Sentinel Unified CLI

KIS Open API 기반 종목 선정 시스템.
거래량/거래대금/등락률 순위에서 후보를 뽑아 9개 기준으로 평가합니다.

Usage:
  go run ./cmd/sentinel [command]

Examples:
  go run ./cmd/sentinel run
  go run ./cmd/sentinel serve
  go run ./cmd/sentinel schedule
  go run ./cmd/sentinel token status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
