package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// tokenCmd groups the access-token operations.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "KIS 액세스 토큰 관리",
	Long: `KIS 액세스 토큰의 상태를 조회하거나 갱신합니다.

Subcommands:
  status  - 토큰 상태 조회
  refresh - 토큰 갱신 (23시간 재발급 제한 적용)

Example:
  go run ./cmd/sentinel token status
  go run ./cmd/sentinel token refresh
  go run ./cmd/sentinel token refresh --force`,
}

var tokenForce bool

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "토큰 상태 조회",
	RunE:  tokenStatus,
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "토큰 갱신",
	RunE:  tokenRefresh,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenStatusCmd)
	tokenCmd.AddCommand(tokenRefreshCmd)

	tokenRefreshCmd.Flags().BoolVar(&tokenForce, "force", false, "재발급 제한을 무시하고 강제 갱신")
}

func tokenStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	status := a.tokens.Status(context.Background())
	fmt.Printf("토큰 보유:   %v\n", status.HasToken)
	fmt.Printf("유효:        %v\n", status.Valid)
	fmt.Printf("갱신 가능:   %v\n", status.CanRefresh)
	if status.IssuedAt != "" {
		fmt.Printf("발급 시각:   %s\n", status.IssuedAt)
	}
	if status.ExpiresAt != "" {
		fmt.Printf("만료 시각:   %s\n", status.ExpiresAt)
	}
	fmt.Printf("잔여 시간:   %.1fh\n", status.RemainingHours)
	return nil
}

func tokenRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if tokenForce {
		if err := a.tokens.ForceRefresh(ctx); err != nil {
			return fmt.Errorf("force refresh: %w", err)
		}
	} else {
		if err := a.tokens.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
	}

	fmt.Println("토큰 갱신 완료")
	return tokenStatus(cmd, args)
}
