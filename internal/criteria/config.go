package criteria

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the rule thresholds. 기본값은 운영에서 쓰는 값이며, YAML
// 파일로 덮어쓸 수 있다.
type Config struct {
	// 끼 보유: 상한가 판정 등락률 (%)
	LimitUpRate float64 `yaml:"limit_up_rate"`
	// 끼 보유: 대형 거래대금일 기준 (원)
	BigDayTradingValue int64 `yaml:"big_day_trading_value"`
	// 끼 보유: 대형 거래대금일의 장중 상승률 기준 (%)
	BigDayIntradayRate float64 `yaml:"big_day_intraday_rate"`
	// 시가총액 밴드 (원, 양끝 포함)
	MarketCapFloor int64 `yaml:"market_cap_floor"`
	MarketCapCeil  int64 `yaml:"market_cap_ceil"`
	// 공매도 경고 기준 비중 (%)
	ShortRatioWarn float64 `yaml:"short_ratio_warn"`
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		LimitUpRate:        29.0,
		BigDayTradingValue: 50_000_000_000, // 500억
		BigDayIntradayRate: 10.0,
		MarketCapFloor:     300_000_000_000,    // 3천억
		MarketCapCeil:      10_000_000_000_000, // 10조
		ShortRatioWarn:     5.0,
	}
}

// LoadConfig reads thresholds from a YAML file. 알 수 없는 키는 에러 —
// 오타로 기준이 조용히 무시되는 것을 막는다.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("criteria: open config: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("criteria: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects thresholds that would make rules vacuous.
func (c Config) Validate() error {
	if c.LimitUpRate <= 0 {
		return fmt.Errorf("criteria: limit_up_rate must be positive")
	}
	if c.BigDayTradingValue <= 0 {
		return fmt.Errorf("criteria: big_day_trading_value must be positive")
	}
	if c.MarketCapFloor < 0 || c.MarketCapCeil <= c.MarketCapFloor {
		return fmt.Errorf("criteria: market cap band [%d, %d] is invalid", c.MarketCapFloor, c.MarketCapCeil)
	}
	if c.ShortRatioWarn <= 0 {
		return fmt.Errorf("criteria: short_ratio_warn must be positive")
	}
	return nil
}
