// Package pipeline orchestrates one full selection run: 순위 수집 → 후보
// 확정 → 종목별 데이터 수집 → 기준 평가 → 테마 분석 → 내보내기 → 알림.
//
// 동시성 모델: KIS 호출은 토큰과 호출 쿼터를 공유하므로 엄격히 순차,
// 독립 외부 서비스(환율, 시장 컨텍스트)만 병렬 워커로 돌린다. 전체 실행은
// wall-clock 타임아웃으로 감싼다.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/sentinel/backend/internal/criteria"
	"github.com/wonny/sentinel/backend/internal/export"
	"github.com/wonny/sentinel/backend/internal/external/exim"
	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/internal/external/naver"
	"github.com/wonny/sentinel/backend/internal/fundamental"
	"github.com/wonny/sentinel/backend/internal/notify"
	"github.com/wonny/sentinel/backend/internal/ranking"
	"github.com/wonny/sentinel/backend/internal/theme"
	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/logger"
	"github.com/wonny/sentinel/backend/pkg/redis"
)

const top30Size = 30

// 스캔 대상 시장. 모든 순위/후보군은 코스피·코스닥을 함께 본다.
var scanMarkets = []string{kis.MarketKOSPI, kis.MarketKOSDAQ}

// marketFetcher is the KIS surface the runner needs. 테스트에서 가짜로 대체.
type marketFetcher interface {
	VolumeRanking(ctx context.Context, market string) ([]kis.RankedStock, error)
	TradingValueRanking(ctx context.Context, market string) ([]kis.RankedStock, error)
	FluctuationRanking(ctx context.Context, market string) ([]kis.RankedStock, error)
	FallingRanking(ctx context.Context, market string) ([]kis.RankedStock, error)
	CurrentPrice(ctx context.Context, code string) (*kis.PriceSnapshot, error)
	DailyChart(ctx context.Context, code string, days int) ([]kis.DailyBar, error)
	InvestorFlows(ctx context.Context, code string) ([]kis.InvestorFlow, error)
	FinancialRatios(ctx context.Context, code string) ([]kis.FinancialRatio, error)
}

// contextFetcher is the Naver surface. 베스트에포트.
type contextFetcher interface {
	FetchMarketContext(ctx context.Context) (*naver.MarketContext, error)
}

// fxFetcher is the exchange-rate surface. 베스트에포트.
type fxFetcher interface {
	GetRates(ctx context.Context, date time.Time) (*exim.Rates, error)
}

// Runner wires the pipeline stages.
type Runner struct {
	market   marketFetcher
	engine   *criteria.Engine
	themes   theme.Service  // nil이면 테마 분석 생략
	fx       fxFetcher      // nil이면 환율 생략
	naver    contextFetcher // nil이면 시장 컨텍스트 생략
	notifier notify.Notifier
	exporter *export.Exporter
	cache    *redis.Cache
	cfg      config.PipelineConfig
	logger   *logger.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Themes   theme.Service
	FX       fxFetcher
	Naver    contextFetcher
	Notifier notify.Notifier
	Cache    *redis.Cache
}

// NewRunner builds a runner. market, engine, exporter는 필수.
func NewRunner(market marketFetcher, engine *criteria.Engine, exporter *export.Exporter, cfg config.PipelineConfig, log *logger.Logger, opts Options) *Runner {
	return &Runner{
		market:   market,
		engine:   engine,
		themes:   opts.Themes,
		fx:       opts.FX,
		naver:    opts.Naver,
		notifier: opts.Notifier,
		exporter: exporter,
		cache:    opts.Cache,
		cfg:      cfg,
		logger:   log,
	}
}

// Run executes one full pipeline pass and exports the snapshot.
func (r *Runner) Run(ctx context.Context) (*export.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	started := time.Now()
	r.logger.Info("Pipeline run started")

	// 독립 서비스는 병렬로 — KIS 순차 그룹과는 자원을 공유하지 않는다.
	var (
		wg        sync.WaitGroup
		fxRates   *exim.Rates
		marketCtx *naver.MarketContext
	)
	sideJobs := make(chan func(), 2)
	if r.fx != nil {
		sideJobs <- func() {
			rates, err := r.fx.GetRates(ctx, time.Now())
			if err != nil {
				r.logger.WithError(err).Warn("Exchange rate fetch failed")
				return
			}
			fxRates = rates
		}
	}
	if r.naver != nil {
		sideJobs <- func() {
			mc, err := r.naver.FetchMarketContext(ctx)
			if err != nil {
				r.logger.WithError(err).Warn("Market context fetch failed")
				return
			}
			marketCtx = mc
		}
	}
	close(sideJobs)

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range sideJobs {
				job()
			}
		}()
	}

	// KIS 순차 그룹: 순위 수집 (시장별) → 후보군 확정 → 종목별 수집
	uni, err := r.buildUniverse(ctx)
	if err != nil {
		wg.Wait()
		return nil, err
	}

	data, fundamentals := r.collectStockData(ctx, uni.candidates)

	wg.Wait()

	verdicts := r.engine.EvaluateAll(uni.candidates, data, uni.top30)

	snap := &export.Snapshot{
		Candidates:   uni.candidates,
		Verdicts:     verdicts,
		Rising:       uni.rising,
		Falling:      uni.falling,
		Fundamentals: fundamentals,
		Exchange:     fxRates,
	}

	if r.themes != nil {
		analysis, err := r.themes.Analyze(ctx, buildThemeContext(snap, marketCtx))
		if err != nil {
			// 분석 실패는 결과 저하일 뿐
			r.logger.WithError(err).Warn("Theme analysis failed, continuing without it")
		} else {
			snap.Theme = analysis
		}
	}

	if err := r.exporter.Write(snap); err != nil {
		return nil, err
	}

	if r.notifier != nil {
		res := notify.SendAll(ctx, r.notifier, r.logger, buildMessages(snap))
		r.logger.WithFields(map[string]interface{}{
			"sent":   res.Sent,
			"failed": res.Failed,
		}).Info("Notifications dispatched")
	}

	r.logger.WithFields(map[string]interface{}{
		"candidates": len(uni.candidates),
		"duration":   time.Since(started).Round(time.Second).String(),
	}).Info("Pipeline run finished")
	return snap, nil
}

// universe is the merged ranking result across markets.
type universe struct {
	candidates []kis.RankedStock
	rising     []kis.RankedStock   // 상승 AND 거래량/거래대금 상위 교집합
	falling    []kis.RankedStock   // 하락 AND 거래량/거래대금 상위 교집합
	top30      map[string]struct{} // 시장별 거래대금 상위 30 합집합
}

// buildUniverse runs the ranking calls sequentially per market and merges
// them. 스캔 우선순위: 거래량 → 거래대금 → 상승률 → 하락률, 시장 순서는
// 코스피 → 코스닥. 거래대금 상위 30은 시장별로 뽑아 합친다.
func (r *Runner) buildUniverse(ctx context.Context) (*universe, error) {
	var volume, value, fluct, falling []kis.RankedStock
	top30 := make(map[string]struct{})

	for _, market := range scanMarkets {
		vol, err := r.market.VolumeRanking(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("pipeline: volume ranking %s: %w", kis.MarketName(market), err)
		}
		val, err := r.market.TradingValueRanking(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("pipeline: trading value ranking %s: %w", kis.MarketName(market), err)
		}
		fl, err := r.market.FluctuationRanking(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("pipeline: fluctuation ranking %s: %w", kis.MarketName(market), err)
		}
		fall, err := r.market.FallingRanking(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("pipeline: falling ranking %s: %w", kis.MarketName(market), err)
		}

		for code := range ranking.Codes(ranking.TopN(val, top30Size)) {
			top30[code] = struct{}{}
		}
		volume = append(volume, vol...)
		value = append(value, val...)
		fluct = append(fluct, fl...)
		falling = append(falling, fall...)
	}

	liquid := ranking.MergeUniverse(volume, value)
	uni := &universe{
		candidates: ranking.MergeUniverse(volume, value, fluct),
		rising:     ranking.FilterCross(fluct, liquid),
		falling:    ranking.FilterCross(falling, liquid),
		top30:      top30,
	}

	r.logger.WithFields(map[string]interface{}{
		"volume":      len(volume),
		"value":       len(value),
		"fluctuation": len(fluct),
		"rising":      len(uni.rising),
		"falling":     len(uni.falling),
		"candidates":  len(uni.candidates),
	}).Info("Candidate universe built")

	return uni, nil
}

// collectStockData fetches per-stock slices sequentially. 개별 실패는 해당
// 종목만 저하시키고 계속 진행한다. 수집한 스냅샷/재무비율/일봉으로 종목별
// 펀더멘털도 함께 만든다.
func (r *Runner) collectStockData(ctx context.Context, candidates []kis.RankedStock) (map[string]criteria.StockData, map[string]fundamental.Fundamental) {
	data := make(map[string]criteria.StockData, len(candidates))
	fundamentals := make(map[string]fundamental.Fundamental, len(candidates))
	today := time.Now().Format("20060102")

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			r.logger.Warn("Run deadline reached during stock data collection")
			break
		}
		code := candidate.Code

		var sd criteria.StockData

		snapshot, err := r.market.CurrentPrice(ctx, code)
		if err != nil {
			r.logger.WithError(err).WithField("code", code).Warn("Current price fetch failed")
		} else {
			sd.Snapshot = snapshot
		}

		sd.Bars = r.dailyBars(ctx, code, today)

		flows, err := r.market.InvestorFlows(ctx, code)
		if err != nil {
			r.logger.WithError(err).WithField("code", code).Warn("Investor flow fetch failed")
		} else if len(flows) > 0 {
			sd.Flow = &flows[0]
		}

		ratios, err := r.market.FinancialRatios(ctx, code)
		if err != nil {
			r.logger.WithError(err).WithField("code", code).Warn("Financial ratio fetch failed")
		}

		data[code] = sd
		fundamentals[code] = fundamental.Build(code, sd.Snapshot, ratios, sd.Bars)
	}
	return data, fundamentals
}

// dailyBars fetches the chart with a Redis day-cache in front.
func (r *Runner) dailyBars(ctx context.Context, code, today string) []kis.DailyBar {
	if r.cache != nil {
		var cached []kis.DailyBar
		hit, err := r.cache.Get(ctx, redis.DailyBarsKey(code, today), &cached)
		if err == nil && hit {
			return cached
		}
	}

	bars, err := r.market.DailyChart(ctx, code, r.cfg.HistoryDays)
	if err != nil {
		r.logger.WithError(err).WithField("code", code).Warn("Daily chart fetch failed")
		return nil
	}

	if r.cache != nil && len(bars) > 0 {
		if err := r.cache.Set(ctx, redis.DailyBarsKey(code, today), bars, redis.TTLDaily); err != nil {
			r.logger.WithError(err).Debug("Daily bar cache write failed")
		}
	}
	return bars
}

// buildThemeContext renders the LLM input payload.
func buildThemeContext(snap *export.Snapshot, mc *naver.MarketContext) string {
	var b strings.Builder

	if mc != nil {
		for _, idx := range mc.Indices {
			fmt.Fprintf(&b, "%s %.2f (%+.2f%%)\n", idx.Name, idx.Value, idx.ChangeRate)
		}
		for _, h := range mc.Headlines {
			fmt.Fprintf(&b, "뉴스: %s\n", h.Title)
		}
	}

	b.WriteString("상위 후보 종목:\n")
	limit := len(snap.Candidates)
	if limit > 30 {
		limit = 30
	}
	for _, c := range snap.Candidates[:limit] {
		fmt.Fprintf(&b, "- %s(%s, %s) %+.1f%%", c.Name, c.Code, c.Market, c.ChangeRate)
		if v, ok := snap.Verdicts[c.Code]; ok {
			fmt.Fprintf(&b, " 충족 %d/8", v.MetCount())
		}
		b.WriteString("\n")
	}

	writeCrossSection(&b, "상승 주도주 (상승률 AND 유동성 상위):", snap.Rising)
	writeCrossSection(&b, "하락 주도주 (하락률 AND 유동성 상위):", snap.Falling)
	return b.String()
}

// writeCrossSection appends one cross-set block, 최대 10종목.
func writeCrossSection(b *strings.Builder, title string, stocks []kis.RankedStock) {
	if len(stocks) == 0 {
		return
	}
	b.WriteString(title + "\n")
	limit := len(stocks)
	if limit > 10 {
		limit = 10
	}
	for _, s := range stocks[:limit] {
		fmt.Fprintf(b, "- %s(%s, %s) %+.1f%%\n", s.Name, s.Code, s.Market, s.ChangeRate)
	}
}

// buildMessages formats the notification batch.
func buildMessages(snap *export.Snapshot) []string {
	var allMet []criteria.StockVerdict
	for _, v := range snap.Verdicts {
		if v.AllMet {
			allMet = append(allMet, v)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>📈 종목 선정 결과</b> (%s)\n", snap.GeneratedAt)
	fmt.Fprintf(&b, "후보 %d종목 중 전 기준 충족 %d종목\n", len(snap.Candidates), len(allMet))
	for _, v := range allMet {
		fmt.Fprintf(&b, "• %s(%s)\n", v.Name, v.Code)
	}
	messages := []string{b.String()}

	if snap.Exchange != nil && len(snap.Exchange.Rates) > 0 {
		var fx strings.Builder
		fx.WriteString("💱 <b>환율</b>\n")
		for _, rate := range snap.Exchange.Rates {
			unit := ""
			if rate.Is100 {
				unit = "(100)"
			}
			fmt.Fprintf(&fx, "%s%s: %.2f원\n", rate.Currency, unit, rate.Rate)
		}
		messages = append(messages, fx.String())
	}

	if snap.Theme != nil {
		var th strings.Builder
		th.WriteString("🧭 <b>테마 분석</b>\n")
		th.WriteString(snap.Theme.MarketSummary + "\n")
		for _, tm := range snap.Theme.Themes {
			names := make([]string, 0, len(tm.LeaderStocks))
			for _, s := range tm.LeaderStocks {
				names = append(names, s.Name)
			}
			fmt.Fprintf(&th, "• %s: %s\n", tm.Name, strings.Join(names, ", "))
		}
		messages = append(messages, th.String())
	}

	return messages
}
