package commands

import (
	"fmt"

	"github.com/wonny/sentinel/backend/internal/credstore"
	"github.com/wonny/sentinel/backend/internal/criteria"
	"github.com/wonny/sentinel/backend/internal/export"
	"github.com/wonny/sentinel/backend/internal/external/exim"
	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/internal/external/naver"
	"github.com/wonny/sentinel/backend/internal/notify"
	"github.com/wonny/sentinel/backend/internal/pipeline"
	"github.com/wonny/sentinel/backend/internal/theme"
	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/database"
	"github.com/wonny/sentinel/backend/pkg/httputil"
	"github.com/wonny/sentinel/backend/pkg/logger"
	"github.com/wonny/sentinel/backend/pkg/redis"
)

// app holds the wired object graph shared by the subcommands.
// DB/Redis/테마/알림은 설정이 없으면 빠지고 파이프라인은 저하 모드로 돈다.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	tokens *kis.TokenManager
	market *kis.Client
	runner *pipeline.Runner
}

// newApp wires config → logger → stores → KIS client → pipeline runner.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 토큰 저장소: Postgres(공유) → 로컬 파일 순
	var durable credstore.Store
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		durable = credstore.NewPostgresStore(db.Pool)
		log.Info("Connected to database")
	} else {
		log.Warn("DATABASE_URL not set, token cache is local-only")
	}
	store := credstore.NewChain(durable, credstore.NewFileStore(cfg.KIS.TokenCachePath), log)

	httpClient := httputil.New(log)
	// KIS 경로는 Executor가 시도 횟수를 직접 세므로 전송 계층 재시도 없는 사본
	kisHTTP := httpClient.DisableRetry()

	tokens, err := kis.NewTokenManager(credstore.Credential{
		AppKey:    cfg.KIS.AppKey,
		AppSecret: cfg.KIS.AppSecret,
	}, store, kisHTTP, cfg.KIS.BaseURL, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}
	a.tokens = tokens

	pacer := kis.NewPacer()
	if cfg.Redis.Enabled {
		rdb, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without shared limiter and cache")
		} else {
			a.redis = rdb
			pacer = pacer.WithSharedLimiter(redis.NewRateLimiter(rdb, "sentinel"))
		}
	}
	a.market = kis.NewClient(tokens, pacer, kisHTTP, cfg.KIS.BaseURL, log)

	criteriaCfg := criteria.DefaultConfig()
	if cfg.Pipeline.CriteriaCfg != "" {
		criteriaCfg, err = criteria.LoadConfig(cfg.Pipeline.CriteriaCfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load criteria config: %w", err)
		}
	}
	engine := criteria.NewEngine(criteriaCfg, log)

	opts := pipeline.Options{}
	if cfg.Exim.AuthKey != "" {
		fx := exim.NewClient(cfg.Exim, httpClient, log)
		if a.redis != nil {
			fx = fx.WithSharedLimiter(redis.NewRateLimiter(a.redis, "sentinel"))
		}
		opts.FX = fx
	}
	opts.Naver = naver.NewClient(cfg.Naver, httpClient, log)
	if len(cfg.Gemini.APIKeys) > 0 {
		opts.Themes = theme.NewGeminiService(cfg.Gemini, httpClient, log)
	} else {
		log.Warn("No Gemini API keys, theme analysis disabled")
	}
	if tg := notify.NewTelegram(cfg.Telegram, httpClient, log); tg.Configured() {
		opts.Notifier = tg
	} else {
		log.Warn("Telegram not configured, notifications disabled")
	}
	if a.redis != nil {
		opts.Cache = redis.NewCache(a.redis, "sentinel")
	}

	exporter := export.New(cfg.Export, log)
	a.runner = pipeline.NewRunner(a.market, engine, exporter, cfg.Pipeline, log, opts)

	return a, nil
}

// Close releases pooled resources.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
