package credstore

import (
	"context"
	"errors"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

// Chain combines the durable store and the local file cache.
// 로드: 공유 저장소 우선, 실패/부재 시 로컬 파일 폴백.
// 저장: 공유 저장소 먼저, 그다음 로컬 파일 (다른 프로세스가 즉시 관찰 가능).
type Chain struct {
	durable Store // nil이면 로컬 전용 모드
	local   Store
	logger  *logger.Logger
}

// NewChain builds the two-backend store. durable may be nil when the shared
// store is not configured.
func NewChain(durable, local Store, log *logger.Logger) *Chain {
	return &Chain{
		durable: durable,
		local:   local,
		logger:  log,
	}
}

// LoadToken tries the durable store first and falls back to the local cache.
// 공유 저장소에서 읽은 토큰은 로컬에도 미러링한다 (오프라인 폴백용).
func (c *Chain) LoadToken(ctx context.Context) (TokenRecord, error) {
	if c.durable != nil {
		rec, err := c.durable.LoadToken(ctx)
		if err == nil {
			if saveErr := c.local.SaveToken(ctx, rec); saveErr != nil {
				c.logger.WithError(saveErr).Warn("Failed to mirror token to local cache")
			}
			return rec, nil
		}
		if !errors.Is(err, ErrTokenNotFound) {
			c.logger.WithError(err).Warn("Durable token load failed, falling back to local cache")
		}
	}

	return c.local.LoadToken(ctx)
}

// SaveToken writes through both backends, durable first.
// 로컬 저장 실패는 경고로 끝낸다 — 공유 저장이 진실의 원천.
func (c *Chain) SaveToken(ctx context.Context, rec TokenRecord) error {
	if c.durable != nil {
		if err := c.durable.SaveToken(ctx, rec); err != nil {
			return err
		}
	}

	if err := c.local.SaveToken(ctx, rec); err != nil {
		if c.durable == nil {
			return err
		}
		c.logger.WithError(err).Warn("Failed to write local token cache")
	}

	return nil
}

var _ Store = (*Chain)(nil)
