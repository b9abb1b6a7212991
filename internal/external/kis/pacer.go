package kis

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/wonny/sentinel/backend/pkg/redis"
)

// KIS 실전투자 계정은 초당 20건까지 허용 — 요청 간 최소 50ms 간격.
const requestsPerSecond = 20

// Pacer serializes outbound request pacing across all goroutines sharing one
// client. Acquire는 요청을 버리지 않고 지연만 시킨다.
type Pacer struct {
	limiter *rate.Limiter
	shared  *redis.RateLimiter // nil이면 프로세스 내 제한만
}

// NewPacer creates the in-process pacer.
func NewPacer() *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// WithSharedLimiter adds a cross-process budget on top of the local pacing.
// 스케줄 실행과 수동 실행이 같은 계정 쿼터를 쓰는 경우를 위한 옵션.
func (p *Pacer) WithSharedLimiter(shared *redis.RateLimiter) *Pacer {
	p.shared = shared
	return p
}

// Acquire blocks until the caller may send the next request.
func (p *Pacer) Acquire(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.shared != nil {
		return p.shared.Wait(ctx, redis.KISRateLimit)
	}
	return nil
}
