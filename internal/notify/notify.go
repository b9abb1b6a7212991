// Package notify delivers pre-formatted result messages. 부분 실패 허용 —
// 몇 건 성공/실패했는지만 보고한다.
package notify

import (
	"context"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

// Notifier sends one pre-formatted message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Result counts the outcome of a multi-message send.
type Result struct {
	Sent   int
	Failed int
}

// SendAll fires every message, tolerating per-message failure.
func SendAll(ctx context.Context, n Notifier, log *logger.Logger, messages []string) Result {
	var res Result
	for _, msg := range messages {
		if msg == "" {
			continue
		}
		if err := n.Send(ctx, msg); err != nil {
			res.Failed++
			log.WithError(err).Warn("Notification send failed")
			continue
		}
		res.Sent++
	}
	return res
}
