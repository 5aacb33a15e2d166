// Package events рассылает зафиксированные события леджера во внешние системы.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

// LogPublisher пишет события в журнал; используется, когда брокер не настроен.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher создаёт публикатор, пишущий в logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish пишет каждое событие отдельной записью журнала.
func (p *LogPublisher) Publish(_ context.Context, evs []model.Event) error {
	for _, ev := range evs {
		p.logger.Info("ledger event",
			zap.String("id", ev.ID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.String("identity", string(ev.Identity)),
			zap.String("counterparty", string(ev.Counterparty)),
			zap.String("amount", ev.Amount.String()),
			zap.Duration("duration", ev.Duration),
			zap.Int64("count", ev.Count),
		)
	}
	return nil
}

// Close ничего не делает.
func (p *LogPublisher) Close() error {
	return nil
}
