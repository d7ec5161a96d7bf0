package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"shopfront-backend/internal/domain"
	"shopfront-backend/internal/infrastructure/metrics"
	"shopfront-backend/pkg/logger"
)

// OutboxPoller periodically publishes unpublished outbox events.
type OutboxPoller struct {
	outbox    domain.OutboxRepository
	txManager domain.TransactionManager
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewOutboxPoller(outbox domain.OutboxRepository, txManager domain.TransactionManager, publisher Publisher, interval time.Duration, batchSize int) *OutboxPoller {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		outbox:    outbox,
		txManager: txManager,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", p.interval).Msg("Outbox poller started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Outbox poller stopped")
			return
		case <-ticker.C:
			// drain full batches before waiting for the next tick
			for {
				n, err := p.PublishBatch(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("Outbox publish failed")
					break
				}
				if n < p.batchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// PublishBatch publishes up to one batch. The rows are marked only when the
// broker accepted all of them, so a failure leaves them for the next round.
func (p *OutboxPoller) PublishBatch(ctx context.Context) (int, error) {
	var published int
	err := p.txManager.Do(ctx, func(txCtx context.Context) error {
		events, err := p.outbox.FetchUnpublished(txCtx, p.batchSize)
		if err != nil {
			return errors.Wrap(err, "fetch outbox")
		}
		if len(events) == 0 {
			return nil
		}

		if err := p.publisher.Publish(txCtx, events); err != nil {
			metrics.OutboxPublishedTotal.WithLabelValues("error").Add(float64(len(events)))
			return errors.Wrap(err, "publish events")
		}

		ids := make([]string, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		if err := p.outbox.MarkPublished(txCtx, ids); err != nil {
			return errors.Wrap(err, "mark published")
		}
		published = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		metrics.OutboxPublishedTotal.WithLabelValues("ok").Add(float64(published))
		logger.Debug().Int("count", published).Msg("Outbox events published")
	}
	return published, nil
}
