package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain/ports/usecase"
)

// ExpiryWorker flips lapsed subscriptions to past_due.
type ExpiryWorker struct {
	marker usecase.ExpiryMarker
	now    func() time.Time
	log    *zerolog.Logger
}

func NewExpiryWorker(marker usecase.ExpiryMarker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		marker: marker,
		now:    func() time.Time { return time.Now().UTC() },
		log:    &exprLog,
	}
}

func (w *ExpiryWorker) Name() string { return "subscription_expiry" }

func (w *ExpiryWorker) RunOnce(ctx context.Context) error {
	n, err := w.marker.MarkExpired(ctx, w.now())
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("expired subscriptions marked past_due")
	}
	return nil
}
