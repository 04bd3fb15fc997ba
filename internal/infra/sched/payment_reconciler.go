package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/usecase"
	"propertyhub-payments/internal/infra/metrics"
	"propertyhub-payments/internal/infra/worker"
	uc "propertyhub-payments/internal/usecase"
)

// PaymentReconciler periodically scans for captured subscription payments whose
// entitlement was never applied and runs the shared fulfillment on them. This
// covers a crash between capture and fulfillment when neither the client nor
// the webhook retries.
type PaymentReconciler struct {
	fulfiller  usecase.Fulfiller
	pool       *worker.Pool
	staleAfter time.Duration // how long a payment must sit unfulfilled
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(fulfiller usecase.Fulfiller, pool *worker.Pool, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{fulfiller: fulfiller, pool: pool, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Name() string { return "payment_reconciler" }

func (w *PaymentReconciler) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.fulfiller.ListUnfulfilled(ctx, cutoff, w.batch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	sweepCtx := uc.WithFulfillmentSource(ctx, "reconciler")
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for _, p := range pending {
		p := p
		task := func(context.Context) error {
			defer wg.Done()
			outcome := w.fulfill(sweepCtx, p)
			mu.Lock()
			counts[outcome]++
			mu.Unlock()
			return nil
		}
		wg.Add(1)
		if w.pool == nil || w.pool.Submit(task) != nil {
			_ = task(sweepCtx)
		}
	}
	// Queued tasks are dropped if the pool shuts down mid-sweep.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn().Int("scanned", len(pending)).Msg("reconcile sweep interrupted")
		return ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	for outcome, n := range counts {
		metrics.AddJobItems(w.Name(), outcome, n)
	}
	w.log.Info().Int("scanned", len(pending)).Interface("outcomes", counts).Msg("reconcile sweep finished")
	return nil
}

func (w *PaymentReconciler) fulfill(ctx context.Context, p *model.Payment) string {
	outcome, err := w.fulfiller.Fulfill(ctx, p)
	if err != nil {
		w.log.Error().Err(err).Str("payment_id", p.ID).Str("order_id", p.GatewayOrderID).Msg("reconcile fulfillment failed")
		return "error"
	}
	if outcome == usecase.FulfillmentApplied {
		w.log.Info().Str("payment_id", p.ID).Msg("reconciled payment")
	}
	return outcome.String()
}
