package sync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tovald/stocksync/internal/catalog"
	"github.com/tovald/stocksync/internal/model"
	"github.com/tovald/stocksync/internal/obs"
)

// CatalogWriter is the write side of the storefront API as the executor
// consumes it. Implemented by catalog.Client.
type CatalogWriter interface {
	WriteSellability(ctx context.Context, itemID string, policy model.SellPolicy) error
	WritePricing(ctx context.Context, itemID string, price, compareAt decimal.Decimal) error
	WriteCost(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error
}

// ExecConfig holds the executor's pacing and retry knobs.
type ExecConfig struct {
	// Interval is the minimum spacing between successive intent
	// completions. One pause per intent, even when a pricing intent issues
	// two underlying write calls.
	Interval time.Duration
	// Attempts bounds write attempts per call; Backoff grows linearly
	// (backoff, 2*backoff, ...) between retries.
	Attempts int
	Backoff  time.Duration
}

// Executor applies intents strictly one at a time, in input order. The write
// API enforces a hard rate ceiling and rejects parallel dispatch, so there is
// deliberately no concurrency here: one caller, one in-flight call, fixed
// minimum spacing.
type Executor struct {
	writer CatalogWriter
	cfg    ExecConfig
}

// NewExecutor builds an executor over the given writer.
func NewExecutor(writer CatalogWriter, cfg ExecConfig) *Executor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Executor{writer: writer, cfg: cfg}
}

// Execute applies each intent and records its outcome. A failed intent never
// aborts the run; remaining intents are still attempted. No intent is
// dispatched before the previous intent's outcome is recorded. Context
// cancellation stops the loop between intents.
func (e *Executor) Execute(ctx context.Context, intents []model.ChangeIntent) []model.Outcome {
	outcomes := make([]model.Outcome, 0, len(intents))
	for i, intent := range intents {
		if ctx.Err() != nil {
			obs.Logger.Warn("execute_cancelled", "applied", len(outcomes), "remaining", len(intents)-i)
			break
		}
		err := e.applyIntent(ctx, intent)
		out := model.Outcome{Intent: intent, Applied: err == nil}
		if err != nil {
			out.Err = err.Error()
			obs.Logger.Warn("intent_failed", "target_id", intent.TargetID, "kind", string(intent.Kind), "error", err.Error())
		} else {
			obs.Logger.Info("intent_applied", "target_id", intent.TargetID, "kind", string(intent.Kind))
		}
		outcomes = append(outcomes, out)

		// Pace the next intent. Running once per intent keeps sustained
		// throughput under the API's call-rate ceiling.
		if i < len(intents)-1 {
			if sleepCtx(ctx, e.cfg.Interval) != nil {
				break
			}
		}
	}
	return outcomes
}

func (e *Executor) applyIntent(ctx context.Context, intent model.ChangeIntent) error {
	switch intent.Kind {
	case model.SetSellability:
		return e.withRetry(ctx, func(ctx context.Context) error {
			return e.writer.WriteSellability(ctx, intent.TargetID, intent.Sellability)
		})
	case model.SetPricing:
		// Price fields and cost live on different backing resources, so a
		// pricing intent is two write calls.
		p := intent.Pricing
		if err := e.withRetry(ctx, func(ctx context.Context) error {
			return e.writer.WritePricing(ctx, intent.TargetID, p.Price, p.CompareAt)
		}); err != nil {
			return err
		}
		return e.withRetry(ctx, func(ctx context.Context) error {
			return e.writer.WriteCost(ctx, p.InventoryItemID, p.Cost)
		})
	}
	return nil
}

// withRetry runs one write call, retrying transient transport failures with
// increasing backoff. Auth and not-found class failures fail immediately.
func (e *Executor) withRetry(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if !catalog.Retryable(lastErr) {
			return lastErr
		}
		if attempt < e.cfg.Attempts {
			if err := sleepCtx(ctx, e.cfg.Backoff*time.Duration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
