package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tovald/stocksync/internal/catalog"
	"github.com/tovald/stocksync/internal/model"
)

type writeCall struct {
	op string
	id string
	at time.Time
}

// scriptedWriter records every write call and pops errors from per-op
// scripts, succeeding once a script runs dry.
type scriptedWriter struct {
	mu      gosync.Mutex
	calls   []writeCall
	scripts map[string][]error
}

func newScriptedWriter() *scriptedWriter {
	return &scriptedWriter{scripts: map[string][]error{}}
}

func (w *scriptedWriter) script(op string, errs ...error) {
	w.scripts[op] = errs
}

func (w *scriptedWriter) record(op, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, writeCall{op: op, id: id, at: time.Now()})
	if errs := w.scripts[op]; len(errs) > 0 {
		w.scripts[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (w *scriptedWriter) WriteSellability(ctx context.Context, itemID string, policy model.SellPolicy) error {
	return w.record("sellability", itemID)
}

func (w *scriptedWriter) WritePricing(ctx context.Context, itemID string, price, compareAt decimal.Decimal) error {
	return w.record("pricing", itemID)
}

func (w *scriptedWriter) WriteCost(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error {
	return w.record("cost", inventoryItemID)
}

func (w *scriptedWriter) callsFor(op string) []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []writeCall
	for _, c := range w.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func sellIntent(id string) model.ChangeIntent {
	return model.ChangeIntent{TargetID: id, Kind: model.SetSellability, Sellability: model.BlockWhenOOS}
}

func priceIntent(id, invID string) model.ChangeIntent {
	return model.ChangeIntent{
		TargetID: id,
		Kind:     model.SetPricing,
		Pricing: &model.PricingChange{
			Price:           decimal.RequireFromString("10.00"),
			CompareAt:       decimal.RequireFromString("12.00"),
			Cost:            decimal.RequireFromString("6.00"),
			InventoryItemID: invID,
		},
	}
}

func transient() error { return &catalog.APIError{Op: "test", Status: 503} }

func TestExecuteAppliesInOrder(t *testing.T) {
	w := newScriptedWriter()
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 3, Backoff: time.Millisecond})

	out := e.Execute(context.Background(), []model.ChangeIntent{sellIntent("a"), sellIntent("b"), sellIntent("c")})
	require.Len(t, out, 3)
	for _, o := range out {
		assert.True(t, o.Applied)
		assert.Empty(t, o.Err)
	}
	calls := w.callsFor("sellability")
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{calls[0].id, calls[1].id, calls[2].id})
}

func TestExecutePacing(t *testing.T) {
	w := newScriptedWriter()
	interval := 40 * time.Millisecond
	e := NewExecutor(w, ExecConfig{Interval: interval, Attempts: 1})

	e.Execute(context.Background(), []model.ChangeIntent{sellIntent("a"), sellIntent("b"), sellIntent("c")})
	calls := w.callsFor("sellability")
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		gap := calls[i].at.Sub(calls[i-1].at)
		assert.GreaterOrEqual(t, gap, interval, "call %d followed too fast", i)
	}
}

func TestExecutePricingIntentPausesOncePerIntent(t *testing.T) {
	// A pricing intent issues two writes back to back; the inter-call pause
	// happens after both, not between them.
	w := newScriptedWriter()
	interval := 50 * time.Millisecond
	e := NewExecutor(w, ExecConfig{Interval: interval, Attempts: 1})

	out := e.Execute(context.Background(), []model.ChangeIntent{priceIntent("a", "inv-a"), sellIntent("b")})
	require.Len(t, out, 2)
	assert.True(t, out[0].Applied)
	assert.True(t, out[1].Applied)

	pricing := w.callsFor("pricing")
	cost := w.callsFor("cost")
	sell := w.callsFor("sellability")
	require.Len(t, pricing, 1)
	require.Len(t, cost, 1)
	require.Len(t, sell, 1)
	assert.Less(t, cost[0].at.Sub(pricing[0].at), interval, "no pause between the two pricing writes")
	assert.GreaterOrEqual(t, sell[0].at.Sub(cost[0].at), interval, "pause before the next intent")
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	w := newScriptedWriter()
	w.script("sellability", transient(), transient())
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 3, Backoff: time.Millisecond})

	out := e.Execute(context.Background(), []model.ChangeIntent{sellIntent("a")})
	require.Len(t, out, 1)
	assert.True(t, out[0].Applied, "third attempt should have succeeded")
	assert.Len(t, w.callsFor("sellability"), 3)
}

func TestExecuteDoesNotRetryPermanentFailures(t *testing.T) {
	w := newScriptedWriter()
	w.script("sellability", &catalog.APIError{Op: "sellability", Status: 404})
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 3, Backoff: time.Millisecond})

	out := e.Execute(context.Background(), []model.ChangeIntent{sellIntent("a")})
	require.Len(t, out, 1)
	assert.False(t, out[0].Applied)
	assert.Contains(t, out[0].Err, "404")
	assert.Len(t, w.callsFor("sellability"), 1, "404 must not be retried")
}

func TestExecutePartialFailureIsolation(t *testing.T) {
	// Intent one exhausts its retries; the remaining intents still run.
	w := newScriptedWriter()
	w.script("sellability", transient(), transient(), transient())
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 3, Backoff: time.Millisecond})

	out := e.Execute(context.Background(), []model.ChangeIntent{sellIntent("a"), sellIntent("b"), sellIntent("c")})
	require.Len(t, out, 3)
	assert.False(t, out[0].Applied)
	assert.NotEmpty(t, out[0].Err)
	assert.True(t, out[1].Applied)
	assert.True(t, out[2].Applied)
	assert.Len(t, w.callsFor("sellability"), 5)
}

func TestExecuteFailedPricingWriteSkipsCostWrite(t *testing.T) {
	w := newScriptedWriter()
	w.script("pricing", &catalog.APIError{Op: "pricing", Status: 404})
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 2, Backoff: time.Millisecond})

	out := e.Execute(context.Background(), []model.ChangeIntent{priceIntent("a", "inv-a")})
	require.Len(t, out, 1)
	assert.False(t, out[0].Applied)
	assert.Empty(t, w.callsFor("cost"), "cost write must not run after a failed price write")
}

func TestExecuteStopsBetweenIntentsOnCancel(t *testing.T) {
	w := newScriptedWriter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 1})

	out := e.Execute(ctx, []model.ChangeIntent{sellIntent("a"), sellIntent("b")})
	assert.Empty(t, out)
	assert.Empty(t, w.calls)
}

func TestExecuteEmptyIntentSet(t *testing.T) {
	w := newScriptedWriter()
	e := NewExecutor(w, ExecConfig{Interval: time.Millisecond, Attempts: 1})
	assert.Empty(t, e.Execute(context.Background(), nil))
}
