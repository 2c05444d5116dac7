// Package feed fetches the distributor stock/price feed and normalizes it
// into keyed records.
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tovald/stocksync/internal/config"
	"github.com/tovald/stocksync/internal/model"
	"github.com/tovald/stocksync/internal/obs"
)

// Feed column names, matched case-insensitively against the header row.
const (
	colPartKey   = "id"
	colAvailable = "available"
	colCost      = "your_price"
	colMSRP      = "msrp"
)

// Client fetches the distributor feed over HTTP with basic auth.
type Client struct {
	url      string
	user     string
	password string
	hc       *http.Client
	attempts int
	backoff  time.Duration
}

// NewClient builds a feed client from configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		url:      cfg.FeedURL,
		user:     cfg.FeedUser,
		password: cfg.FeedPassword,
		hc:       &http.Client{Timeout: cfg.FeedTimeout},
		attempts: cfg.RetryAttempts,
		backoff:  cfg.RetryBackoff,
	}
}

// Fetch downloads and parses the feed. Transient upstream failures (5xx) are
// retried up to the configured attempt bound with increasing backoff; auth
// and other 4xx responses fail immediately. Any error returned here is fatal
// for the run: no writes happen without a feed.
func (c *Client) Fetch(ctx context.Context) (map[string]model.FeedRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		records, err := c.fetchOnce(ctx)
		if err == nil {
			obs.Logger.Info("feed_fetched", "records", len(records), "attempt", attempt)
			return records, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, fmt.Errorf("feed fetch: %w", err)
		}
		obs.Logger.Warn("feed_fetch_retry", "attempt", attempt, "error", err.Error())
		if attempt < c.attempts {
			if serr := sleepCtx(ctx, c.backoff*time.Duration(attempt)); serr != nil {
				return nil, fmt.Errorf("feed fetch: %w", serr)
			}
		}
	}
	return nil, fmt.Errorf("feed fetch exhausted %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (map[string]model.FeedRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.password)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}
	return Parse(resp.Body)
}

// Parse decodes the raw tabular feed. Columns are located by header name;
// non-numeric cells coerce to zero instead of failing the row, and rows with
// an empty part key are dropped.
func Parse(r io.Reader) (map[string]model.FeedRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("feed header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := idx[colPartKey]; !ok {
		return nil, fmt.Errorf("feed header missing %q column", colPartKey)
	}

	records := make(map[string]model.FeedRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("feed row: %w", err)
		}
		key := strings.TrimSpace(cell(row, idx, colPartKey))
		if key == "" {
			continue
		}
		records[key] = model.FeedRecord{
			PartKey:   key,
			Available: intCell(row, idx, colAvailable),
			Cost:      decCell(row, idx, colCost),
			MSRP:      decCell(row, idx, colMSRP),
		}
	}
	return records, nil
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func intCell(row []string, idx map[string]int, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell(row, idx, name)))
	if err != nil {
		return 0
	}
	return n
}

func decCell(row []string, idx map[string]int, name string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(cell(row, idx, name)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "feed transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type statusError struct{ status int }

func (e *statusError) Error() string {
	return fmt.Sprintf("feed returned status %d", e.status)
}

func retryable(err error) bool {
	switch e := err.(type) {
	case *transportError:
		return true
	case *statusError:
		return e.status >= 500
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
