package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tovald/stocksync/internal/config"
)

func testClient(url string) *Client {
	return NewClient(config.Config{
		FeedURL:       url,
		FeedUser:      "dealer",
		FeedPassword:  "secret",
		FeedTimeout:   5 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	})
}

const sampleCSV = `id,available,your_price,msrp
P-100,4,10.50,19.99
P-200,0,5.25,9.99
`

func TestFetchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "dealer" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	records, err := testClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	r := records["P-100"]
	if r.Available != 4 {
		t.Fatalf("available: %d", r.Available)
	}
	if r.Cost.String() != "10.5" {
		t.Fatalf("cost: %s", r.Cost)
	}
	if r.MSRP.String() != "19.99" {
		t.Fatalf("msrp: %s", r.MSRP)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	records, err := testClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchExhaustsRetriesOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should carry the status: %v", err)
	}
}

func TestFetchDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d attempts", calls.Load())
	}
}

func TestParseCoercesMalformedCells(t *testing.T) {
	in := `id,available,your_price,msrp
P-1,abc,n/a,19.99
P-2,3,1.50,
,9,9,9
`
	records, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("blank-id row must be dropped, got %d records", len(records))
	}
	r := records["P-1"]
	if r.Available != 0 || !r.Cost.IsZero() {
		t.Fatalf("malformed cells must coerce to zero: %+v", r)
	}
	if records["P-2"].MSRP.IsZero() != true {
		t.Fatalf("empty msrp must coerce to zero")
	}
}

func TestParseColumnOrderIndependent(t *testing.T) {
	in := `msrp,id,your_price,available
19.99,P-9,10.00,7
`
	records, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, ok := records["P-9"]
	if !ok {
		t.Fatalf("record missing")
	}
	if r.Available != 7 || r.MSRP.String() != "19.99" {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestParseMissingKeyColumn(t *testing.T) {
	if _, err := Parse(strings.NewReader("sku,qty\nA,1\n")); err == nil {
		t.Fatalf("expected error for missing id column")
	}
}
