// Package catalog talks to the storefront: bulk reads over the GraphQL
// endpoint and per-item writes over the REST endpoints.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
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

// Client is the storefront API client. Reads paginate the GraphQL endpoint;
// writes hit the REST resources one item at a time.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	hc       *http.Client
	attempts int
	backoff  time.Duration
}

// NewClient builds a storefront client from configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.CatalogBaseURL, "/"),
		token:    cfg.CatalogToken,
		pageSize: cfg.CatalogPageSize,
		hc:       &http.Client{Timeout: cfg.CatalogTimeout},
		attempts: cfg.RetryAttempts,
		backoff:  cfg.RetryBackoff,
	}
}

// itemsQuery pages through all variants that carry the external part key.
// Behavioral flags live in the stocksync metafield namespace.
const itemsQuery = `query syncEligibleItems($first: Int!, $cursor: String) {
  productVariants(first: $first, after: $cursor, query: "sku:*") {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      sku
      inventoryQuantity
      inventoryPolicy
      price
      compareAtPrice
      product { id }
      inventoryItem { id unitCost { amount } }
      oosPolicy: metafield(namespace: "stocksync", key: "oos_policy") { value }
      markupPercent: metafield(namespace: "stocksync", key: "markup_percent") { value }
      priceSyncExclude: metafield(namespace: "stocksync", key: "price_sync_exclude") { value }
    }
  }
}`

type metafield struct {
	Value string `json:"value"`
}

type variantNode struct {
	ID                string  `json:"id"`
	SKU               string  `json:"sku"`
	InventoryQuantity int     `json:"inventoryQuantity"`
	InventoryPolicy   string  `json:"inventoryPolicy"`
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compareAtPrice"`
	Product           struct {
		ID string `json:"id"`
	} `json:"product"`
	InventoryItem struct {
		ID       string `json:"id"`
		UnitCost *struct {
			Amount string `json:"amount"`
		} `json:"unitCost"`
	} `json:"inventoryItem"`
	OOSPolicy        *metafield `json:"oosPolicy"`
	MarkupPercent    *metafield `json:"markupPercent"`
	PriceSyncExclude *metafield `json:"priceSyncExclude"`
}

type itemsPage struct {
	Data struct {
		ProductVariants struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []variantNode `json:"nodes"`
		} `json:"productVariants"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchSyncEligibleItems reads the full catalog, following the cursor until
// exhausted. Items without a part key are dropped. A page that fails after
// retries aborts the whole fetch; the caller treats that as fatal.
func (c *Client) FetchSyncEligibleItems(ctx context.Context) ([]model.CatalogItem, error) {
	var (
		items  []model.CatalogItem
		cursor string
		pages  int
	)
	for {
		page, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("catalog fetch (page %d): %w", pages+1, err)
		}
		pages++
		for _, n := range page.Data.ProductVariants.Nodes {
			item, ok := toItem(n)
			if !ok {
				continue
			}
			items = append(items, item)
		}
		if !page.Data.ProductVariants.PageInfo.HasNextPage {
			break
		}
		cursor = page.Data.ProductVariants.PageInfo.EndCursor
	}
	obs.Logger.Info("catalog_fetched", "items", len(items), "pages", pages)
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (*itemsPage, error) {
	vars := map[string]any{"first": c.pageSize}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	body, _ := json.Marshal(map[string]any{"query": itemsQuery, "variables": vars})

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		page, err := c.postGraphQL(ctx, body)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !Retryable(err) {
			return nil, err
		}
		if attempt < c.attempts {
			if serr := sleepCtx(ctx, c.backoff*time.Duration(attempt)); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) postGraphQL(ctx context.Context, body []byte) (*itemsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiErr("read", resp)
	}
	var page itemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode items page: %w", err)
	}
	if len(page.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", page.Errors[0].Message)
	}
	return &page, nil
}

func toItem(n variantNode) (model.CatalogItem, bool) {
	key := strings.TrimSpace(n.SKU)
	if key == "" {
		return model.CatalogItem{}, false
	}
	item := model.CatalogItem{
		ID:              n.ID,
		ParentID:        n.Product.ID,
		PartKey:         key,
		InventoryItemID: n.InventoryItem.ID,
		LocalStock:      n.InventoryQuantity,
		Policy:          toPolicy(n.InventoryPolicy),
		Price:           decOrZero(n.Price),
	}
	if n.CompareAtPrice != nil {
		d := decOrZero(*n.CompareAtPrice)
		item.CompareAtPrice = &d
	}
	if n.InventoryItem.UnitCost != nil {
		d := decOrZero(n.InventoryItem.UnitCost.Amount)
		item.Cost = &d
	}
	if n.OOSPolicy != nil {
		switch strings.ToUpper(strings.TrimSpace(n.OOSPolicy.Value)) {
		case "SPECIAL_ORDER":
			item.OOSPolicy = model.OOSSpecialOrder
		case "BLOCK":
			item.OOSPolicy = model.OOSBlock
		}
	}
	if n.MarkupPercent != nil {
		if p, err := strconv.Atoi(strings.TrimSpace(n.MarkupPercent.Value)); err == nil {
			item.MarkupPercent = &p
		}
	}
	if n.PriceSyncExclude != nil {
		item.PriceSyncExcluded = strings.EqualFold(strings.TrimSpace(n.PriceSyncExclude.Value), "true")
	}
	return item, true
}

func toPolicy(s string) model.SellPolicy {
	if strings.EqualFold(s, "CONTINUE") {
		return model.AllowBackorder
	}
	return model.BlockWhenOOS
}

func fromPolicy(p model.SellPolicy) string {
	if p == model.AllowBackorder {
		return "continue"
	}
	return "deny"
}

func decOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// WriteSellability updates the item's inventory policy.
func (c *Client) WriteSellability(ctx context.Context, itemID string, policy model.SellPolicy) error {
	payload := map[string]any{"variant": map[string]any{
		"id":               itemID,
		"inventory_policy": fromPolicy(policy),
	}}
	return c.put(ctx, "sellability", "/variants/"+itemID+".json", payload)
}

// WritePricing updates the item's price and compare-at price.
func (c *Client) WritePricing(ctx context.Context, itemID string, price, compareAt decimal.Decimal) error {
	payload := map[string]any{"variant": map[string]any{
		"id":               itemID,
		"price":            price.StringFixed(2),
		"compare_at_price": compareAt.StringFixed(2),
	}}
	return c.put(ctx, "pricing", "/variants/"+itemID+".json", payload)
}

// WriteCost updates the unit cost on the backing inventory resource.
func (c *Client) WriteCost(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error {
	payload := map[string]any{"inventory_item": map[string]any{
		"id":   inventoryItemID,
		"cost": cost.StringFixed(2),
	}}
	return c.put(ctx, "cost", "/inventory_items/"+inventoryItemID+".json", payload)
}

// put performs one write call. Retry policy lives in the executor, not here:
// the executor owns pacing and must see every failed attempt.
func (c *Client) put(ctx context.Context, op, path string, payload any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.hc.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErr(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func apiErr(op string, resp *http.Response) *APIError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
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
