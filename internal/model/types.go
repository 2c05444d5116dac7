// Package model defines the domain types shared across the sync pipeline.
package model

import "github.com/shopspring/decimal"

// SellPolicy controls whether a catalog item may still be sold once its
// tracked stock is exhausted.
type SellPolicy string

const (
	AllowBackorder SellPolicy = "ALLOW_BACKORDER"
	BlockWhenOOS   SellPolicy = "BLOCK_WHEN_OOS"
)

// OOSPolicyHint is the per-item out-of-stock behavior flag maintained as an
// optional attribute on the storefront item. An empty hint means Default,
// which resolves to Block.
type OOSPolicyHint string

const (
	OOSDefault      OOSPolicyHint = ""
	OOSBlock        OOSPolicyHint = "BLOCK"
	OOSSpecialOrder OOSPolicyHint = "SPECIAL_ORDER"
)

// FeedRecord is one normalized distributor SKU row, keyed by PartKey.
// Records live only for the duration of a run.
type FeedRecord struct {
	PartKey   string
	Available int
	Cost      decimal.Decimal
	MSRP      decimal.Decimal
}

// CatalogItem is one sellable storefront variant eligible for sync, i.e. one
// that carries the external part key. A part key may back multiple items, but
// each item joins to at most one FeedRecord.
type CatalogItem struct {
	ID              string
	ParentID        string
	PartKey         string
	InventoryItemID string
	LocalStock      int
	Policy          SellPolicy
	Price           decimal.Decimal
	CompareAtPrice  *decimal.Decimal
	Cost            *decimal.Decimal

	// Behavioral flags resolved from optional item attributes.
	OOSPolicy         OOSPolicyHint
	MarkupPercent     *int
	PriceSyncExcluded bool
}

// IntentKind discriminates the two write shapes an item can need.
type IntentKind string

const (
	SetSellability IntentKind = "set_sellability"
	SetPricing     IntentKind = "set_pricing"
)

// PricingChange carries the target price fields for a SetPricing intent.
// All values are rounded to two decimal places.
type PricingChange struct {
	Price           decimal.Decimal
	CompareAt       decimal.Decimal
	Cost            decimal.Decimal
	InventoryItemID string
}

// ChangeIntent is one proposed, not-yet-applied storefront write. Intents are
// immutable once created; one item emits at most one intent per kind per run.
type ChangeIntent struct {
	TargetID    string
	Kind        IntentKind
	Sellability SellPolicy     // set when Kind == SetSellability
	Pricing     *PricingChange // set when Kind == SetPricing
}

// Outcome records the result of attempting one intent. Produced 1:1 per
// intent and never mutated afterwards.
type Outcome struct {
	Intent  ChangeIntent
	Applied bool
	Err     string
}
