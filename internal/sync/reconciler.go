// Package sync contains the reconciliation core: the decision engine that
// joins the distributor feed to the catalog, the paced executor that applies
// the resulting intents, and the run orchestration around them.
package sync

import (
	"github.com/shopspring/decimal"

	"github.com/tovald/stocksync/internal/model"
)

var (
	hundred       = decimal.NewFromInt(100)
	defaultFactor = decimal.NewFromFloat(0.99)
)

// Reconcile joins feed records to catalog items by part key and emits the
// intents needed to bring each item's sellability and pricing in line with
// the feed. Pure and deterministic: same inputs, same intents, and no intent
// is emitted whose postcondition already holds. Items without a matching
// feed record produce nothing.
func Reconcile(feed map[string]model.FeedRecord, items []model.CatalogItem) []model.ChangeIntent {
	var intents []model.ChangeIntent
	for _, item := range items {
		rec, ok := feed[item.PartKey]
		if !ok {
			continue
		}
		if in := sellabilityIntent(item, rec); in != nil {
			intents = append(intents, *in)
		}
		if in := pricingIntent(item, rec); in != nil {
			intents = append(intents, *in)
		}
	}
	return intents
}

// sellabilityIntent decides the target sell policy. Local stock takes
// precedence over the distributor quantity: an item with local stock on hand
// is never considered out of stock, preserving manually-managed inventory.
func sellabilityIntent(item model.CatalogItem, rec model.FeedRecord) *model.ChangeIntent {
	var target model.SellPolicy
	switch item.OOSPolicy {
	case model.OOSSpecialOrder:
		// Special-order items stay purchasable no matter the stock level.
		target = model.AllowBackorder
	default:
		oos := item.LocalStock <= 0 && rec.Available <= 0
		if oos {
			target = model.BlockWhenOOS
		} else {
			target = model.AllowBackorder
		}
	}
	if item.Policy == target {
		return nil
	}
	return &model.ChangeIntent{
		TargetID:    item.ID,
		Kind:        model.SetSellability,
		Sellability: target,
	}
}

// pricingIntent computes target price, compare-at and cost, and emits an
// intent only when at least one of the three differs from the current value
// at two decimal places.
func pricingIntent(item model.CatalogItem, rec model.FeedRecord) *model.ChangeIntent {
	if item.PriceSyncExcluded || !rec.MSRP.IsPositive() || !rec.Cost.IsPositive() {
		return nil
	}

	var price, compareAt decimal.Decimal
	if item.MarkupPercent != nil {
		factor := hundred.Add(decimal.NewFromInt(int64(*item.MarkupPercent))).Div(hundred)
		price = rec.MSRP.Mul(factor).Round(2)
		compareAt = price
	} else {
		// Default strategy: 1% under MSRP, with MSRP as the visible
		// compare-at anchor.
		price = rec.MSRP.Mul(defaultFactor).Round(2)
		compareAt = rec.MSRP.Round(2)
	}
	cost := rec.Cost.Round(2)

	changed := !price.Equal(item.Price.Round(2)) ||
		!equalsPtr(compareAt, item.CompareAtPrice) ||
		!equalsPtr(cost, item.Cost)
	if !changed {
		return nil
	}
	return &model.ChangeIntent{
		TargetID: item.ID,
		Kind:     model.SetPricing,
		Pricing: &model.PricingChange{
			Price:           price,
			CompareAt:       compareAt,
			Cost:            cost,
			InventoryItemID: item.InventoryItemID,
		},
	}
}

// equalsPtr compares a target value against an optional current value at two
// decimal places. A missing current value never equals a target.
func equalsPtr(target decimal.Decimal, current *decimal.Decimal) bool {
	if current == nil {
		return false
	}
	return target.Equal(current.Round(2))
}
