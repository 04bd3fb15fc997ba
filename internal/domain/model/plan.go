package model

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PlanTier names a subscription tier. Tiers are ordered by price.
type PlanTier string

const (
	PlanBasic      PlanTier = "Basic"
	PlanPro        PlanTier = "Pro"
	PlanEnterprise PlanTier = "Enterprise"
)

// Plan is one row of the price table.
type Plan struct {
	Name  PlanTier
	Price decimal.Decimal // major units
}

// PriceTable is the configured plan -> price lookup.
type PriceTable struct {
	plans map[PlanTier]Plan
}

func NewPriceTable(prices map[string]decimal.Decimal) *PriceTable {
	t := &PriceTable{plans: make(map[PlanTier]Plan, len(prices))}
	for name, price := range prices {
		tier := PlanTier(name)
		t.plans[tier] = Plan{Name: tier, Price: price}
	}
	return t
}

// DefaultPriceTable is used when configuration provides no plans.
func DefaultPriceTable() *PriceTable {
	return NewPriceTable(map[string]decimal.Decimal{
		string(PlanBasic):      decimal.NewFromInt(499),
		string(PlanPro):        decimal.NewFromInt(1499),
		string(PlanEnterprise): decimal.NewFromInt(4999),
	})
}

// Lookup is exact first, then case-insensitive.
func (t *PriceTable) Lookup(name string) (Plan, bool) {
	if p, ok := t.plans[PlanTier(name)]; ok {
		return p, true
	}
	for tier, p := range t.plans {
		if strings.EqualFold(string(tier), name) {
			return p, true
		}
	}
	return Plan{}, false
}

// List returns plans ordered by price ascending.
func (t *PriceTable) List() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, p := range t.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Price.Cmp(out[j].Price); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
