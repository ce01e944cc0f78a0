// Package pricing applies selected variation options to a service's base price and duration.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type Quote struct {
	UnitPrice       decimal.Decimal
	DurationMinutes int
	OptionIDs       []string
}

// Resolve validates optionIDs against the service's variation groups and applies them in
// group order then option order. Relative options add their modifier; an absolute option
// replaces the running price, so the last absolute option applied wins.
//
// With requireComplete, every required group must have a selection. The read path passes
// false so partially selected options can still shape slot duration.
func Resolve(svc model.Service, optionIDs []string, requireComplete bool) (Quote, error) {
	selected := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if id == "" {
			continue
		}
		if selected[id] {
			return Quote{}, model.Validationf("option %s selected twice", id)
		}
		selected[id] = true
	}

	groups := sortedGroups(svc.Groups)
	price := svc.Price
	duration := svc.DurationMinutes
	var applied []string
	matched := 0

	for _, g := range groups {
		count := 0
		for _, opt := range sortedOptions(g.Options) {
			if !selected[opt.ID] {
				continue
			}
			count++
			matched++
			switch opt.PricingType {
			case model.PricingAbsolute:
				price = opt.PriceModifier
			default:
				price = price.Add(opt.PriceModifier)
			}
			duration += opt.DurationModifierMinutes
			applied = append(applied, opt.ID)
		}
		if g.SelectionType == model.SelectionSingle && count > 1 {
			return Quote{}, model.Validationf("variation group %q allows one selection", g.Name)
		}
		if requireComplete && g.Required && count == 0 {
			return Quote{}, model.Validationf("variation group %q requires a selection", g.Name)
		}
	}
	if matched != len(selected) {
		return Quote{}, model.Validationf("unknown variation option for service %s", svc.ID)
	}
	if duration <= 0 {
		return Quote{}, model.Validationf("resolved duration must be positive")
	}
	if price.IsNegative() {
		return Quote{}, model.Validationf("resolved price is negative")
	}
	return Quote{UnitPrice: price, DurationMinutes: duration, OptionIDs: applied}, nil
}

// Total multiplies the unit price by nights for DAILY stays; HOURLY passes 1.
func Total(q Quote, nights int) decimal.Decimal {
	if nights < 1 {
		nights = 1
	}
	return q.UnitPrice.Mul(decimal.NewFromInt(int64(nights)))
}

// Deposit is total * pct / 100, rounded half away from zero to cents.
func Deposit(total, pct decimal.Decimal) decimal.Decimal {
	if pct.Sign() <= 0 {
		return decimal.Zero
	}
	return total.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
}

func sortedGroups(in []model.VariationGroup) []model.VariationGroup {
	out := append([]model.VariationGroup(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func sortedOptions(in []model.VariationOption) []model.VariationOption {
	out := append([]model.VariationOption(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
