package model

import "github.com/shopspring/decimal"

type SelectionType string

const (
	SelectionSingle SelectionType = "single"
	SelectionMulti  SelectionType = "multi"
)

type PricingType string

const (
	PricingRelative PricingType = "relative"
	PricingAbsolute PricingType = "absolute"
)

type Service struct {
	ID              string
	TenantID        string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
	Groups          []VariationGroup
}

// VariationGroup options are applied in Position order, groups likewise.
type VariationGroup struct {
	ID            string
	ServiceID     string
	Name          string
	SelectionType SelectionType
	Required      bool
	Position      int
	Options       []VariationOption
}

type VariationOption struct {
	ID                      string
	GroupID                 string
	Name                    string
	PriceModifier           decimal.Decimal
	PricingType             PricingType
	DurationModifierMinutes int
	Position                int
}
