package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateTable is the full set of rates the engine prices against. A table is
// treated as immutable once built; reloads construct a new one. Version
// labels the table and is copied onto every Result priced with it.
type RateTable struct {
	Version     string
	Residential ResidentialRates
	Commercial  CommercialRates
}

// FloorRates are per-window ranges by floor.
type FloorRates struct {
	Ground Range
	Second Range
	Third  Range
}

// AddOnRates are per-unit ranges for the residential extras.
type AddOnRates struct {
	Screens     Range
	TracksSills Range
	HardWater   Range
	Skylight    Range
}

// TravelRates charge PerMile for every mile beyond BaseMiles.
type TravelRates struct {
	BaseMiles decimal.Decimal
	PerMile   Range
}

type ResidentialRates struct {
	Windows            FloorRates
	AddOns             AddOnRates
	AccessHard         decimal.Decimal
	FrequencyQuarterly decimal.Decimal
	FrequencyBiannual  decimal.Decimal
	Travel             TravelRates
}

// PanelRates are per-panel ranges by height tier.
type PanelRates struct {
	Ground Range
	Low    Range
	Medium Range
	High   Range
}

type CommercialRates struct {
	Panels            PanelRates
	FrequencyWeekly   decimal.Decimal
	FrequencyBiWeekly decimal.Decimal
	FrequencyMonthly  decimal.Decimal
	Travel            TravelRates
}

// For returns the range for a height tier.
func (p PanelRates) For(tier HeightTier) (Range, bool) {
	switch tier {
	case HeightGround:
		return p.Ground, true
	case HeightLow:
		return p.Low, true
	case HeightMedium:
		return p.Medium, true
	case HeightHigh:
		return p.High, true
	}
	return Range{}, false
}

// Multiplier returns the factor for a commercial frequency.
func (c CommercialRates) Multiplier(f CommercialFrequency) (decimal.Decimal, bool) {
	switch f {
	case CommercialWeekly:
		return c.FrequencyWeekly, true
	case CommercialBiWeekly:
		return c.FrequencyBiWeekly, true
	case CommercialMonthly:
		return c.FrequencyMonthly, true
	}
	return decimal.Decimal{}, false
}

// Validate checks every range and factor in the table.
func (rt *RateTable) Validate() error {
	if rt == nil {
		return fmt.Errorf("rate table is nil")
	}
	ranges := map[string]Range{
		"residential.windows.ground":       rt.Residential.Windows.Ground,
		"residential.windows.second":       rt.Residential.Windows.Second,
		"residential.windows.third":        rt.Residential.Windows.Third,
		"residential.add_ons.screens":      rt.Residential.AddOns.Screens,
		"residential.add_ons.tracks_sills": rt.Residential.AddOns.TracksSills,
		"residential.add_ons.hard_water":   rt.Residential.AddOns.HardWater,
		"residential.add_ons.skylight":     rt.Residential.AddOns.Skylight,
		"residential.travel.per_mile":      rt.Residential.Travel.PerMile,
		"commercial.panels.ground":         rt.Commercial.Panels.Ground,
		"commercial.panels.low":            rt.Commercial.Panels.Low,
		"commercial.panels.medium":         rt.Commercial.Panels.Medium,
		"commercial.panels.high":           rt.Commercial.Panels.High,
		"commercial.travel.per_mile":       rt.Commercial.Travel.PerMile,
	}
	for name, r := range ranges {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	factors := map[string]decimal.Decimal{
		"residential.multipliers.access_hard":         rt.Residential.AccessHard,
		"residential.multipliers.frequency_quarterly": rt.Residential.FrequencyQuarterly,
		"residential.multipliers.frequency_biannual":  rt.Residential.FrequencyBiannual,
		"commercial.multipliers.frequency_weekly":     rt.Commercial.FrequencyWeekly,
		"commercial.multipliers.frequency_bi_weekly":  rt.Commercial.FrequencyBiWeekly,
		"commercial.multipliers.frequency_monthly":    rt.Commercial.FrequencyMonthly,
	}
	for name, f := range factors {
		if !f.IsPositive() {
			return fmt.Errorf("%s: multiplier must be positive, got %s", name, f)
		}
	}

	if rt.Residential.Travel.BaseMiles.IsNegative() {
		return fmt.Errorf("residential.travel.base_miles must not be negative")
	}
	if rt.Commercial.Travel.BaseMiles.IsNegative() {
		return fmt.Errorf("commercial.travel.base_miles must not be negative")
	}
	return nil
}
