package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// CalculateResidential prices a residential job against rt.
func CalculateResidential(rt *RateTable, in ResidentialInputs) (Result, error) {
	if err := validateResidential(in); err != nil {
		return Result{}, err
	}
	rates := rt.Residential
	w := *in.Windows

	// Floor tiers are additive, no cross-tier interaction.
	base := rates.Windows.Ground.Scale(w.Ground).
		Add(rates.Windows.Second.Scale(w.Second)).
		Add(rates.Windows.Third.Scale(w.Third))

	total := w.Total()
	var addOns Range
	if in.AddOns.Screens {
		addOns = addOns.Add(rates.AddOns.Screens.Scale(total))
	}
	if in.AddOns.TracksSills {
		addOns = addOns.Add(rates.AddOns.TracksSills.Scale(total))
	}
	if in.AddOns.HardWater {
		addOns = addOns.Add(rates.AddOns.HardWater.Scale(total))
	}
	if in.AddOns.Skylight > 0 {
		addOns = addOns.Add(rates.AddOns.Skylight.Scale(in.AddOns.Skylight))
	}

	travel := travelCost(rates.Travel, in.TravelMiles)

	multiplier := decimal.NewFromInt(1)
	if in.Access == AccessHard {
		multiplier = multiplier.Mul(rates.AccessHard)
	}
	switch in.Frequency {
	case FrequencyQuarterly:
		multiplier = multiplier.Mul(rates.FrequencyQuarterly)
	case FrequencyBiannual:
		multiplier = multiplier.Mul(rates.FrequencyBiannual)
	}

	return combine(base, addOns, travel, multiplier)
}

func validateResidential(in ResidentialInputs) error {
	if in.Windows == nil {
		return missing("windows")
	}
	w := in.Windows
	if err := validateCount("windows.ground", w.Ground); err != nil {
		return err
	}
	if err := validateCount("windows.second", w.Second); err != nil {
		return err
	}
	if err := validateCount("windows.third", w.Third); err != nil {
		return err
	}
	if err := validateCount("addOns.skylight", in.AddOns.Skylight); err != nil {
		return err
	}
	switch in.Access {
	case "", AccessNormal, AccessHard:
	default:
		return invalid("access", "unknown value %q", in.Access)
	}
	switch in.Frequency {
	case "", FrequencyOneTime, FrequencyQuarterly, FrequencyBiannual:
	default:
		return invalid("frequency", "unknown value %q", in.Frequency)
	}
	return validateMiles(in.TravelMiles)
}

// Per-field input ceilings. Anything larger is a typo or an attack, never a
// real job.
const (
	MaxUnits       = 100_000
	MaxTravelMiles = 1_000
)

func validateCount(field string, n int) error {
	if n < 0 {
		return invalid(field, "must not be negative, got %d", n)
	}
	if n > MaxUnits {
		return invalid(field, "must be at most %d, got %d", MaxUnits, n)
	}
	return nil
}

func validateMiles(miles float64) error {
	if math.IsNaN(miles) || math.IsInf(miles, 0) {
		return invalid("travel_miles", "must be a finite number")
	}
	if miles < 0 {
		return invalid("travel_miles", "must not be negative, got %v", miles)
	}
	if miles > MaxTravelMiles {
		return invalid("travel_miles", "must be at most %d, got %v", MaxTravelMiles, miles)
	}
	return nil
}

// travelCost charges PerMile for each mile beyond the free allowance.
func travelCost(t TravelRates, miles float64) Range {
	excess := decimal.NewFromFloat(miles).Sub(t.BaseMiles)
	if !excess.IsPositive() {
		return Range{}
	}
	return t.PerMile.Mul(excess)
}

// combine applies the multiplier once to the summed bounds and rounds.
func combine(base, addOns, travel Range, multiplier decimal.Decimal) (Result, error) {
	sum := base.Add(addOns).Add(travel).Mul(multiplier)
	amounts := []decimal.Decimal{
		sum.Low,
		sum.High,
		base.Midpoint().Mul(multiplier),
		addOns.Midpoint().Mul(multiplier),
		travel.Midpoint().Mul(multiplier),
	}
	out := make([]int64, len(amounts))
	for i, d := range amounts {
		n, ok := roundDollars(d)
		if !ok {
			return Result{}, invalid("inputs", "estimate is outside 0 to %s dollars", MaxDollars)
		}
		out[i] = n
	}
	lo, hi := out[0], out[1]
	total, _ := roundDollars(decimal.NewFromInt(lo + hi).Div(two))
	return Result{
		PriceMin: lo,
		PriceMax: hi,
		Breakdown: Breakdown{
			Base:   out[2],
			AddOns: out[3],
			Travel: out[4],
			Total:  total,
		},
	}, nil
}
