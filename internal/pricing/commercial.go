package pricing

// CalculateCommercial prices a commercial job against rt. There are no
// add-ons and no access surcharge for commercial work.
func CalculateCommercial(rt *RateTable, in CommercialInputs) (Result, error) {
	if in.Panels == nil {
		return Result{}, missing("panels")
	}
	if in.HeightTier == "" {
		return Result{}, missing("height_tier")
	}
	if in.Frequency == "" {
		return Result{}, missing("frequency_com")
	}
	if err := validateCount("panels", *in.Panels); err != nil {
		return Result{}, err
	}
	rates := rt.Commercial
	tier, ok := rates.Panels.For(in.HeightTier)
	if !ok {
		return Result{}, invalid("height_tier", "unknown value %q", in.HeightTier)
	}
	multiplier, ok := rates.Multiplier(in.Frequency)
	if !ok {
		return Result{}, invalid("frequency_com", "unknown value %q", in.Frequency)
	}
	if err := validateMiles(in.TravelMiles); err != nil {
		return Result{}, err
	}

	base := tier.Scale(*in.Panels)
	travel := travelCost(rates.Travel, in.TravelMiles)
	return combine(base, Range{}, travel, multiplier)
}
