package pricing

// Variant selects the pricing function.
type Variant string

const (
	VariantResidential Variant = "res"
	VariantCommercial  Variant = "com"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	return v == VariantResidential || v == VariantCommercial
}

// Access describes how hard the windows are to reach.
type Access string

const (
	AccessNormal Access = "normal"
	AccessHard   Access = "hard"
)

// Frequency is the residential service cadence.
type Frequency string

const (
	FrequencyOneTime   Frequency = "one_time"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyBiannual  Frequency = "biannual"
)

// HeightTier is the commercial panel height bucket.
type HeightTier string

const (
	HeightGround HeightTier = "ground"
	HeightLow    HeightTier = "low"
	HeightMedium HeightTier = "medium"
	HeightHigh   HeightTier = "high"
)

// CommercialFrequency is the commercial service cadence. Every valid value
// selects exactly one multiplier; there is no implicit default.
type CommercialFrequency string

const (
	CommercialWeekly   CommercialFrequency = "weekly"
	CommercialBiWeekly CommercialFrequency = "bi_weekly"
	CommercialMonthly  CommercialFrequency = "monthly"
)

// Inputs is implemented by ResidentialInputs and CommercialInputs.
type Inputs interface {
	Variant() Variant
}

// WindowCounts holds the number of windows on each floor tier.
type WindowCounts struct {
	Ground int `json:"ground"`
	Second int `json:"second"`
	Third  int `json:"third"`
}

// Total is the window count across all tiers. Counts are bounded by
// MaxUnits before pricing, so the sum cannot overflow.
func (w WindowCounts) Total() int {
	return w.Ground + w.Second + w.Third
}

// AddOns are optional residential extras.
type AddOns struct {
	Screens     bool `json:"screens"`
	TracksSills bool `json:"tracks_sills"`
	HardWater   bool `json:"hard_water"`
	Skylight    int  `json:"skylight"`
}

// ResidentialInputs are the customer parameters for a residential quote.
// Windows is mandatory; every other field falls back to its zero default
// (normal access, one-time service, no travel, no add-ons).
type ResidentialInputs struct {
	Windows     *WindowCounts `json:"windows"`
	AddOns      AddOns        `json:"addOns"`
	Access      Access        `json:"access,omitempty"`
	Frequency   Frequency     `json:"frequency,omitempty"`
	TravelMiles float64       `json:"travel_miles"`
}

func (ResidentialInputs) Variant() Variant { return VariantResidential }

// CommercialInputs are the customer parameters for a commercial quote.
// Panels, HeightTier and Frequency are all mandatory.
type CommercialInputs struct {
	Panels      *int                `json:"panels"`
	HeightTier  HeightTier          `json:"height_tier"`
	Frequency   CommercialFrequency `json:"frequency_com"`
	TravelMiles float64             `json:"travel_miles"`
}

func (CommercialInputs) Variant() Variant { return VariantCommercial }

// Breakdown is a midpoint-based, display-only split of the estimate. Its parts
// are rounded independently and need not sum to PriceMin or PriceMax.
type Breakdown struct {
	Base   int64 `json:"base"`
	AddOns int64 `json:"addOns"`
	Travel int64 `json:"travel"`
	Total  int64 `json:"total"`
}

// Result is the outcome of a pricing calculation.
type Result struct {
	PriceMin  int64     `json:"priceMin"`
	PriceMax  int64     `json:"priceMax"`
	Breakdown Breakdown `json:"breakdown"`
	// RatesVersion is the Version of the table the result was priced with.
	RatesVersion string `json:"ratesVersion,omitempty"`
}
