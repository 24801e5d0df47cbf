package pricing

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *RateTable {
	travel := TravelRates{BaseMiles: decimal.NewFromInt(20), PerMile: NewRange(1, 1.5)}
	return &RateTable{
		Residential: ResidentialRates{
			Windows: FloorRates{
				Ground: NewRange(8, 10),
				Second: NewRange(10, 13),
				Third:  NewRange(12, 16),
			},
			AddOns: AddOnRates{
				Screens:     NewRange(1.5, 2.5),
				TracksSills: NewRange(2, 3),
				HardWater:   NewRange(4, 6),
				Skylight:    NewRange(15, 25),
			},
			AccessHard:         decimal.NewFromFloat(1.25),
			FrequencyQuarterly: decimal.NewFromFloat(0.85),
			FrequencyBiannual:  decimal.NewFromFloat(0.9),
			Travel:             travel,
		},
		Commercial: CommercialRates{
			Panels: PanelRates{
				Ground: NewRange(2, 3),
				Low:    NewRange(3, 4.5),
				Medium: NewRange(4, 6.5),
				High:   NewRange(6, 10),
			},
			FrequencyWeekly:   decimal.NewFromFloat(0.8),
			FrequencyBiWeekly: decimal.NewFromFloat(0.9),
			FrequencyMonthly:  decimal.NewFromInt(1),
			Travel:            travel,
		},
	}
}

func intPtr(n int) *int { return &n }

func groundOnly(n int) *WindowCounts { return &WindowCounts{Ground: n} }

func TestCalculateResidential_Scenarios(t *testing.T) {
	rt := testTable()

	tests := []struct {
		name    string
		input   ResidentialInputs
		wantMin int64
		wantMax int64
	}{
		{
			name: "ten ground windows within travel allowance",
			input: ResidentialInputs{
				Windows:     groundOnly(10),
				Access:      AccessNormal,
				Frequency:   FrequencyOneTime,
				TravelMiles: 5,
			},
			wantMin: 80,
			wantMax: 100,
		},
		{
			name: "ten ground windows with screens",
			input: ResidentialInputs{
				Windows:     groundOnly(10),
				AddOns:      AddOns{Screens: true},
				Access:      AccessNormal,
				Frequency:   FrequencyOneTime,
				TravelMiles: 5,
			},
			wantMin: 95,
			wantMax: 125,
		},
		{
			name:    "defaults applied when optional fields are empty",
			input:   ResidentialInputs{Windows: groundOnly(10)},
			wantMin: 80,
			wantMax: 100,
		},
		{
			name: "floor tiers are additive",
			input: ResidentialInputs{
				Windows: &WindowCounts{Ground: 1, Second: 1, Third: 1},
			},
			wantMin: 30,
			wantMax: 39,
		},
		{
			name: "every add-on",
			input: ResidentialInputs{
				Windows: &WindowCounts{Ground: 4, Second: 2},
				AddOns:  AddOns{Screens: true, TracksSills: true, HardWater: true, Skylight: 2},
			},
			// base 4*[8,10]+2*[10,13] = [52,66]; per-window add-ons 6*[7.5,11.5] = [45,69]; skylights [30,50]
			wantMin: 127,
			wantMax: 185,
		},
		{
			name: "skylight only",
			input: ResidentialInputs{
				Windows: &WindowCounts{},
				AddOns:  AddOns{Skylight: 1},
			},
			wantMin: 15,
			wantMax: 25,
		},
		{
			name: "hard access and quarterly compose",
			input: ResidentialInputs{
				Windows:   groundOnly(10),
				Access:    AccessHard,
				Frequency: FrequencyQuarterly,
			},
			// 1.25 * 0.85 = 1.0625
			wantMin: 85,
			wantMax: 106,
		},
		{
			name: "biannual discount",
			input: ResidentialInputs{
				Windows:   groundOnly(10),
				Frequency: FrequencyBiannual,
			},
			wantMin: 72,
			wantMax: 90,
		},
		{
			name: "travel beyond allowance",
			input: ResidentialInputs{
				Windows:     groundOnly(10),
				TravelMiles: 30,
			},
			wantMin: 90,
			wantMax: 115,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateResidential(rt, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, got.PriceMin)
			assert.Equal(t, tt.wantMax, got.PriceMax)
			assert.LessOrEqual(t, got.PriceMin, got.PriceMax)
		})
	}
}

func TestCalculateResidential_Breakdown(t *testing.T) {
	got, err := CalculateResidential(testTable(), ResidentialInputs{
		Windows:     groundOnly(10),
		AddOns:      AddOns{Screens: true},
		TravelMiles: 22,
	})
	require.NoError(t, err)

	// base [80,100], add-ons [15,25], travel [2,3]
	assert.Equal(t, int64(97), got.PriceMin)
	assert.Equal(t, int64(128), got.PriceMax)
	assert.Equal(t, Breakdown{Base: 90, AddOns: 20, Travel: 3, Total: 113}, got.Breakdown)
}

func TestCalculateResidential_BreakdownAppliesMultiplier(t *testing.T) {
	got, err := CalculateResidential(testTable(), ResidentialInputs{
		Windows: groundOnly(10),
		Access:  AccessHard,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), got.PriceMin)
	assert.Equal(t, int64(125), got.PriceMax)
	// midpoint 90 * 1.25 = 112.5
	assert.Equal(t, int64(113), got.Breakdown.Base)
	assert.Equal(t, int64(113), got.Breakdown.Total)
}

func TestCalculateResidential_ZeroWindows(t *testing.T) {
	got, err := CalculateResidential(testTable(), ResidentialInputs{
		Windows: &WindowCounts{},
		AddOns:  AddOns{Screens: true, TracksSills: true, HardWater: true},
		Access:  AccessHard,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, got)
}

func TestCalculateResidential_TravelAllowance(t *testing.T) {
	rt := testTable()
	price := func(miles float64) Result {
		t.Helper()
		res, err := CalculateResidential(rt, ResidentialInputs{Windows: &WindowCounts{}, TravelMiles: miles})
		require.NoError(t, err)
		return res
	}

	for _, miles := range []float64{0, 5, 19.9, 20} {
		assert.Equal(t, Result{}, price(miles), "miles=%v", miles)
	}

	prev := price(20)
	for _, miles := range []float64{21, 25, 40, 100} {
		cur := price(miles)
		assert.Greater(t, cur.PriceMin, prev.PriceMin, "miles=%v", miles)
		assert.Greater(t, cur.PriceMax, prev.PriceMax, "miles=%v", miles)
		prev = cur
	}
}

func TestCalculateResidential_Monotonic(t *testing.T) {
	rt := testTable()
	var prev Result
	for n := 0; n <= 50; n++ {
		for _, w := range []*WindowCounts{{Ground: n}, {Second: n}, {Third: n}} {
			got, err := CalculateResidential(rt, ResidentialInputs{Windows: w, AddOns: AddOns{Screens: true}})
			require.NoError(t, err)
			assert.LessOrEqual(t, got.PriceMin, got.PriceMax)
		}
		got, err := CalculateResidential(rt, ResidentialInputs{Windows: groundOnly(n), Frequency: FrequencyQuarterly})
		require.NoError(t, err)
		if n > 0 {
			assert.Greater(t, got.PriceMin, prev.PriceMin)
			assert.Greater(t, got.PriceMax, prev.PriceMax)
		}
		prev = got
	}
}

func TestCalculateResidential_Validation(t *testing.T) {
	rt := testTable()

	tests := []struct {
		name    string
		input   ResidentialInputs
		field   string
		wantErr error
	}{
		{"missing windows", ResidentialInputs{}, "windows", ErrMissingInput},
		{"negative ground", ResidentialInputs{Windows: &WindowCounts{Ground: -1}}, "windows.ground", ErrInvalidInput},
		{"negative second", ResidentialInputs{Windows: &WindowCounts{Second: -2}}, "windows.second", ErrInvalidInput},
		{"negative third", ResidentialInputs{Windows: &WindowCounts{Third: -3}}, "windows.third", ErrInvalidInput},
		{"negative skylight", ResidentialInputs{Windows: groundOnly(1), AddOns: AddOns{Skylight: -1}}, "addOns.skylight", ErrInvalidInput},
		{"unknown access", ResidentialInputs{Windows: groundOnly(1), Access: "ladder"}, "access", ErrInvalidInput},
		{"unknown frequency", ResidentialInputs{Windows: groundOnly(1), Frequency: "weekly"}, "frequency", ErrInvalidInput},
		{"negative travel", ResidentialInputs{Windows: groundOnly(1), TravelMiles: -1}, "travel_miles", ErrInvalidInput},
		{"nan travel", ResidentialInputs{Windows: groundOnly(1), TravelMiles: math.NaN()}, "travel_miles", ErrInvalidInput},
		{"infinite travel", ResidentialInputs{Windows: groundOnly(1), TravelMiles: math.Inf(1)}, "travel_miles", ErrInvalidInput},
		{"huge travel", ResidentialInputs{Windows: groundOnly(5), TravelMiles: 1e308}, "travel_miles", ErrInvalidInput},
		{"travel over cap", ResidentialInputs{Windows: groundOnly(5), TravelMiles: MaxTravelMiles + 0.5}, "travel_miles", ErrInvalidInput},
		{"ground over cap", ResidentialInputs{Windows: &WindowCounts{Ground: math.MaxInt, Second: 1}, AddOns: AddOns{Screens: true}}, "windows.ground", ErrInvalidInput},
		{"third over cap", ResidentialInputs{Windows: &WindowCounts{Third: MaxUnits + 1}}, "windows.third", ErrInvalidInput},
		{"skylights over cap", ResidentialInputs{Windows: groundOnly(1), AddOns: AddOns{Skylight: MaxUnits + 1}}, "addOns.skylight", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateResidential(rt, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCalculateCommercial_Scenarios(t *testing.T) {
	rt := testTable()

	tests := []struct {
		name    string
		input   CommercialInputs
		wantMin int64
		wantMax int64
	}{
		{
			name:    "ground monthly within allowance",
			input:   CommercialInputs{Panels: intPtr(50), HeightTier: HeightGround, Frequency: CommercialMonthly, TravelMiles: 10},
			wantMin: 100,
			wantMax: 150,
		},
		{
			name:    "high tier weekly discount",
			input:   CommercialInputs{Panels: intPtr(50), HeightTier: HeightHigh, Frequency: CommercialWeekly},
			wantMin: 240,
			wantMax: 400,
		},
		{
			name:    "medium tier bi-weekly",
			input:   CommercialInputs{Panels: intPtr(20), HeightTier: HeightMedium, Frequency: CommercialBiWeekly},
			wantMin: 72,
			wantMax: 117,
		},
		{
			name:    "low tier with travel",
			input:   CommercialInputs{Panels: intPtr(10), HeightTier: HeightLow, Frequency: CommercialMonthly, TravelMiles: 30},
			wantMin: 40,
			wantMax: 60,
		},
		{
			name:    "zero panels",
			input:   CommercialInputs{Panels: intPtr(0), HeightTier: HeightHigh, Frequency: CommercialWeekly},
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "half dollar rounds up",
			input:   CommercialInputs{Panels: intPtr(0), HeightTier: HeightGround, Frequency: CommercialMonthly, TravelMiles: 21},
			wantMin: 1,
			wantMax: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateCommercial(rt, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, got.PriceMin)
			assert.Equal(t, tt.wantMax, got.PriceMax)
			assert.Zero(t, got.Breakdown.AddOns)
		})
	}
}

func TestCalculateCommercial_Breakdown(t *testing.T) {
	got, err := CalculateCommercial(testTable(), CommercialInputs{
		Panels:     intPtr(50),
		HeightTier: HeightHigh,
		Frequency:  CommercialWeekly,
	})
	require.NoError(t, err)
	assert.Equal(t, Breakdown{Base: 320, AddOns: 0, Travel: 0, Total: 320}, got.Breakdown)
}

func TestCalculateCommercial_Monotonic(t *testing.T) {
	rt := testTable()
	for _, tier := range []HeightTier{HeightGround, HeightLow, HeightMedium, HeightHigh} {
		var prev Result
		for n := 0; n <= 40; n++ {
			got, err := CalculateCommercial(rt, CommercialInputs{Panels: intPtr(n), HeightTier: tier, Frequency: CommercialWeekly})
			require.NoError(t, err)
			assert.LessOrEqual(t, got.PriceMin, got.PriceMax)
			assert.GreaterOrEqual(t, got.PriceMin, prev.PriceMin)
			assert.GreaterOrEqual(t, got.PriceMax, prev.PriceMax)
			prev = got
		}
	}
}

func TestCalculateCommercial_Validation(t *testing.T) {
	rt := testTable()

	tests := []struct {
		name    string
		input   CommercialInputs
		field   string
		wantErr error
	}{
		{"missing panels", CommercialInputs{HeightTier: HeightLow, Frequency: CommercialWeekly}, "panels", ErrMissingInput},
		{"missing height tier", CommercialInputs{Panels: intPtr(1), Frequency: CommercialWeekly}, "height_tier", ErrMissingInput},
		{"missing frequency", CommercialInputs{Panels: intPtr(1), HeightTier: HeightLow}, "frequency_com", ErrMissingInput},
		{"negative panels", CommercialInputs{Panels: intPtr(-5), HeightTier: HeightLow, Frequency: CommercialWeekly}, "panels", ErrInvalidInput},
		{"unknown tier", CommercialInputs{Panels: intPtr(1), HeightTier: "roof", Frequency: CommercialWeekly}, "height_tier", ErrInvalidInput},
		{"unknown frequency", CommercialInputs{Panels: intPtr(1), HeightTier: HeightLow, Frequency: "daily"}, "frequency_com", ErrInvalidInput},
		{"negative travel", CommercialInputs{Panels: intPtr(1), HeightTier: HeightLow, Frequency: CommercialWeekly, TravelMiles: -0.5}, "travel_miles", ErrInvalidInput},
		{"panels over cap", CommercialInputs{Panels: intPtr(math.MaxInt), HeightTier: HeightHigh, Frequency: CommercialMonthly}, "panels", ErrInvalidInput},
		{"travel over cap", CommercialInputs{Panels: intPtr(1), HeightTier: HeightLow, Frequency: CommercialWeekly, TravelMiles: 1e308}, "travel_miles", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateCommercial(rt, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCalculate_LargestInputsStayOrdered(t *testing.T) {
	rt := testTable()

	res, err := CalculateResidential(rt, ResidentialInputs{
		Windows:     &WindowCounts{Ground: MaxUnits, Second: MaxUnits, Third: MaxUnits},
		AddOns:      AddOns{Screens: true, TracksSills: true, HardWater: true, Skylight: MaxUnits},
		Access:      AccessHard,
		TravelMiles: MaxTravelMiles,
	})
	require.NoError(t, err)
	assert.Positive(t, res.PriceMin)
	assert.LessOrEqual(t, res.PriceMin, res.PriceMax)

	res, err = CalculateCommercial(rt, CommercialInputs{
		Panels:      intPtr(MaxUnits),
		HeightTier:  HeightHigh,
		Frequency:   CommercialMonthly,
		TravelMiles: MaxTravelMiles,
	})
	require.NoError(t, err)
	assert.Positive(t, res.PriceMin)
	assert.LessOrEqual(t, res.PriceMin, res.PriceMax)
}

func TestCalculate_EstimateOutOfRange(t *testing.T) {
	rt := testTable()
	rt.Commercial.Panels.High = NewRange(1e12, 2e12)

	_, err := CalculateCommercial(rt, CommercialInputs{Panels: intPtr(10), HeightTier: HeightHigh, Frequency: CommercialMonthly})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorContains(t, err, "estimate is outside")
}

func TestRoundDollars(t *testing.T) {
	n, ok := roundDollars(decimal.RequireFromString("12.5"))
	assert.True(t, ok)
	assert.Equal(t, int64(13), n)

	_, ok = roundDollars(MaxDollars.Add(decimal.NewFromInt(1)))
	assert.False(t, ok)

	_, ok = roundDollars(decimal.RequireFromString("1e30"))
	assert.False(t, ok)

	_, ok = roundDollars(decimal.NewFromInt(-1))
	assert.False(t, ok)
}

func TestCalculate_Dispatch(t *testing.T) {
	rt := testTable()

	res, err := Calculate(rt, VariantResidential, ResidentialInputs{Windows: groundOnly(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.PriceMin)

	res, err = Calculate(rt, VariantCommercial, CommercialInputs{Panels: intPtr(50), HeightTier: HeightGround, Frequency: CommercialMonthly})
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.PriceMax)

	_, err = Calculate(rt, "industrial", ResidentialInputs{Windows: groundOnly(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Calculate(rt, VariantCommercial, ResidentialInputs{Windows: groundOnly(1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Calculate(nil, VariantResidential, ResidentialInputs{Windows: groundOnly(1)})
	assert.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestCalculate_Deterministic(t *testing.T) {
	rt := testTable()
	in := ResidentialInputs{
		Windows:     &WindowCounts{Ground: 7, Second: 3, Third: 1},
		AddOns:      AddOns{HardWater: true, Skylight: 1},
		Access:      AccessHard,
		Frequency:   FrequencyBiannual,
		TravelMiles: 33.3,
	}
	first, err := Calculate(rt, VariantResidential, in)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := Calculate(rt, VariantResidential, in)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestDecodeInputs(t *testing.T) {
	in, err := DecodeInputs(VariantResidential, json.RawMessage(`{
		"windows": {"ground": 10, "second": 0, "third": 0},
		"addOns": {"screens": true, "tracks_sills": false, "hard_water": false, "skylight": 0},
		"access": "normal",
		"frequency": "one_time",
		"travel_miles": 5
	}`))
	require.NoError(t, err)
	ri, ok := in.(ResidentialInputs)
	require.True(t, ok)
	require.NotNil(t, ri.Windows)
	assert.Equal(t, 10, ri.Windows.Ground)
	assert.True(t, ri.AddOns.Screens)
	assert.Equal(t, 5.0, ri.TravelMiles)

	in, err = DecodeInputs(VariantCommercial, json.RawMessage(`{"panels": 50, "height_tier": "high", "frequency_com": "weekly"}`))
	require.NoError(t, err)
	ci, ok := in.(CommercialInputs)
	require.True(t, ok)
	require.NotNil(t, ci.Panels)
	assert.Equal(t, 50, *ci.Panels)
	assert.Equal(t, HeightHigh, ci.HeightTier)

	_, err = DecodeInputs(VariantResidential, nil)
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = DecodeInputs(VariantResidential, json.RawMessage(`null`))
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = DecodeInputs(VariantResidential, json.RawMessage(`{"windows": {"ground": 2.5}}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodeInputs("xyz", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeInputs_RejectsUnknownKeys(t *testing.T) {
	_, err := DecodeInputs(VariantResidential, json.RawMessage(`{"windows":{"ground":5},"bogus":1,"frequncy":"quarterly"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorContains(t, err, "unknown field")

	_, err = DecodeInputs(VariantResidential, json.RawMessage(`{"windows":{"ground":5,"fourth":2}}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodeInputs(VariantCommercial, json.RawMessage(`{"panels":5,"height_tier":"low","frequency":"weekly"}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DecodeInputs(VariantResidential, json.RawMessage(`{"windows":{"ground":5}} {"windows":{}}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeInputs_MissingWindowsFailsCalculation(t *testing.T) {
	in, err := DecodeInputs(VariantResidential, json.RawMessage(`{"access": "hard"}`))
	require.NoError(t, err)
	_, err = Calculate(testTable(), VariantResidential, in)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestRange(t *testing.T) {
	r := NewRange(1.5, 2.5).Scale(10).Add(NewRange(8, 10))
	assert.True(t, r.Low.Equal(decimal.NewFromInt(23)))
	assert.True(t, r.High.Equal(decimal.NewFromInt(35)))
	assert.True(t, r.Midpoint().Equal(decimal.NewFromInt(29)))
	assert.True(t, Range{}.IsZero())
	assert.Equal(t, "[8, 10]", NewRange(8, 10).String())

	assert.NoError(t, NewRange(1, 1).Validate())
	assert.Error(t, NewRange(2, 1).Validate())
	assert.Error(t, NewRange(-1, 1).Validate())
}

func TestRateTable_Validate(t *testing.T) {
	require.NoError(t, testTable().Validate())

	var nilTable *RateTable
	assert.Error(t, nilTable.Validate())

	rt := testTable()
	rt.Commercial.Panels.High = NewRange(10, 6)
	assert.ErrorContains(t, rt.Validate(), "commercial.panels.high")

	rt = testTable()
	rt.Residential.FrequencyQuarterly = decimal.Zero
	assert.ErrorContains(t, rt.Validate(), "frequency_quarterly")

	rt = testTable()
	rt.Residential.Travel.BaseMiles = decimal.NewFromInt(-1)
	assert.ErrorContains(t, rt.Validate(), "base_miles")
}

func TestEngine_Swap(t *testing.T) {
	e, err := NewEngine(testTable())
	require.NoError(t, err)

	in := ResidentialInputs{Windows: groundOnly(10)}
	res, err := e.Calculate(VariantResidential, in)
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.PriceMin)

	bad := testTable()
	bad.Residential.Windows.Ground = NewRange(5, 1)
	assert.Error(t, e.Swap(bad))
	res, err = e.Calculate(VariantResidential, in)
	require.NoError(t, err)
	assert.Equal(t, int64(80), res.PriceMin, "failed swap must keep the old table")

	doubled := testTable()
	doubled.Residential.Windows.Ground = NewRange(16, 20)
	require.NoError(t, e.Swap(doubled))
	res, err = e.Calculate(VariantResidential, in)
	require.NoError(t, err)
	assert.Equal(t, int64(160), res.PriceMin)
	assert.Equal(t, int64(200), res.PriceMax)
}

func TestEngine_ConcurrentSwap(t *testing.T) {
	base := testTable()
	doubled := testTable()
	doubled.Residential.Windows.Ground = NewRange(16, 20)

	e, err := NewEngine(base)
	require.NoError(t, err)

	in := ResidentialInputs{Windows: groundOnly(10)}
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				res, err := e.Calculate(VariantResidential, in)
				if err != nil {
					errs <- err.Error()
					return
				}
				// A torn table would pair one table's low with the other's high.
				ok := (res.PriceMin == 80 && res.PriceMax == 100) || (res.PriceMin == 160 && res.PriceMax == 200)
				if !ok {
					errs <- "unexpected result"
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			require.NoError(t, e.Swap(doubled))
		} else {
			require.NoError(t, e.Swap(base))
		}
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestEngine_CalculateJSON(t *testing.T) {
	e, err := NewEngine(testTable())
	require.NoError(t, err)

	in, res, err := e.CalculateJSON(VariantCommercial, json.RawMessage(`{"panels": 50, "height_tier": "ground", "frequency_com": "monthly", "travel_miles": 10}`))
	require.NoError(t, err)
	assert.Equal(t, VariantCommercial, in.Variant())
	assert.Equal(t, int64(100), res.PriceMin)
	assert.Equal(t, int64(150), res.PriceMax)

	_, _, err = e.CalculateJSON(VariantCommercial, json.RawMessage(`{"panels": 50}`))
	assert.ErrorIs(t, err, ErrMissingInput)
}
