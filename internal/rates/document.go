package rates

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bher20/equotemanager/internal/pricing"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is matched by errors from Document.Table.
var ErrInvalidDocument = errors.New("invalid rate document")

// Pair is a [low, high] dollar range as written in rate documents.
type Pair [2]float64

func (p Pair) rng() pricing.Range { return pricing.NewRange(p[0], p[1]) }

func pairOf(r pricing.Range) Pair {
	return Pair{r.Low.InexactFloat64(), r.High.InexactFloat64()}
}

// Document is the serialisable form of a rate table.
type Document struct {
	Residential ResidentialDoc `json:"residential" yaml:"residential"`
	Commercial  CommercialDoc  `json:"commercial" yaml:"commercial"`
}

type ResidentialDoc struct {
	Windows     FloorsDoc              `json:"windows" yaml:"windows"`
	AddOns      AddOnsDoc              `json:"add_ons" yaml:"add_ons"`
	Multipliers ResidentialMultipliers `json:"multipliers" yaml:"multipliers"`
	Travel      TravelDoc              `json:"travel" yaml:"travel"`
}

type FloorsDoc struct {
	Ground Pair `json:"ground" yaml:"ground"`
	Second Pair `json:"second" yaml:"second"`
	Third  Pair `json:"third" yaml:"third"`
}

type AddOnsDoc struct {
	Screens     Pair `json:"screens" yaml:"screens"`
	TracksSills Pair `json:"tracks_sills" yaml:"tracks_sills"`
	HardWater   Pair `json:"hard_water" yaml:"hard_water"`
	Skylight    Pair `json:"skylight" yaml:"skylight"`
}

type ResidentialMultipliers struct {
	AccessHard         float64 `json:"access_hard" yaml:"access_hard"`
	FrequencyQuarterly float64 `json:"frequency_quarterly" yaml:"frequency_quarterly"`
	FrequencyBiannual  float64 `json:"frequency_biannual" yaml:"frequency_biannual"`
}

type TravelDoc struct {
	BaseMiles float64 `json:"base_miles" yaml:"base_miles"`
	PerMile   Pair    `json:"per_mile" yaml:"per_mile"`
}

type CommercialDoc struct {
	Panels      PanelsDoc             `json:"panels" yaml:"panels"`
	Multipliers CommercialMultipliers `json:"multipliers" yaml:"multipliers"`
	Travel      TravelDoc             `json:"travel" yaml:"travel"`
}

type PanelsDoc struct {
	Ground Pair `json:"ground" yaml:"ground"`
	Low    Pair `json:"low" yaml:"low"`
	Medium Pair `json:"medium" yaml:"medium"`
	High   Pair `json:"high" yaml:"high"`
}

type CommercialMultipliers struct {
	FrequencyWeekly   float64 `json:"frequency_weekly" yaml:"frequency_weekly"`
	FrequencyBiWeekly float64 `json:"frequency_bi_weekly" yaml:"frequency_bi_weekly"`
	FrequencyMonthly  float64 `json:"frequency_monthly" yaml:"frequency_monthly"`
}

// Default returns the built-in rate document.
func Default() Document {
	travel := TravelDoc{BaseMiles: 20, PerMile: Pair{1, 1.5}}
	return Document{
		Residential: ResidentialDoc{
			Windows: FloorsDoc{
				Ground: Pair{8, 10},
				Second: Pair{10, 13},
				Third:  Pair{12, 16},
			},
			AddOns: AddOnsDoc{
				Screens:     Pair{1.5, 2.5},
				TracksSills: Pair{2, 3},
				HardWater:   Pair{4, 6},
				Skylight:    Pair{15, 25},
			},
			Multipliers: ResidentialMultipliers{
				AccessHard:         1.25,
				FrequencyQuarterly: 0.85,
				FrequencyBiannual:  0.9,
			},
			Travel: travel,
		},
		Commercial: CommercialDoc{
			Panels: PanelsDoc{
				Ground: Pair{2, 3},
				Low:    Pair{3, 4.5},
				Medium: Pair{4, 6.5},
				High:   Pair{6, 10},
			},
			Multipliers: CommercialMultipliers{
				FrequencyWeekly:   0.8,
				FrequencyBiWeekly: 0.9,
				FrequencyMonthly:  1.0,
			},
			Travel: travel,
		},
	}
}

// Table validates the document and builds the pricing table from it.
func (d Document) Table() (*pricing.RateTable, error) {
	r, c := d.Residential, d.Commercial
	rt := &pricing.RateTable{
		Residential: pricing.ResidentialRates{
			Windows: pricing.FloorRates{
				Ground: r.Windows.Ground.rng(),
				Second: r.Windows.Second.rng(),
				Third:  r.Windows.Third.rng(),
			},
			AddOns: pricing.AddOnRates{
				Screens:     r.AddOns.Screens.rng(),
				TracksSills: r.AddOns.TracksSills.rng(),
				HardWater:   r.AddOns.HardWater.rng(),
				Skylight:    r.AddOns.Skylight.rng(),
			},
			AccessHard:         decimal.NewFromFloat(r.Multipliers.AccessHard),
			FrequencyQuarterly: decimal.NewFromFloat(r.Multipliers.FrequencyQuarterly),
			FrequencyBiannual:  decimal.NewFromFloat(r.Multipliers.FrequencyBiannual),
			Travel:             r.Travel.rates(),
		},
		Commercial: pricing.CommercialRates{
			Panels: pricing.PanelRates{
				Ground: c.Panels.Ground.rng(),
				Low:    c.Panels.Low.rng(),
				Medium: c.Panels.Medium.rng(),
				High:   c.Panels.High.rng(),
			},
			FrequencyWeekly:   decimal.NewFromFloat(c.Multipliers.FrequencyWeekly),
			FrequencyBiWeekly: decimal.NewFromFloat(c.Multipliers.FrequencyBiWeekly),
			FrequencyMonthly:  decimal.NewFromFloat(c.Multipliers.FrequencyMonthly),
			Travel:            c.Travel.rates(),
		},
	}
	if err := rt.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return rt, nil
}

func (t TravelDoc) rates() pricing.TravelRates {
	return pricing.TravelRates{BaseMiles: decimal.NewFromFloat(t.BaseMiles), PerMile: t.PerMile.rng()}
}

func travelDoc(t pricing.TravelRates) TravelDoc {
	return TravelDoc{BaseMiles: t.BaseMiles.InexactFloat64(), PerMile: pairOf(t.PerMile)}
}

// FromTable converts a pricing table back into a document.
func FromTable(rt *pricing.RateTable) Document {
	r, c := rt.Residential, rt.Commercial
	return Document{
		Residential: ResidentialDoc{
			Windows: FloorsDoc{
				Ground: pairOf(r.Windows.Ground),
				Second: pairOf(r.Windows.Second),
				Third:  pairOf(r.Windows.Third),
			},
			AddOns: AddOnsDoc{
				Screens:     pairOf(r.AddOns.Screens),
				TracksSills: pairOf(r.AddOns.TracksSills),
				HardWater:   pairOf(r.AddOns.HardWater),
				Skylight:    pairOf(r.AddOns.Skylight),
			},
			Multipliers: ResidentialMultipliers{
				AccessHard:         r.AccessHard.InexactFloat64(),
				FrequencyQuarterly: r.FrequencyQuarterly.InexactFloat64(),
				FrequencyBiannual:  r.FrequencyBiannual.InexactFloat64(),
			},
			Travel: travelDoc(r.Travel),
		},
		Commercial: CommercialDoc{
			Panels: PanelsDoc{
				Ground: pairOf(c.Panels.Ground),
				Low:    pairOf(c.Panels.Low),
				Medium: pairOf(c.Panels.Medium),
				High:   pairOf(c.Panels.High),
			},
			Multipliers: CommercialMultipliers{
				FrequencyWeekly:   c.FrequencyWeekly.InexactFloat64(),
				FrequencyBiWeekly: c.FrequencyBiWeekly.InexactFloat64(),
				FrequencyMonthly:  c.FrequencyMonthly.InexactFloat64(),
			},
			Travel: travelDoc(c.Travel),
		},
	}
}

// Checksum is a stable hash of the document's JSON form.
func (d Document) Checksum() string {
	b, _ := json.Marshal(d)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ParseJSON decodes a JSON rate document. Unknown keys are rejected.
func ParseJSON(data []byte) (Document, error) {
	var d Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("decode rates json: %w", err)
	}
	return d, nil
}

// ParseYAML decodes a YAML rate document. Unknown keys are rejected.
func ParseYAML(data []byte) (Document, error) {
	var d Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("decode rates yaml: %w", err)
	}
	return d, nil
}

// Load reads a rate document from path. Files ending in .json are decoded as
// JSON, everything else as YAML.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read rates file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// YAML renders the document as YAML.
func (d Document) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}
