package rates

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// rangeLine matches "<label>: $8 - $10" style lines. The separator may be a
// hyphen, an en dash or "to".
var rangeLine = regexp.MustCompile(`(?i)^\s*([a-z0-9][a-z0-9 &/\-]*?)\s*:?\s*\$\s*(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*\$?\s*(\d+(?:\.\d+)?)`)

// factorLine matches "<label>: x1.25", "<label>: 1.25x" or "<label>: 15%".
var factorLine = regexp.MustCompile(`(?i)^\s*([a-z0-9][a-z0-9 &/\-]*?)\s*:?\s*(?:x\s*)?(\d+(?:\.\d+)?)\s*(%|x)?\s*$`)

type rangeField struct {
	re  *regexp.Regexp
	set func(d *Document, p Pair)
}

type factorField struct {
	re *regexp.Regexp
	// surcharge percentages add to 1, discounts subtract.
	surcharge bool
	set       func(d *Document, f float64)
}

var sheetRanges = []rangeField{
	{regexp.MustCompile(`(?i)^ground(\s+floor)?\s+windows?$`), func(d *Document, p Pair) { d.Residential.Windows.Ground = p }},
	{regexp.MustCompile(`(?i)^(second|2nd)(\s+floor)?\s+windows?$`), func(d *Document, p Pair) { d.Residential.Windows.Second = p }},
	{regexp.MustCompile(`(?i)^(third|3rd)(\s+floor)?\s+windows?$`), func(d *Document, p Pair) { d.Residential.Windows.Third = p }},
	{regexp.MustCompile(`(?i)^screens?$`), func(d *Document, p Pair) { d.Residential.AddOns.Screens = p }},
	{regexp.MustCompile(`(?i)^tracks?\s*(and|&|/)\s*sills?$`), func(d *Document, p Pair) { d.Residential.AddOns.TracksSills = p }},
	{regexp.MustCompile(`(?i)^hard\s+water(\s+removal)?$`), func(d *Document, p Pair) { d.Residential.AddOns.HardWater = p }},
	{regexp.MustCompile(`(?i)^skylights?$`), func(d *Document, p Pair) { d.Residential.AddOns.Skylight = p }},
	{regexp.MustCompile(`(?i)^ground(\s+level)?\s+panels?$`), func(d *Document, p Pair) { d.Commercial.Panels.Ground = p }},
	{regexp.MustCompile(`(?i)^low(\s*-?\s*rise)?\s+panels?$`), func(d *Document, p Pair) { d.Commercial.Panels.Low = p }},
	{regexp.MustCompile(`(?i)^(medium|mid)(\s*-?\s*rise)?\s+panels?$`), func(d *Document, p Pair) { d.Commercial.Panels.Medium = p }},
	{regexp.MustCompile(`(?i)^high(\s*-?\s*rise)?\s+panels?$`), func(d *Document, p Pair) { d.Commercial.Panels.High = p }},
	{regexp.MustCompile(`(?i)^travel(\s+per\s+mile)?$`), func(d *Document, p Pair) {
		d.Residential.Travel.PerMile = p
		d.Commercial.Travel.PerMile = p
	}},
}

var sheetFactors = []factorField{
	{regexp.MustCompile(`(?i)^(hard|difficult)\s+access(\s+surcharge)?$`), true, func(d *Document, f float64) { d.Residential.Multipliers.AccessHard = f }},
	{regexp.MustCompile(`(?i)^quarterly(\s+discount)?$`), false, func(d *Document, f float64) { d.Residential.Multipliers.FrequencyQuarterly = f }},
	{regexp.MustCompile(`(?i)^(biannual|semi-?annual)(\s+discount)?$`), false, func(d *Document, f float64) { d.Residential.Multipliers.FrequencyBiannual = f }},
	{regexp.MustCompile(`(?i)^weekly(\s+discount)?$`), false, func(d *Document, f float64) { d.Commercial.Multipliers.FrequencyWeekly = f }},
	{regexp.MustCompile(`(?i)^bi-?\s?weekly(\s+discount)?$`), false, func(d *Document, f float64) { d.Commercial.Multipliers.FrequencyBiWeekly = f }},
	{regexp.MustCompile(`(?i)^monthly(\s+discount)?$`), false, func(d *Document, f float64) { d.Commercial.Multipliers.FrequencyMonthly = f }},
	{regexp.MustCompile(`(?i)^free\s+(travel\s+)?miles$`), false, func(d *Document, f float64) {
		d.Residential.Travel.BaseMiles = f
		d.Commercial.Travel.BaseMiles = f
	}},
}

// ParsePriceSheetText reads a plain-text price sheet. Every recognised line
// overrides the matching entry of the default document; unrecognised lines
// are ignored. It returns the number of entries set.
func ParsePriceSheetText(text string) (Document, int, error) {
	doc := Default()
	found := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := rangeLine.FindStringSubmatch(line); m != nil {
			label := strings.TrimSpace(m[1])
			for _, f := range sheetRanges {
				if f.re.MatchString(label) {
					f.set(&doc, Pair{parseFloat(m[2]), parseFloat(m[3])})
					found++
					break
				}
			}
			continue
		}
		if m := factorLine.FindStringSubmatch(line); m != nil {
			label := strings.TrimSpace(m[1])
			for _, f := range sheetFactors {
				if !f.re.MatchString(label) {
					continue
				}
				v := parseFloat(m[2])
				if m[3] == "%" {
					if f.surcharge {
						v = 1 + v/100
					} else {
						v = 1 - v/100
					}
				}
				f.set(&doc, v)
				found++
				break
			}
		}
	}
	if found == 0 {
		return Document{}, 0, fmt.Errorf("no rates found in price sheet")
	}
	if _, err := doc.Table(); err != nil {
		return Document{}, found, err
	}
	return doc, found, nil
}

// ParsePriceSheetPDF extracts the text of a price sheet PDF and delegates to
// ParsePriceSheetText.
func ParsePriceSheetPDF(path string) (Document, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return Document{}, 0, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return Document{}, 0, fmt.Errorf("read pdf text: %w", err)
	}

	return ParsePriceSheetText(buf.String())
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
