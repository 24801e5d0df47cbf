// Package pricing converts window-cleaning service parameters into an
// estimated price range. Calculations are pure: they read only their inputs
// and the RateTable passed in, and are safe for concurrent use.
package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Calculate routes to the residential or commercial calculation. The inputs
// must match the variant. The result carries rt.Version.
func Calculate(rt *RateTable, variant Variant, in Inputs) (Result, error) {
	if rt == nil {
		return Result{}, errors.New("pricing: nil rate table")
	}
	var (
		res Result
		err error
	)
	switch variant {
	case VariantResidential:
		ri, ok := in.(ResidentialInputs)
		if !ok {
			return Result{}, invalid("inputs", "expected residential inputs for variant %q", variant)
		}
		res, err = CalculateResidential(rt, ri)
	case VariantCommercial:
		ci, ok := in.(CommercialInputs)
		if !ok {
			return Result{}, invalid("inputs", "expected commercial inputs for variant %q", variant)
		}
		res, err = CalculateCommercial(rt, ci)
	default:
		return Result{}, invalid("variant", "unknown variant %q", variant)
	}
	if err != nil {
		return Result{}, err
	}
	res.RatesVersion = rt.Version
	return res, nil
}

// DecodeInputs parses a JSON inputs object for the given variant. Unknown
// keys are rejected so a misspelled option never falls back to its default.
func DecodeInputs(variant Variant, raw json.RawMessage) (Inputs, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, missing("inputs")
	}
	switch variant {
	case VariantResidential:
		var in ResidentialInputs
		if err := decodeStrict(raw, &in); err != nil {
			return nil, invalid("inputs", "malformed residential inputs: %v", err)
		}
		return in, nil
	case VariantCommercial:
		var in CommercialInputs
		if err := decodeStrict(raw, &in); err != nil {
			return nil, invalid("inputs", "malformed commercial inputs: %v", err)
		}
		return in, nil
	default:
		return nil, invalid("variant", "unknown variant %q", variant)
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after inputs object")
	}
	return nil
}
