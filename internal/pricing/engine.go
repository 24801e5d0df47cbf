package pricing

import (
	"encoding/json"
	"sync/atomic"
)

// Engine holds the live RateTable. Reloads swap in a fully built table so a
// calculation in flight never sees a partially updated one.
type Engine struct {
	table atomic.Pointer[RateTable]
}

// NewEngine validates rt and returns an Engine serving it.
func NewEngine(rt *RateTable) (*Engine, error) {
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{}
	e.table.Store(rt)
	return e, nil
}

// Table returns the current rate table. Callers must not modify it.
func (e *Engine) Table() *RateTable {
	return e.table.Load()
}

// Swap replaces the rate table after validating it. On error the current
// table is kept.
func (e *Engine) Swap(rt *RateTable) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	e.table.Store(rt)
	return nil
}

// Calculate prices in against the current table.
func (e *Engine) Calculate(variant Variant, in Inputs) (Result, error) {
	return Calculate(e.Table(), variant, in)
}

// CalculateJSON decodes raw inputs for variant and prices them.
func (e *Engine) CalculateJSON(variant Variant, raw json.RawMessage) (Inputs, Result, error) {
	in, err := DecodeInputs(variant, raw)
	if err != nil {
		return nil, Result{}, err
	}
	res, err := e.Calculate(variant, in)
	if err != nil {
		return nil, Result{}, err
	}
	return in, res, nil
}
