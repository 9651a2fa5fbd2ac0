// Package scaler standardizes feature vectors with per-column population
// mean and standard deviation fitted on training data.
package scaler

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// minStd is the smallest standard deviation treated as non-zero. Columns
// below it are constant in the training data and get a scale of 1.
const minStd = 1e-12

// ErrShape is returned when a vector does not match the fitted width.
var ErrShape = errors.New("vector length does not match scaler")

// Params is the persisted form of a fitted scaler.
type Params struct {
	Fields []string  `json:"fields"`
	Mean   []float64 `json:"mean"`
	Std    []float64 `json:"std"`
	RunID  string    `json:"run_id"`
}

// Fit computes column statistics over rows. Every row must have one value
// per field.
func Fit(fields []string, rows [][]float64) (*Params, error) {
	if len(fields) == 0 {
		return nil, errors.New("scaler: no fields")
	}
	if len(rows) == 0 {
		return nil, errors.New("scaler: no rows")
	}
	p := &Params{
		Fields: append([]string(nil), fields...),
		Mean:   make([]float64, len(fields)),
		Std:    make([]float64, len(fields)),
	}
	col := make([]float64, len(rows))
	for j := range fields {
		for i, r := range rows {
			if len(r) != len(fields) {
				return nil, fmt.Errorf("scaler: row %d: %w (got %d, want %d)", i, ErrShape, len(r), len(fields))
			}
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < minStd || math.IsNaN(std) {
			std = 1
		}
		p.Mean[j] = mean
		p.Std[j] = std
	}
	return p, nil
}

// Validate checks a loaded artifact for internal consistency.
func (p *Params) Validate() error {
	n := len(p.Fields)
	if n == 0 {
		return errors.New("scaler: no fields")
	}
	if len(p.Mean) != n || len(p.Std) != n {
		return fmt.Errorf("scaler: %d fields but %d means and %d stds", n, len(p.Mean), len(p.Std))
	}
	for i := range p.Fields {
		if math.IsNaN(p.Mean[i]) || math.IsInf(p.Mean[i], 0) {
			return fmt.Errorf("scaler: mean of %s is not finite", p.Fields[i])
		}
		if !(p.Std[i] > 0) || math.IsInf(p.Std[i], 0) {
			return fmt.Errorf("scaler: std of %s must be positive, got %v", p.Fields[i], p.Std[i])
		}
	}
	return nil
}

// Transform returns (x - mean) / std for each column.
func (p *Params) Transform(x []float64) ([]float64, error) {
	if len(x) != len(p.Mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShape, len(x), len(p.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - p.Mean[i]) / p.scale(i)
	}
	return out, nil
}

// TransformAll applies Transform to every row.
func (p *Params) TransformAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		z, err := p.Transform(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = z
	}
	return out, nil
}

func (p *Params) scale(i int) float64 {
	if p.Std[i] < minStd {
		return 1
	}
	return p.Std[i]
}
