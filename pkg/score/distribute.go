// Package score turns relative weights into absolute points.
//
// Arithmetic is exact (shopspring/decimal) so that the points of a group's
// children always sum to the group's points at the declared granularity.
package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrStep         = errors.New("score: step must be positive")
	ErrNoWeight     = errors.New("score: weights sum to zero")
	ErrNegative     = errors.New("score: negative weight")
	ErrOverBudget   = errors.New("score: fixed points exceed the parent's points")
	ErrPointsWeight = errors.New("score: both points and weight declared")
)

// Distribute splits total proportionally to weights. Each share is rounded
// half-up to a multiple of step; the rounding residual is then handed out
// one step at a time to the shares with the largest remainders (or taken
// from the smallest positive shares when over-allocated), ties going to the
// earlier entry.
// The result always sums to total when total is a multiple of step.
func Distribute(weights []decimal.Decimal, total, step decimal.Decimal) ([]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, nil
	}
	if !step.IsPositive() {
		return nil, ErrStep
	}
	sum := decimal.Zero
	for i, w := range weights {
		if w.IsNegative() {
			return nil, fmt.Errorf("%w at index %d", ErrNegative, i)
		}
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		return nil, ErrNoWeight
	}

	exact := make([]decimal.Decimal, len(weights))
	rounded := make([]decimal.Decimal, len(weights))
	remainders := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		exact[i] = w.Mul(total).Div(sum)
		rounded[i] = Round(exact[i], step)
		remainders[i] = exact[i].Sub(exact[i].Div(step).Floor().Mul(step))
		allocated = allocated.Add(rounded[i])
	}

	units := total.Sub(allocated).Div(step).Round(0).IntPart()
	if units == 0 {
		return rounded, nil
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	adjust := step
	if units > 0 {
		sort.SliceStable(order, func(a, b int) bool {
			return remainders[order[a]].GreaterThan(remainders[order[b]])
		})
	} else {
		sort.SliceStable(order, func(a, b int) bool {
			return remainders[order[a]].LessThan(remainders[order[b]])
		})
		adjust = step.Neg()
		units = -units
	}
	for i, progress := 0, false; units > 0; i++ {
		if i == len(order) {
			if !progress {
				break
			}
			i, progress = 0, false
		}
		idx := order[i]
		// A share never goes below zero.
		if adjust.IsNegative() && rounded[idx].LessThan(step) {
			continue
		}
		rounded[idx] = rounded[idx].Add(adjust)
		units--
		progress = true
	}
	return rounded, nil
}

// Round rounds v half-up to the nearest multiple of step.
func Round(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Round(0).Mul(step)
}

// Float converts a decimal to the float used in reports, dropping any
// trailing zeros.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
