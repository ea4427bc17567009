/*
Package generic provides the domain-agnostic primitives of the pay tracker.

PURPOSE:
  Money and hours are summed over many missions. Doing that in float64
  drifts (0.1 + 0.2 problems), so the stats sums go through Amount,
  which wraps decimal.Decimal and carries its unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (7.5 hours, 102.33 EUR)
  - Rounding helpers used by every report (2 decimals, 3 for hourly rates)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Records stay float64: persisted JSON keeps plain numbers, conversion
     happens at the aggregation boundary (NewAmount in, Value out)

USAGE:
  total := generic.Zero(generic.UnitEUR)
  total = total.Add(generic.NewAmount(102.33, generic.UnitEUR))
  fmt.Println(total.Round(generic.CurrencyPlaces).Value)

SEE ALSO:
  - time.go: Day keys and month indexes
  - period.go: Month and year scopes
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours      Unit = "hours"
	UnitEUR        Unit = "EUR"
	UnitEURPerHour Unit = "EUR/h"
)

// Rounding precision of reported figures.
const (
	CurrencyPlaces   int32 = 2
	HoursPlaces      int32 = 2
	HourlyRatePlaces int32 = 3
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Zero(unit Unit) Amount {
	return Amount{Value: decimal.Zero, Unit: unit}
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) Round(places int32) Amount { return Amount{Value: a.Value.Round(places), Unit: a.Unit} }

// Times multiplies a by b, producing a quantity in the given unit
// (EUR/h times hours is EUR).
func (a Amount) Times(b Amount, unit Unit) Amount {
	return Amount{Value: a.Value.Mul(b.Value), Unit: unit}
}

// Per divides a by b, producing a rate in the given unit. A zero divisor
// yields zero rather than an error: "no hours worked" means "no hourly rate".
func (a Amount) Per(b Amount, unit Unit) Amount {
	if b.IsZero() {
		return Zero(unit)
	}
	return Amount{Value: a.Value.DivRound(b.Value, 16), Unit: unit}
}

// RoundFloat rounds a plain float through decimal arithmetic.
func RoundFloat(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
