package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerUnit — число минимальных единиц в одной отображаемой единице.
const MinorUnitsPerUnit = 100

// Amount — сумма в минимальных единицах (сотых долях).
type Amount int64

// ErrInvalidAmount возвращается при разборе некорректной суммы.
var ErrInvalidAmount = errors.New("invalid amount")

var minorUnits = decimal.NewFromInt(MinorUnitsPerUnit)

// ParseAmount разбирает десятичную запись вида "0.95" в минимальные единицы.
// Суммы с точностью меньше минимальной единицы и отрицательные суммы отклоняются.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}

	scaled := d.Mul(minorUnits)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than 2 decimal places", ErrInvalidAmount, s)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}

	return Amount(scaled.IntPart()), nil
}

// String возвращает сумму в отображаемых единицах, например "0.95".
func (a Amount) String() string {
	return decimal.New(int64(a), -2).StringFixed(2)
}
