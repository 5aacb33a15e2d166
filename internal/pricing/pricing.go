// Package pricing рассчитывает стоимость подписок, дневных пропусков и реферальных комиссий.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

const (
	// Day — базовая единица длительности подписок и пропусков.
	Day = 24 * time.Hour
	// MonthlyDuration — длительность месячной подписки.
	MonthlyDuration = 30 * Day
	// YearlyDuration — длительность годовой подписки.
	YearlyDuration = 365 * Day
	// MaxDailyCount — максимальное число дней для посуточной подписки.
	MaxDailyCount = 20
	// MaxPassCount — максимальное число пропусков в одной покупке.
	MaxPassCount = 3650
)

// Цены в минимальных единицах.
const (
	DailyPrice         model.Amount = 200
	MonthlyPrice       model.Amount = 4000
	YearlyPrice        model.Amount = 40000
	MinDeposit         model.Amount = 100
	CommentCost        model.Amount = 5
	GiftDailyPassPrice model.Amount = 150

	ReferralCommissionPerMille = 75
)

// ErrInvalidDuration возвращается для длительности, которую нельзя оплатить.
var ErrInvalidDuration = errors.New("invalid duration")

// SubscriptionPrice возвращает стоимость подписки на длительность d.
// Длительность должна точно совпадать с месяцем, годом или целым числом дней от 1 до 20.
func SubscriptionPrice(d time.Duration) (model.Amount, error) {
	switch d {
	case MonthlyDuration:
		return MonthlyPrice, nil
	case YearlyDuration:
		return YearlyPrice, nil
	}

	if d <= 0 || d%Day != 0 {
		return 0, fmt.Errorf("%w: %s is not a whole number of days", ErrInvalidDuration, d)
	}

	days := int64(d / Day)
	if days > MaxDailyCount {
		return 0, fmt.Errorf("%w: %d days exceeds %d", ErrInvalidDuration, days, MaxDailyCount)
	}

	return DailyPrice * model.Amount(days), nil
}

// PassDuration возвращает срок, на который продлевают пропуски count штук.
func PassDuration(count int64) (time.Duration, error) {
	if count <= 0 || count > MaxPassCount {
		return 0, fmt.Errorf("%w: pass count %d out of range 1..%d", ErrInvalidDuration, count, MaxPassCount)
	}
	return time.Duration(count) * Day, nil
}

// DailyPassPrice возвращает стоимость покупки count пропусков для себя.
func DailyPassPrice(count int64) (model.Amount, error) {
	if _, err := PassDuration(count); err != nil {
		return 0, err
	}
	return DailyPrice * model.Amount(count), nil
}

// GiftDailyPassCost возвращает стоимость count пропусков в подарок.
func GiftDailyPassCost(count int64) (model.Amount, error) {
	if _, err := PassDuration(count); err != nil {
		return 0, err
	}
	return GiftDailyPassPrice * model.Amount(count), nil
}

// ReferralCommission возвращает комиссию реферера с покупки стоимостью cost.
func ReferralCommission(cost model.Amount) model.Amount {
	return cost * ReferralCommissionPerMille / 1000
}
