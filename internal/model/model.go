// Package model содержит доменные сущности леджера комментариев.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity идентифицирует владельца счёта (адрес кошелька или иной принципал).
type Identity string

// Account описывает состояние счёта одного пользователя.
type Account struct {
	Identity           Identity  `json:"identity"`
	DepositBalance     Amount    `json:"deposit_balance"`
	SubscriptionExpiry time.Time `json:"subscription_expiry"`
	DailyPasses        int64     `json:"daily_passes"`
	PassesExpiry       time.Time `json:"passes_expiry"`
	HasReferrer        bool      `json:"has_referrer"`
}

// HasSubscription сообщает, действует ли подписка в момент now.
func (a Account) HasSubscription(now time.Time) bool {
	return now.Before(a.SubscriptionExpiry)
}

// HasUsablePass сообщает, есть ли у счёта действующий дневной пропуск в момент now.
func (a Account) HasUsablePass(now time.Time) bool {
	return a.DailyPasses > 0 && now.Before(a.PassesExpiry)
}

// AccountInfo — представление счёта для чтения, производные поля вычисляются при запросе.
type AccountInfo struct {
	DepositBalance     Amount
	SubscriptionExpiry time.Time
	HasSubscription    bool
	DailyPasses        int64
	PassesExpiry       time.Time
	HasReferrer        bool
}

// State содержит глобальные счётчики леджера.
type State struct {
	TotalDeposits Amount
	Custodied     Amount
	Paused        bool
}

// Excess возвращает сумму, которую оператор может вывести, не затрагивая депозиты.
func (s State) Excess() Amount {
	return s.Custodied - s.TotalDeposits
}

// EventKind описывает тип события леджера.
type EventKind string

const (
	EventDeposit               EventKind = "deposit"
	EventWithdrawal            EventKind = "withdrawal"
	EventSubscriptionPurchased EventKind = "subscription_purchased"
	EventSubscriptionGifted    EventKind = "subscription_gifted"
	EventDailyPassesPurchased  EventKind = "daily_passes_purchased"
	EventDailyPassGifted       EventKind = "daily_pass_gifted"
	EventReferralPaid          EventKind = "referral_paid"
	EventCommentPaid           EventKind = "comment_paid"
	EventFundsWithdrawn        EventKind = "funds_withdrawn"
	EventPaused                EventKind = "paused"
	EventUnpaused              EventKind = "unpaused"
)

// Event фиксирует одно изменение состояния леджера.
type Event struct {
	ID           uuid.UUID     `json:"id"`
	Kind         EventKind     `json:"kind"`
	Identity     Identity      `json:"identity"`
	Counterparty Identity      `json:"counterparty,omitempty"`
	Amount       Amount        `json:"amount"`
	Duration     time.Duration `json:"duration,omitempty"`
	Count        int64         `json:"count,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// CommentCoverage описывает, чем был оплачен комментарий.
type CommentCoverage string

const (
	CoveredBySubscription CommentCoverage = "subscription"
	CoveredByDailyPass    CommentCoverage = "daily_pass"
	CoveredByDeposit      CommentCoverage = "deposit"
)
