package ledger

import (
	"errors"

	"github.com/mmeshcher/commentpass-ledger/internal/pricing"
)

var (
	// ErrInvalidDuration возвращается, если длительность подписки или число пропусков нельзя оплатить.
	ErrInvalidDuration = pricing.ErrInvalidDuration
	// ErrInvalidPayment возвращается, если переданная сумма не равна цене или меньше минимального депозита.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrInvalidRecipient возвращается при подарке пустому или нулевому получателю.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInsufficientBalance возвращается, если средств недостаточно для операции.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnauthorized возвращается, если операцию оператора вызывает другой пользователь.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransferFailed возвращается, если система переводов отклонила исходящий перевод.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrPaused возвращается для операций с движением средств, пока леджер на паузе.
	ErrPaused = errors.New("ledger is paused")
)

var resultLabels = []struct {
	err   error
	label string
}{
	{ErrInvalidDuration, "invalid_duration"},
	{ErrInvalidPayment, "invalid_payment"},
	{ErrInvalidRecipient, "invalid_recipient"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrUnauthorized, "unauthorized"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrPaused, "paused"},
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, rl := range resultLabels {
		if errors.Is(err, rl.err) {
			return rl.label
		}
	}
	return "error"
}

// isBusinessError сообщает, относится ли ошибка к ожидаемым отказам, а не к сбоям инфраструктуры.
func isBusinessError(err error) bool {
	label := resultLabel(err)
	return label != "error" && label != "transfer_failed"
}
