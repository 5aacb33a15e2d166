package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/pricing"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

func requireExactPayment(value, cost model.Amount) error {
	if value != cost {
		return fmt.Errorf("%w: got %s, price is %s", ErrInvalidPayment, value, cost)
	}
	return nil
}

// requireRecipient возвращает нормализованный идентификатор получателя.
func requireRecipient(recipient model.Identity) (model.Identity, error) {
	id := validation.NormalizeIdentity(string(recipient))
	if validation.IsNullIdentity(id) || !validation.IsValidIdentity(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}
	return id, nil
}

// PurchaseSubscription продлевает подписку caller на duration за value.
// Первая покупка с реферером платит ему комиссию; если комиссия не ушла, покупка отменяется.
func (l *Ledger) PurchaseSubscription(ctx context.Context, caller model.Identity, duration time.Duration, referrer model.Identity, value model.Amount) error {
	caller, err := requireCaller(caller)
	if err != nil {
		return err
	}
	cost, err := pricing.SubscriptionPrice(duration)
	if err != nil {
		return err
	}
	if err := requireExactPayment(value, cost); err != nil {
		return err
	}
	referrer = validation.NormalizeIdentity(string(referrer))

	return l.run(ctx, "purchase_subscription", caller, true, func(t *txn) error {
		acc, err := t.account(caller)
		if err != nil {
			return err
		}
		if err := t.receive(value); err != nil {
			return err
		}

		acc.SubscriptionExpiry = stack(acc.SubscriptionExpiry, t.now, duration)
		t.emit(model.Event{Kind: model.EventSubscriptionPurchased, Identity: caller, Amount: value, Duration: duration})

		if eligibleReferrer(acc, referrer) {
			commission := pricing.ReferralCommission(cost)
			acc.HasReferrer = true
			if commission > 0 {
				t.send(referrer, commission)
				t.emit(model.Event{Kind: model.EventReferralPaid, Identity: referrer, Counterparty: caller, Amount: commission})
			}
		}

		return t.save(acc)
	})
}

// eligibleReferrer сообщает, положена ли комиссия referrer за покупку владельца acc.
// Комиссия платится один раз за всю жизнь счёта, независимо от реферера.
func eligibleReferrer(acc model.Account, referrer model.Identity) bool {
	return !acc.HasReferrer &&
		!validation.IsNullIdentity(referrer) &&
		validation.IsValidIdentity(referrer) &&
		referrer != acc.Identity
}

// GiftSubscription продлевает подписку recipient на duration за счёт payer. Рефералы не начисляются.
func (l *Ledger) GiftSubscription(ctx context.Context, payer, recipient model.Identity, duration time.Duration, value model.Amount) error {
	payer, err := requireCaller(payer)
	if err != nil {
		return err
	}
	cost, err := pricing.SubscriptionPrice(duration)
	if err != nil {
		return err
	}
	if err := requireExactPayment(value, cost); err != nil {
		return err
	}
	recipient, err = requireRecipient(recipient)
	if err != nil {
		return err
	}

	return l.run(ctx, "gift_subscription", recipient, true, func(t *txn) error {
		acc, err := t.account(recipient)
		if err != nil {
			return err
		}
		if err := t.receive(value); err != nil {
			return err
		}

		acc.SubscriptionExpiry = stack(acc.SubscriptionExpiry, t.now, duration)
		if err := t.save(acc); err != nil {
			return err
		}

		t.emit(model.Event{Kind: model.EventSubscriptionGifted, Identity: recipient, Counterparty: payer, Amount: value, Duration: duration})
		return nil
	})
}

// PurchaseDailyPasses добавляет caller count дневных пропусков по цене DailyPrice за штуку.
func (l *Ledger) PurchaseDailyPasses(ctx context.Context, caller model.Identity, count int64, value model.Amount) error {
	caller, err := requireCaller(caller)
	if err != nil {
		return err
	}
	cost, err := pricing.DailyPassPrice(count)
	if err != nil {
		return err
	}
	if err := requireExactPayment(value, cost); err != nil {
		return err
	}

	return l.addPasses(ctx, "purchase_daily_passes", caller, count, value, model.Event{
		Kind:     model.EventDailyPassesPurchased,
		Identity: caller,
	})
}

// GiftDailyPass добавляет recipient count дневных пропусков по подарочной цене.
func (l *Ledger) GiftDailyPass(ctx context.Context, payer, recipient model.Identity, count int64, value model.Amount) error {
	payer, err := requireCaller(payer)
	if err != nil {
		return err
	}
	cost, err := pricing.GiftDailyPassCost(count)
	if err != nil {
		return err
	}
	if err := requireExactPayment(value, cost); err != nil {
		return err
	}
	recipient, err = requireRecipient(recipient)
	if err != nil {
		return err
	}

	return l.addPasses(ctx, "gift_daily_pass", recipient, count, value, model.Event{
		Kind:         model.EventDailyPassGifted,
		Identity:     recipient,
		Counterparty: payer,
	})
}

func (l *Ledger) addPasses(ctx context.Context, op string, beneficiary model.Identity, count int64, value model.Amount, ev model.Event) error {
	d, err := pricing.PassDuration(count)
	if err != nil {
		return err
	}

	return l.run(ctx, op, beneficiary, true, func(t *txn) error {
		acc, err := t.account(beneficiary)
		if err != nil {
			return err
		}
		if err := t.receive(value); err != nil {
			return err
		}

		acc.DailyPasses += count
		acc.PassesExpiry = stack(acc.PassesExpiry, t.now, d)
		if err := t.save(acc); err != nil {
			return err
		}

		ev.Amount = value
		ev.Count = count
		ev.Duration = d
		t.emit(ev)
		return nil
	})
}
