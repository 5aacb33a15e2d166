package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/pricing"
)

// Deposit зачисляет value на депозит caller.
func (l *Ledger) Deposit(ctx context.Context, caller model.Identity, value model.Amount) error {
	caller, err := requireCaller(caller)
	if err != nil {
		return err
	}
	if value < pricing.MinDeposit {
		return fmt.Errorf("%w: deposit %s is below minimum %s", ErrInvalidPayment, value, pricing.MinDeposit)
	}

	return l.run(ctx, "deposit", caller, true, func(t *txn) error {
		acc, err := t.account(caller)
		if err != nil {
			return err
		}
		if err := t.receive(value); err != nil {
			return err
		}
		if value > math.MaxInt64-t.state.TotalDeposits {
			return fmt.Errorf("%w: total deposits overflow", ErrInvalidPayment)
		}

		acc.DepositBalance += value
		t.state.TotalDeposits += value
		if err := t.save(acc); err != nil {
			return err
		}

		t.emit(model.Event{Kind: model.EventDeposit, Identity: caller, Amount: value})
		return nil
	})
}

// Withdraw списывает amount с депозита caller и переводит его владельцу.
// Если перевод не прошёл, баланс не меняется.
func (l *Ledger) Withdraw(ctx context.Context, caller model.Identity, amount model.Amount) error {
	caller, err := requireCaller(caller)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidPayment)
	}

	return l.run(ctx, "withdraw", caller, true, func(t *txn) error {
		acc, err := t.account(caller)
		if err != nil {
			return err
		}
		if amount > acc.DepositBalance {
			return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, amount, acc.DepositBalance)
		}

		acc.DepositBalance -= amount
		t.state.TotalDeposits -= amount
		if err := t.save(acc); err != nil {
			return err
		}

		t.send(caller, amount)
		t.emit(model.Event{Kind: model.EventWithdrawal, Identity: caller, Amount: amount})
		return nil
	})
}

// WithdrawFunds переводит оператору всё, что леджер держит сверх суммы депозитов пользователей.
func (l *Ledger) WithdrawFunds(ctx context.Context, caller model.Identity) (model.Amount, error) {
	if err := l.requireOperator(caller); err != nil {
		return 0, err
	}

	var withdrawn model.Amount
	err := l.run(ctx, "withdraw_funds", "", false, func(t *txn) error {
		excess := t.state.Excess()
		if excess <= 0 {
			return fmt.Errorf("%w: nothing to withdraw", ErrInsufficientBalance)
		}

		t.send(l.operator, excess)
		t.emit(model.Event{Kind: model.EventFundsWithdrawn, Identity: l.operator, Amount: excess})
		withdrawn = excess
		return nil
	})
	if err != nil {
		return 0, err
	}
	return withdrawn, nil
}

// Pause останавливает все операции с движением средств. Повторный вызов ничего не меняет.
func (l *Ledger) Pause(ctx context.Context, caller model.Identity) error {
	return l.setPaused(ctx, caller, true)
}

// Unpause возобновляет операции с движением средств.
func (l *Ledger) Unpause(ctx context.Context, caller model.Identity) error {
	return l.setPaused(ctx, caller, false)
}

func (l *Ledger) setPaused(ctx context.Context, caller model.Identity, paused bool) error {
	if err := l.requireOperator(caller); err != nil {
		return err
	}

	op, kind := "unpause", model.EventUnpaused
	if paused {
		op, kind = "pause", model.EventPaused
	}

	return l.run(ctx, op, "", false, func(t *txn) error {
		if t.state.Paused == paused {
			return nil
		}
		t.state.Paused = paused
		t.emit(model.Event{Kind: kind, Identity: l.operator})
		return nil
	})
}

// Reserve возвращает глобальные счётчики леджера; доступно только оператору.
func (l *Ledger) Reserve(ctx context.Context, caller model.Identity) (model.State, error) {
	if err := l.requireOperator(caller); err != nil {
		return model.State{}, err
	}
	return l.repo.GetState(ctx)
}
