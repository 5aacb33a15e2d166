package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/pricing"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

// DefaultEventsLimit ограничивает историю событий, если лимит не задан.
const DefaultEventsLimit = 100

// ProcessCommentPayment оплачивает комментарий id. Порядок покрытия: подписка,
// затем дневной пропуск (списывается один), затем депозит (списывается CommentCost).
// Вызывать может только оператор.
func (l *Ledger) ProcessCommentPayment(ctx context.Context, caller, id model.Identity) (model.CommentCoverage, error) {
	if err := l.requireOperator(caller); err != nil {
		return "", err
	}
	id = validation.NormalizeIdentity(string(id))
	if !validation.IsValidIdentity(id) {
		return "", fmt.Errorf("%w: commenter %q", ErrInvalidRecipient, id)
	}

	var coverage model.CommentCoverage
	err := l.run(ctx, "process_comment_payment", id, true, func(t *txn) error {
		acc, err := t.account(id)
		if err != nil {
			return err
		}

		ev := model.Event{Kind: model.EventCommentPaid, Identity: id}
		switch {
		case acc.HasSubscription(t.now):
			coverage = model.CoveredBySubscription
			t.emit(ev)
			return nil
		case acc.HasUsablePass(t.now):
			coverage = model.CoveredByDailyPass
			acc.DailyPasses--
			ev.Count = 1
		case acc.DepositBalance >= pricing.CommentCost:
			coverage = model.CoveredByDeposit
			acc.DepositBalance -= pricing.CommentCost
			t.state.TotalDeposits -= pricing.CommentCost
			ev.Amount = pricing.CommentCost
		default:
			return fmt.Errorf("%w: %s has %s, comment costs %s", ErrInsufficientBalance, id, acc.DepositBalance, pricing.CommentCost)
		}

		if err := t.save(acc); err != nil {
			return err
		}
		t.emit(ev)
		return nil
	})
	if err != nil {
		return "", err
	}
	return coverage, nil
}

// CanComment сообщает, может ли id оставить комментарий: по подписке, пропуску или за счёт депозита.
func (l *Ledger) CanComment(ctx context.Context, id model.Identity) (bool, error) {
	acc, err := l.readAccount(ctx, id)
	if err != nil {
		return false, err
	}

	now := l.clock.Now()
	return acc.HasSubscription(now) || acc.HasUsablePass(now) || acc.DepositBalance >= pricing.CommentCost, nil
}

// AccountInfo возвращает состояние счёта id; производные поля вычисляются на момент запроса.
func (l *Ledger) AccountInfo(ctx context.Context, id model.Identity) (model.AccountInfo, error) {
	acc, err := l.readAccount(ctx, id)
	if err != nil {
		return model.AccountInfo{}, err
	}

	return model.AccountInfo{
		DepositBalance:     acc.DepositBalance,
		SubscriptionExpiry: acc.SubscriptionExpiry,
		HasSubscription:    acc.HasSubscription(l.clock.Now()),
		DailyPasses:        acc.DailyPasses,
		PassesExpiry:       acc.PassesExpiry,
		HasReferrer:        acc.HasReferrer,
	}, nil
}

// Events возвращает последние события id, новые первыми.
func (l *Ledger) Events(ctx context.Context, id model.Identity, limit int) ([]model.Event, error) {
	if limit <= 0 || limit > DefaultEventsLimit {
		limit = DefaultEventsLimit
	}
	return l.repo.GetEventsByIdentity(ctx, validation.NormalizeIdentity(string(id)), limit)
}

func (l *Ledger) readAccount(ctx context.Context, id model.Identity) (model.Account, error) {
	id = validation.NormalizeIdentity(string(id))
	if l.cache != nil {
		acc, found, err := l.cache.GetAccount(ctx, id)
		if err != nil {
			l.logger.Warn("read cached account", zap.String("identity", string(id)), zap.Error(err))
		} else if found {
			return acc, nil
		}
	}

	acc, err := l.repo.GetAccount(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	if l.cache != nil {
		if err := l.cache.SetAccount(ctx, acc); err != nil {
			l.logger.Warn("cache account", zap.String("identity", string(id)), zap.Error(err))
		}
	}
	return acc, nil
}
