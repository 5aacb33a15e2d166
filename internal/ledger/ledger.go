// Package ledger реализует леджер счетов: депозиты, подписки, дневные пропуски,
// реферальные комиссии, оплату комментариев и защиту средств пользователей от вывода оператором.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/commentpass-ledger/internal/clock"
	"github.com/mmeshcher/commentpass-ledger/internal/metrics"
	"github.com/mmeshcher/commentpass-ledger/internal/model"
	"github.com/mmeshcher/commentpass-ledger/internal/repository"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

// Repository описывает контракт хранилища счетов, используемый леджером.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn repository.TxFunc) error
	GetAccount(ctx context.Context, id model.Identity) (model.Account, error)
	GetState(ctx context.Context) (model.State, error)
	GetEventsByIdentity(ctx context.Context, id model.Identity, limit int) ([]model.Event, error)
}

// Rail выполняет необратимые исходящие переводы.
type Rail interface {
	Transfer(ctx context.Context, to model.Identity, amount model.Amount) error
}

// Cache хранит копии счетов для быстрых чтений.
type Cache interface {
	GetAccount(ctx context.Context, id model.Identity) (model.Account, bool, error)
	SetAccount(ctx context.Context, acc model.Account) error
	Invalidate(ctx context.Context, id model.Identity) error
}

// Publisher рассылает зафиксированные события.
type Publisher interface {
	Publish(ctx context.Context, evs []model.Event) error
}

// Ledger владеет счетами, глобальными счётчиками и флагом паузы.
type Ledger struct {
	repo     Repository
	rail     Rail
	operator model.Identity

	clock     clock.Clock
	logger    *zap.Logger
	cache     Cache
	publisher Publisher
	metrics   *metrics.Metrics

	locks *keyedMutex
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithClock задаёт источник текущего времени.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLogger задаёт журнал.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithCache включает кеш счетов.
func WithCache(c Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

// WithPublisher включает рассылку событий.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithMetrics включает сбор метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New создаёт леджер. Оператор задаётся один раз и не меняется.
func New(repo Repository, rail Rail, operator model.Identity, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		rail:     rail,
		operator: validation.NormalizeIdentity(string(operator)),
		clock:    clock.Real(),
		logger:   zap.NewNop(),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Operator возвращает идентификатор оператора.
func (l *Ledger) Operator() model.Identity {
	return l.operator
}

// Close закрывает хранилище.
func (l *Ledger) Close() error {
	if l.repo != nil {
		return l.repo.Close()
	}
	return nil
}

type payout struct {
	to     model.Identity
	amount model.Amount
}

// txn — рабочее состояние одной операции внутри транзакции хранилища.
type txn struct {
	ctx     context.Context
	tx      repository.Tx
	now     time.Time
	state   model.State
	events  []model.Event
	touched []model.Identity
	payouts []payout
}

func (t *txn) account(id model.Identity) (model.Account, error) {
	acc, err := t.tx.LockAccount(t.ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	acc.Identity = id
	return acc, nil
}

func (t *txn) save(acc model.Account) error {
	t.touched = append(t.touched, acc.Identity)
	return t.tx.SaveAccount(t.ctx, acc)
}

func (t *txn) emit(ev model.Event) {
	ev.ID = uuid.New()
	ev.CreatedAt = t.now
	t.events = append(t.events, ev)
}

// receive учитывает входящую сумму, пришедшую вместе с вызовом.
func (t *txn) receive(value model.Amount) error {
	if value > math.MaxInt64-t.state.Custodied {
		return fmt.Errorf("%w: custodied value overflow", ErrInvalidPayment)
	}
	t.state.Custodied += value
	return nil
}

// send планирует исходящий перевод; он выполняется последним шагом перед фиксацией.
func (t *txn) send(to model.Identity, amount model.Amount) {
	t.state.Custodied -= amount
	t.payouts = append(t.payouts, payout{to: to, amount: amount})
}

// run выполняет fn атомарно: под блокировкой идентификатора id и в одной транзакции хранилища.
// Исходящие переводы выполняются после всех изменений; отказ перевода откатывает транзакцию целиком.
func (l *Ledger) run(ctx context.Context, op string, id model.Identity, valueMoving bool, fn func(t *txn) error) (err error) {
	defer func() {
		l.metrics.ObserveOperation(op, resultLabel(err))
	}()

	if id != "" {
		unlock := l.locks.lock(id)
		defer unlock()
	}

	var transferred *txn
	err = l.repo.InTx(ctx, func(tx repository.Tx) error {
		st, err := tx.LockState(ctx)
		if err != nil {
			return err
		}
		if valueMoving && st.Paused {
			return ErrPaused
		}

		t := &txn{ctx: ctx, tx: tx, now: l.clock.Now(), state: st}
		if err := fn(t); err != nil {
			return err
		}

		if err := tx.SaveState(ctx, t.state); err != nil {
			return err
		}
		for _, ev := range t.events {
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}

		for _, p := range t.payouts {
			if err := l.rail.Transfer(ctx, p.to, p.amount); err != nil {
				return fmt.Errorf("%w: %s to %s: %w", ErrTransferFailed, p.amount, p.to, err)
			}
		}

		transferred = t
		return nil
	})
	if err != nil {
		if transferred != nil && len(transferred.payouts) > 0 {
			l.logger.Error("ledger commit failed after outbound transfer",
				zap.String("operation", op), zap.String("identity", string(id)), zap.Error(err))
		} else if !isBusinessError(err) {
			l.logger.Warn("ledger operation failed",
				zap.String("operation", op), zap.String("identity", string(id)), zap.Error(err))
		}
		return err
	}

	l.afterCommit(ctx, transferred)
	return nil
}

func (l *Ledger) afterCommit(ctx context.Context, t *txn) {
	l.metrics.SetState(t.state)

	if l.cache != nil {
		for _, id := range t.touched {
			if err := l.cache.Invalidate(ctx, id); err != nil {
				l.logger.Warn("invalidate cached account", zap.String("identity", string(id)), zap.Error(err))
			}
		}
	}

	if l.publisher != nil && len(t.events) > 0 {
		if err := l.publisher.Publish(ctx, t.events); err != nil {
			l.logger.Error("publish ledger events", zap.Int("count", len(t.events)), zap.Error(err))
		}
	}
}

func (l *Ledger) requireOperator(caller model.Identity) error {
	id, err := requireCaller(caller)
	if err != nil {
		return err
	}
	if id != l.operator {
		return fmt.Errorf("%w: %s is not the operator", ErrUnauthorized, id)
	}
	return nil
}

// requireCaller возвращает нормализованный идентификатор вызывающего.
func requireCaller(caller model.Identity) (model.Identity, error) {
	id := validation.NormalizeIdentity(string(caller))
	if !validation.IsValidIdentity(id) {
		return "", fmt.Errorf("%w: invalid caller identity %q", ErrUnauthorized, caller)
	}
	return id, nil
}

// stack продлевает срок от текущего значения или от now, если срок уже истёк.
func stack(expiry, now time.Time, d time.Duration) time.Time {
	if expiry.Before(now) {
		expiry = now
	}
	return expiry.Add(d)
}
