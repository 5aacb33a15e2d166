package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к счетам леджера в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет только читающие запросы: транзакции леджера содержат
// внешний перевод и повторять их нельзя.
func withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InTx выполняет fn в транзакции. Строка состояния и строки счетов блокируются
// через SELECT ... FOR UPDATE, поэтому конкурирующие операции выполняются последовательно.
func (r *PostgresRepository) InTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

const selectAccount = `SELECT identity, deposit_balance, subscription_expiry, daily_passes, passes_expiry, has_referrer
	 FROM accounts
	 WHERE identity = $1`

// GetAccount возвращает счёт пользователя; для неизвестного идентификатора — нулевой счёт.
func (r *PostgresRepository) GetAccount(ctx context.Context, id model.Identity) (model.Account, error) {
	var acc model.Account
	err := withRetry(ctx, func() error {
		var err error
		acc, err = scanAccount(r.pool.QueryRow(ctx, selectAccount, string(id)))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{Identity: id}, nil
		}
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// GetState возвращает глобальные счётчики леджера.
func (r *PostgresRepository) GetState(ctx context.Context) (model.State, error) {
	var st model.State
	err := withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT total_deposits, custodied, paused FROM ledger_state WHERE id = 1`,
		).Scan(&st.TotalDeposits, &st.Custodied, &st.Paused)
	})
	if err != nil {
		return model.State{}, fmt.Errorf("get state: %w", err)
	}
	return st, nil
}

// GetEventsByIdentity возвращает последние события пользователя, новые первыми.
func (r *PostgresRepository) GetEventsByIdentity(ctx context.Context, id model.Identity, limit int) ([]model.Event, error) {
	var events []model.Event
	err := withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, kind, identity, counterparty, amount, duration_seconds, count, created_at
			 FROM ledger_events
			 WHERE identity = $1
			 ORDER BY created_at DESC
			 LIMIT $2`,
			string(id), limit,
		)
		if err != nil {
			return fmt.Errorf("select events: %w", err)
		}
		defer rows.Close()

		events = events[:0]
		for rows.Next() {
			var (
				ev              model.Event
				kind            string
				identity        string
				counterparty    string
				durationSeconds int64
			)
			if err := rows.Scan(&ev.ID, &kind, &identity, &counterparty, &ev.Amount, &durationSeconds, &ev.Count, &ev.CreatedAt); err != nil {
				return fmt.Errorf("scan event: %w", err)
			}
			ev.Kind = model.EventKind(kind)
			ev.Identity = model.Identity(identity)
			ev.Counterparty = model.Identity(counterparty)
			ev.Duration = time.Duration(durationSeconds) * time.Second
			events = append(events, ev)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockState(ctx context.Context) (model.State, error) {
	var st model.State
	err := t.tx.QueryRow(ctx,
		`SELECT total_deposits, custodied, paused FROM ledger_state WHERE id = 1 FOR UPDATE`,
	).Scan(&st.TotalDeposits, &st.Custodied, &st.Paused)
	if err != nil {
		return model.State{}, fmt.Errorf("lock state: %w", err)
	}
	return st, nil
}

func (t *pgTx) SaveState(ctx context.Context, st model.State) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE ledger_state SET total_deposits = $1, custodied = $2, paused = $3 WHERE id = 1`,
		int64(st.TotalDeposits), int64(st.Custodied), st.Paused,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (t *pgTx) LockAccount(ctx context.Context, id model.Identity) (model.Account, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO accounts (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING`,
		string(id),
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}

	acc, err := scanAccount(t.tx.QueryRow(ctx, selectAccount+` FOR UPDATE`, string(id)))
	if err != nil {
		return model.Account{}, fmt.Errorf("lock account: %w", err)
	}
	return acc, nil
}

func (t *pgTx) SaveAccount(ctx context.Context, acc model.Account) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE accounts
		 SET deposit_balance = $2, subscription_expiry = $3, daily_passes = $4,
		     passes_expiry = $5, has_referrer = $6, updated_at = now()
		 WHERE identity = $1`,
		string(acc.Identity), int64(acc.DepositBalance), nullTime(acc.SubscriptionExpiry),
		acc.DailyPasses, nullTime(acc.PassesExpiry), acc.HasReferrer,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, ev model.Event) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO ledger_events (id, kind, identity, counterparty, amount, duration_seconds, count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, string(ev.Kind), string(ev.Identity), string(ev.Counterparty),
		int64(ev.Amount), int64(ev.Duration/time.Second), ev.Count, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		identity           string
		balance            int64
		subscriptionExpiry *time.Time
		passes             int64
		passesExpiry       *time.Time
		hasReferrer        bool
	)
	if err := row.Scan(&identity, &balance, &subscriptionExpiry, &passes, &passesExpiry, &hasReferrer); err != nil {
		return model.Account{}, err
	}

	acc := model.Account{
		Identity:       model.Identity(identity),
		DepositBalance: model.Amount(balance),
		DailyPasses:    passes,
		HasReferrer:    hasReferrer,
	}
	if subscriptionExpiry != nil {
		acc.SubscriptionExpiry = subscriptionExpiry.UTC()
	}
	if passesExpiry != nil {
		acc.PassesExpiry = passesExpiry.UTC()
	}
	return acc, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
