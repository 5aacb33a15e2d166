package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

// MemoryRepository хранит счета в памяти процесса. Транзакции выполняются по одной
// и работают с копиями записей, которые переносятся в общее состояние только при фиксации.
type MemoryRepository struct {
	writer sync.Mutex

	mu       sync.RWMutex
	accounts map[model.Identity]model.Account
	state    model.State
	events   []model.Event
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[model.Identity]model.Account),
	}
}

// Close ничего не делает и существует для совместимости с PostgresRepository.
func (m *MemoryRepository) Close() error {
	return nil
}

// InTx выполняет fn и фиксирует изменения, только если fn вернула nil.
func (m *MemoryRepository) InTx(ctx context.Context, fn TxFunc) error {
	m.writer.Lock()
	defer m.writer.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		repo:     m,
		accounts: make(map[model.Identity]model.Account),
	}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, acc := range tx.accounts {
		m.accounts[id] = acc
	}
	if tx.stateLoaded {
		m.state = tx.state
	}
	m.events = append(m.events, tx.events...)

	return nil
}

// GetAccount возвращает счёт пользователя; для неизвестного идентификатора — нулевой счёт.
func (m *MemoryRepository) GetAccount(_ context.Context, id model.Identity) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return model.Account{Identity: id}, nil
}

// GetState возвращает глобальные счётчики леджера.
func (m *MemoryRepository) GetState(_ context.Context) (model.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state, nil
}

// GetEventsByIdentity возвращает последние события пользователя, новые первыми.
func (m *MemoryRepository) GetEventsByIdentity(_ context.Context, id model.Identity, limit int) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Identity == id {
			res = append(res, m.events[i])
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type memTx struct {
	repo *MemoryRepository

	accounts    map[model.Identity]model.Account
	state       model.State
	stateLoaded bool
	events      []model.Event
}

func (t *memTx) LockState(_ context.Context) (model.State, error) {
	if !t.stateLoaded {
		t.repo.mu.RLock()
		t.state = t.repo.state
		t.repo.mu.RUnlock()
		t.stateLoaded = true
	}
	return t.state, nil
}

func (t *memTx) SaveState(_ context.Context, st model.State) error {
	t.state = st
	t.stateLoaded = true
	return nil
}

func (t *memTx) LockAccount(ctx context.Context, id model.Identity) (model.Account, error) {
	if acc, ok := t.accounts[id]; ok {
		return acc, nil
	}

	acc, err := t.repo.GetAccount(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	t.accounts[id] = acc
	return acc, nil
}

func (t *memTx) SaveAccount(_ context.Context, acc model.Account) error {
	t.accounts[acc.Identity] = acc
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, ev model.Event) error {
	t.events = append(t.events, ev)
	return nil
}
