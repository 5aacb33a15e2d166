// Package repository содержит хранилища счетов леджера: PostgreSQL и in-memory.
package repository

import (
	"context"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

// Tx описывает операции, доступные внутри одной транзакции леджера.
// Изменения видны другим транзакциям только после успешной фиксации.
type Tx interface {
	// LockState блокирует и возвращает глобальные счётчики леджера.
	LockState(ctx context.Context) (model.State, error)
	SaveState(ctx context.Context, st model.State) error
	// LockAccount блокирует счёт, создавая нулевую запись при первом обращении.
	LockAccount(ctx context.Context, id model.Identity) (model.Account, error)
	SaveAccount(ctx context.Context, acc model.Account) error
	AppendEvent(ctx context.Context, ev model.Event) error
}

// TxFunc выполняется внутри транзакции; ошибка приводит к откату.
type TxFunc func(tx Tx) error
