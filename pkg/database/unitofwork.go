package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/repositories"
)

// UnitOfWork hands out transactional scopes over the shared connection pool.
// Each scope owns exactly one transaction; repositories constructed for a
// scope are bound to that transaction and must not outlive it.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db.DB}
}

// Scope is one open transaction with repositories bound to it. Exactly one
// of Commit or Rollback must be called.
type Scope struct {
	tx *gorm.DB

	Users      *repositories.UserRepository
	Containers *repositories.ContainerRepository
	Tickets    *repositories.TicketRepository
	ChatUsers  *repositories.ChatUserRepository
}

// Begin opens a fresh transaction. Callers are expected to prefer Do; Begin
// exists for the rare path that needs to interleave non-database work before
// deciding the transaction outcome.
func (u *UnitOfWork) Begin(ctx context.Context) (*Scope, error) {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return newScope(tx), nil
}

func newScope(tx *gorm.DB) *Scope {
	return &Scope{
		tx:         tx,
		Users:      repositories.NewUserRepository(tx),
		Containers: repositories.NewContainerRepository(tx),
		Tickets:    repositories.NewTicketRepository(tx),
		ChatUsers:  repositories.NewChatUserRepository(tx),
	}
}

func (s *Scope) Commit() error {
	return s.tx.Commit().Error
}

func (s *Scope) Rollback() error {
	return s.tx.Rollback().Error
}

// Do runs fn inside a transaction: commit on nil error, rollback otherwise.
// The original error always propagates; rollback failures never mask it.
// Nested Do calls open independent transactions.
func (u *UnitOfWork) Do(ctx context.Context, fn func(s *Scope) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newScope(tx))
	})
}
