package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
)

func setupUnitOfWork(t *testing.T) *UnitOfWork {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db := &DB{gormDB}
	require.NoError(t, db.AutoMigrate())

	return NewUnitOfWork(db)
}

func newTestUser(t *testing.T, username string) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
	}
	require.NoError(t, user.SetPassword("test-password-1"))
	return user
}

func TestUnitOfWorkCommit(t *testing.T) {
	uow := setupUnitOfWork(t)
	ctx := context.Background()

	user := newTestUser(t, "alice")
	err := uow.Do(ctx, func(scope *Scope) error {
		if err := scope.Users.Create(ctx, user); err != nil {
			return err
		}
		return scope.Tickets.Create(ctx, &models.Ticket{
			Name:     "web-1",
			CPUCores: 2,
			RAMBytes: 1 << 31,
			ROMBytes: 10 << 30,
			OwnerID:  user.ID,
		})
	})
	require.NoError(t, err)

	// Both writes are visible from a fresh scope.
	err = uow.Do(ctx, func(scope *Scope) error {
		got, err := scope.Users.GetByUsername(ctx, "alice")
		if err != nil {
			return err
		}
		assert.Equal(t, user.ID, got.ID)

		tickets, err := scope.Tickets.List(ctx, 0, 0)
		if err != nil {
			return err
		}
		assert.Len(t, tickets, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestUnitOfWorkRollback(t *testing.T) {
	uow := setupUnitOfWork(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := uow.Do(ctx, func(scope *Scope) error {
		if err := scope.Users.Create(ctx, newTestUser(t, "alice")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The user write rolled back with the scope.
	err = uow.Do(ctx, func(scope *Scope) error {
		_, err := scope.Users.GetByUsername(ctx, "alice")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestUnitOfWorkExplicitScope(t *testing.T) {
	uow := setupUnitOfWork(t)
	ctx := context.Background()

	scope, err := uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Users.Create(ctx, newTestUser(t, "alice")))
	require.NoError(t, scope.Rollback())

	err = uow.Do(ctx, func(s *Scope) error {
		_, err := s.Users.GetByUsername(ctx, "alice")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)

	scope, err = uow.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Users.Create(ctx, newTestUser(t, "bob")))
	require.NoError(t, scope.Commit())

	err = uow.Do(ctx, func(s *Scope) error {
		_, err := s.Users.GetByUsername(ctx, "bob")
		return err
	})
	require.NoError(t, err)
}
