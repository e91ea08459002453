package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithTransaction executes fn within a transaction, committing on success or
// rolling back on error.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// WithTransactionResult executes fn within a transaction, returning the
// result on success.
func WithTransactionResult[T any](ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	return result, err
}

// AcquireDocketLease takes an exclusive lease on the docket row for the rest
// of the transaction tx. PostgreSQL uses SELECT ... FOR UPDATE. SQLite has no
// row locks, so a no-op write escalates the transaction to the database-wide
// write lock instead.
func AcquireDocketLease(tx *gorm.DB, docketID uint) error {
	if IsPostgres(tx) {
		var d Docket
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&d, docketID).Error
		if err != nil {
			return fmt.Errorf("lock docket %d: %w", docketID, err)
		}
		return nil
	}

	res := tx.Exec("UPDATE dockets SET id = id WHERE id = ?", docketID)
	if res.Error != nil {
		return fmt.Errorf("lock docket %d: %w", docketID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lock docket %d: %w", docketID, gorm.ErrRecordNotFound)
	}
	return nil
}

// PostgreSQL error codes the merger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// IsTransient reports whether err is a lock wait, deadlock or serialization
// failure that a retry can clear.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	// Errors raised outside the drivers (wrapped or re-created) only keep
	// their message.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"deadlock detected",
		"could not serialize access",
		"could not obtain lock",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
