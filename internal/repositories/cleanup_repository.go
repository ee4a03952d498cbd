package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CleanupResult reports how many rows an account cleanup removed.
type CleanupResult struct {
	Histories     int64
	Notifications int64
	Messages      int64
}

// CleanupRepository removes every record referencing a deleted account.
type CleanupRepository interface {
	DeleteAccountData(ctx context.Context, accountID int64) (CleanupResult, error)
}

// CleanupRepo is a sqlx-backed repository.
type CleanupRepo struct {
	db *sqlx.DB
}

// NewCleanupRepo constructs CleanupRepo.
func NewCleanupRepo(db *sqlx.DB) *CleanupRepo {
	return &CleanupRepo{db: db}
}

// DeleteAccountData deletes, in one transaction, every message the account
// sent or received, every notification addressed to the account or attached
// to one of those messages, and the edit history of those messages. History
// and notifications go first, while message ownership is still readable under
// the same snapshot. Any failure rolls the whole unit back; a partially
// cleaned account is a consistency violation, not a state to retry into.
func (r *CleanupRepo) DeleteAccountData(ctx context.Context, accountID int64) (CleanupResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("%w: begin tx: %w", ErrCleanupFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var result CleanupResult

	res, err := tx.ExecContext(ctx, `DELETE FROM message_history
        WHERE message_id IN (SELECT id FROM messages WHERE sender_id = $1 OR receiver_id = $1)`, accountID)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("%w: delete history: %w", ErrCleanupFailed, err)
	}
	result.Histories, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM notifications
        WHERE user_id = $1
        OR message_id IN (SELECT id FROM messages WHERE sender_id = $1 OR receiver_id = $1)`, accountID)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("%w: delete notifications: %w", ErrCleanupFailed, err)
	}
	result.Notifications, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM messages
        WHERE sender_id = $1 OR receiver_id = $1`, accountID)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("%w: delete messages: %w", ErrCleanupFailed, err)
	}
	result.Messages, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return CleanupResult{}, fmt.Errorf("%w: commit: %w", ErrCleanupFailed, err)
	}
	return result, nil
}
