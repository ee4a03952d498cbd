package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// editRetryAttempts bounds the internal retry loop for concurrent edits of
// the same message before the conflict is surfaced to the caller.
const editRetryAttempts = 3

var messageColumns = []string{
	"id", "sender_id", "receiver_id", "body", "parent_id",
	"edited", "edited_by", "read", "created_at",
}

// MessageRepository defines interactions with the message store.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, receiverID int64, body string, parentID *int64) (models.Message, error)
	EditMessage(ctx context.Context, messageID, editorID int64, newBody string) (models.Message, bool, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkRead(ctx context.Context, messageID, userID int64) error
	ListUnread(ctx context.Context, userID, afterID int64, limit int) ([]models.Message, error)
	ListReplies(ctx context.Context, parentIDs []int64) ([]models.Message, error)
	ListTopLevelBetween(ctx context.Context, userA, userB int64) ([]models.Message, error)
	ListHistory(ctx context.Context, messageID int64) ([]models.MessageHistory, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message and its receiver notification in one
// transaction. A reply must point at an existing message of the same
// conversation; a message can therefore never become its own ancestor.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, receiverID int64, body string, parentID *int64) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyBody
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if parentID != nil {
		query, args, err := sq.Select(messageColumns...).
			From("messages").
			Where(sq.Eq{"id": *parentID}).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return models.Message{}, fmt.Errorf("build parent query: %w", err)
		}

		var parent models.Message
		if err := tx.GetContext(ctx, &parent, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Message{}, ErrParentNotFound
			}
			return models.Message{}, fmt.Errorf("load parent: %w", err)
		}
		if !sameConversation(parent, senderID, receiverID) {
			return models.Message{}, ErrParentMismatch
		}
	}

	query, args, err := sq.Insert("messages").
		Columns("sender_id", "receiver_id", "body", "parent_id").
		Values(senderID, receiverID, body, parentID).
		Suffix("RETURNING " + strings.Join(messageColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, fmt.Errorf("build insert: %w", err)
	}

	var msg models.Message
	if err := tx.GetContext(ctx, &msg, query, args...); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	// Notification fan-out shares the transaction: it commits with the
	// message insert or not at all, so retries of a failed create can
	// never leave a duplicate behind.
	query, args, err = sq.Insert("notifications").
		Columns("user_id", "message_id").
		Values(receiverID, msg.ID).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, fmt.Errorf("build notification insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Message{}, fmt.Errorf("insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// EditMessage updates a message body, recording the previous content in
// message_history when it actually changed. The returned bool reports whether
// the body changed. The row is locked for the read-compare-write sequence;
// serialization failures are retried a bounded number of times before
// surfacing ErrEditConflict.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID, editorID int64, newBody string) (models.Message, bool, error) {
	if strings.TrimSpace(newBody) == "" {
		return models.Message{}, false, ErrEmptyBody
	}

	var lastErr error
	for attempt := 0; attempt < editRetryAttempts; attempt++ {
		msg, changed, err := r.editOnce(ctx, messageID, editorID, newBody)
		if err == nil {
			return msg, changed, nil
		}
		if !retryableEditError(err) {
			return models.Message{}, false, err
		}
		lastErr = err
	}
	return models.Message{}, false, fmt.Errorf("%w after %d attempts: %v", ErrEditConflict, editRetryAttempts, lastErr)
}

func (r *MessageRepo) editOnce(ctx context.Context, messageID, editorID int64, newBody string) (models.Message, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": messageID}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, false, fmt.Errorf("build lock query: %w", err)
	}

	var msg models.Message
	if err := tx.GetContext(ctx, &msg, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, false, ErrMessageNotFound
		}
		return models.Message{}, false, fmt.Errorf("lock message: %w", err)
	}
	if msg.SenderID != editorID {
		return models.Message{}, false, ErrNotSender
	}

	// Unchanged body: no history row, edited flags left as-is.
	if msg.Body == newBody {
		if err := tx.Commit(); err != nil {
			return models.Message{}, false, fmt.Errorf("commit: %w", err)
		}
		return msg, false, nil
	}

	query, args, err = sq.Insert("message_history").
		Columns("message_id", "old_content", "edited_by").
		Values(msg.ID, msg.Body, editorID).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, false, fmt.Errorf("build history insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Message{}, false, fmt.Errorf("insert history: %w", err)
	}

	query, args, err = sq.Update("messages").
		Set("body", newBody).
		Set("edited", true).
		Set("edited_by", editorID).
		Where(sq.Eq{"id": msg.ID}).
		Suffix("RETURNING " + strings.Join(messageColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, false, fmt.Errorf("build update: %w", err)
	}
	if err := tx.GetContext(ctx, &msg, query, args...); err != nil {
		return models.Message{}, false, fmt.Errorf("update message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, false, fmt.Errorf("commit: %w", err)
	}
	return msg, true, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": messageID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.Message{}, fmt.Errorf("build query: %w", err)
	}

	var msg models.Message
	if err := r.db.GetContext(ctx, &msg, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}

// MarkRead flips the read flag; only the receiver may do so.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, userID int64) error {
	query, args, err := sq.Update("messages").
		Set("read", true).
		Where(sq.Eq{"id": messageID, "receiver_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := r.GetMessage(ctx, messageID); err != nil {
			return err
		}
		return ErrNotReceiver
	}
	return nil
}

// ListUnread returns unread messages for the user, oldest first. Ordering and
// paging both use the id (ids are assigned in insertion order), so restarting
// from afterID can never skip or repeat a row across page boundaries.
func (r *MessageRepo) ListUnread(ctx context.Context, userID, afterID int64, limit int) ([]models.Message, error) {
	builder := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"receiver_id": userID, "read": false}).
		OrderBy("id ASC")

	if afterID > 0 {
		builder = builder.Where(sq.Gt{"id": afterID})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	} else {
		builder = builder.Limit(50)
	}

	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListReplies returns the direct replies of every given parent, ordered by
// creation time so sibling order is stable at each thread level.
func (r *MessageRepo) ListReplies(ctx context.Context, parentIDs []int64) ([]models.Message, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"parent_id": parentIDs}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListTopLevelBetween returns the top-level messages exchanged between two
// accounts, oldest first.
func (r *MessageRepo) ListTopLevelBetween(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Or{
			sq.Eq{"sender_id": userA, "receiver_id": userB},
			sq.Eq{"sender_id": userB, "receiver_id": userA},
		}).
		Where(sq.Eq{"parent_id": nil}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListHistory returns the edit history of a message, newest snapshot first.
func (r *MessageRepo) ListHistory(ctx context.Context, messageID int64) ([]models.MessageHistory, error) {
	query, args, err := sq.Select("id", "message_id", "old_content", "edited_by", "recorded_at").
		From("message_history").
		Where(sq.Eq{"message_id": messageID}).
		OrderBy("recorded_at DESC", "id DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var history []models.MessageHistory
	if err := r.db.SelectContext(ctx, &history, query, args...); err != nil {
		return nil, err
	}
	return history, nil
}

func sameConversation(parent models.Message, senderID, receiverID int64) bool {
	return (parent.SenderID == senderID && parent.ReceiverID == receiverID) ||
		(parent.SenderID == receiverID && parent.ReceiverID == senderID)
}

func retryableEditError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// serialization_failure and deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
