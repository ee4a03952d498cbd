package models

import "time"

// MessageHistory is an append-only snapshot of a message body taken right
// before an edit replaced it. One row exists per actual content change.
type MessageHistory struct {
	ID         int64     `db:"id" json:"id"`
	MessageID  int64     `db:"message_id" json:"message_id"`
	OldContent string    `db:"old_content" json:"old_content"`
	EditedBy   *int64    `db:"edited_by" json:"edited_by,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
