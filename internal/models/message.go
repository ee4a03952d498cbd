package models

import "time"

// Message is a single message between two accounts. ParentID links a reply to
// the message it answers; replies always stay inside the same conversation.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	SenderID   int64     `db:"sender_id" json:"sender_id"`
	ReceiverID int64     `db:"receiver_id" json:"receiver_id"`
	Body       string    `db:"body" json:"body"`
	ParentID   *int64    `db:"parent_id" json:"parent_id,omitempty"`
	Edited     bool      `db:"edited" json:"edited"`
	EditedBy   *int64    `db:"edited_by" json:"edited_by,omitempty"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Thread is a message together with its materialized replies, each reply
// expanded in turn. Replies at every level are ordered by creation time.
type Thread struct {
	Message Message   `json:"message"`
	Replies []*Thread `json:"replies"`
}
