package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            sender_id BIGINT NOT NULL,
            receiver_id BIGINT NOT NULL,
            body TEXT NOT NULL,
            parent_id BIGINT REFERENCES messages(id),
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_by BIGINT,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS message_history (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            old_content TEXT NOT NULL,
            edited_by BIGINT,
            recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user_id, message_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread
            ON messages (receiver_id, id) WHERE read = FALSE;`,
		`CREATE INDEX IF NOT EXISTS idx_messages_parent
            ON messages (parent_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender
            ON messages (sender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
            ON notifications (user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_history_message
            ON message_history (message_id, recorded_at);`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
