package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables this service reads and writes.  users and
// events are owned by the catalog/registration services; they are created
// here only so a fresh database is usable in development.
//
// uq_tickets_user_event is what actually guarantees one ticket per user and
// event: two purchases racing past the application check will collide on
// it, and the repository turns the duplicate key error into a conflict.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		email      VARCHAR(255) NOT NULL,
		name       VARCHAR(255) NOT NULL DEFAULT '',
		role       VARCHAR(16)  NOT NULL DEFAULT 'USER',
		created_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS events (
		id          CHAR(36)      NOT NULL PRIMARY KEY,
		title       VARCHAR(255)  NOT NULL,
		description TEXT          NULL,
		date        DATETIME(3)   NOT NULL,
		price       DECIMAL(10,2) NOT NULL DEFAULT 0,
		user_id     CHAR(36)      NOT NULL,
		cancelled   TINYINT(1)    NOT NULL DEFAULT 0,
		created_at  DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at  DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		KEY idx_events_date (date),
		CONSTRAINT fk_events_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id         CHAR(36)                          NOT NULL PRIMARY KEY,
		event_id   CHAR(36)                          NOT NULL,
		user_id    CHAR(36)                          NOT NULL,
		status     ENUM('PENDING','PAID','FAILED')   NOT NULL DEFAULT 'PENDING',
		created_at DATETIME(3)                       NOT NULL,
		updated_at DATETIME(3)                       NOT NULL,
		UNIQUE KEY uq_tickets_user_event (user_id, event_id),
		KEY idx_tickets_event (event_id),
		CONSTRAINT fk_tickets_event FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
		CONSTRAINT fk_tickets_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.  It is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
