package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema is shared by both dialects; only the key column differs.
// Dates are stored as YYYY-MM-DD text and flags as 0/1 integers.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    event_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    region_id INTEGER NOT NULL,
    deadline TEXT NOT NULL,
    event_date TEXT NOT NULL DEFAULT '',
    classification INTEGER NOT NULL DEFAULT 0,
    mixed INTEGER NOT NULL DEFAULT 0,
    categories TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS participants (
    participant_id {{serial}},
    account_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    birth_date TEXT NOT NULL DEFAULT '',
    gender INTEGER NOT NULL DEFAULT 0,
    postal_code TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    membership_no TEXT NOT NULL DEFAULT '',
    locally_registered INTEGER NOT NULL DEFAULT 0,
    club TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entries (
    entry_id {{serial}},
    account_id TEXT NOT NULL DEFAULT '',
    event_id TEXT NOT NULL,
    category TEXT NOT NULL,
    gender INTEGER NOT NULL DEFAULT 0,
    primary_id BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS entry_partners (
    entry_id BIGINT NOT NULL,
    slot INTEGER NOT NULL,
    participant_id BIGINT NOT NULL,
    PRIMARY KEY (entry_id, slot)
);

CREATE INDEX IF NOT EXISTS idx_entries_event_id ON entries(event_id);
CREATE INDEX IF NOT EXISTS idx_participants_account_id ON participants(account_id);
`

func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	ddl := strings.ReplaceAll(schema, "{{serial}}", d.serial)
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
