package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/gazette/internal/models"
)

const storySchemaSQL = `
CREATE TABLE IF NOT EXISTS stories (
	position INTEGER PRIMARY KEY,
	id       TEXT    NOT NULL DEFAULT '',
	author   TEXT    NOT NULL DEFAULT '',
	headline TEXT    NOT NULL DEFAULT '',
	public   INTEGER NOT NULL DEFAULT 0,
	content  TEXT    NOT NULL DEFAULT '',
	date     TEXT
);

CREATE INDEX IF NOT EXISTS idx_stories_headline ON stories(headline);
`

// SQLite implements Provider on an embedded database. The position column
// preserves collection order.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: sqlite path is required")
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(storySchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Load returns every row ordered by position.
func (s *SQLite) Load(ctx context.Context) ([]models.Story, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, author, headline, public, content, date
		FROM stories
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: load: %w", err)
	}
	defer rows.Close()

	out := []models.Story{}
	for rows.Next() {
		var (
			st   models.Story
			date sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Author, &st.Headline, &st.Public, &st.Content, &date); err != nil {
			return nil, fmt.Errorf("storage: scan: %w", err)
		}
		if date.Valid {
			t, err := time.Parse(time.RFC3339Nano, date.String)
			if err != nil {
				return nil, fmt.Errorf("storage: parse date %q: %w", date.String, err)
			}
			st.Date = &t
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Save replaces the table contents inside one transaction.
func (s *SQLite) Save(ctx context.Context, stories []models.Story) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM stories`); err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}

	if len(stories) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO stories (position, id, author, headline, public, content, date)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("storage: prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, st := range stories {
			var date any
			if st.Date != nil {
				date = st.Date.UTC().Format(time.RFC3339Nano)
			}
			if _, err := stmt.ExecContext(ctx, i, st.ID, st.Author, st.Headline, st.Public, st.Content, date); err != nil {
				return fmt.Errorf("storage: insert story %d: %w", i, err)
			}
		}
	}

	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
