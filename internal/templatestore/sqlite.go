package templatestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS mapping_templates (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	mappings            TEXT NOT NULL DEFAULT '[]',
	applicable_patterns TEXT NOT NULL DEFAULT '[]',
	use_count           INTEGER NOT NULL DEFAULT 0,
	last_used           TEXT,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
)`

// SQLite stores templates in a local database file. Times are kept as
// RFC 3339 text so they survive the round trip with full precision.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens or creates the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: create schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Save(ctx context.Context, t mapping.Template) (mapping.Template, error) {
	t = mapping.NewRecord(t, s.now())
	mappings, patterns, err := encodeLists(t)
	if err != nil {
		return mapping.Template{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mapping_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, string(mappings), string(patterns), t.UseCount,
		formatTime(t.LastUsed), t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return mapping.Template{}, fmt.Errorf("insert template: %w", err)
	}
	logWrite(ctx, KindSQLite, "save", t.ID)
	return t, nil
}

func (s *SQLite) Load(ctx context.Context) ([]mapping.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM mapping_templates ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	out := []mapping.Template{}
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func (s *SQLite) Update(ctx context.Context, id string, p mapping.Patch) (mapping.Template, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapping.Template{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := scanSQLite(tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM mapping_templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.Template{}, notFound(ctx, KindSQLite, "update", id)
	}
	if err != nil {
		return mapping.Template{}, err
	}

	t = p.Apply(t, s.now())
	mappings, patterns, err := encodeLists(t)
	if err != nil {
		return mapping.Template{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE mapping_templates
		 SET name = ?, description = ?, mappings = ?, applicable_patterns = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Description, string(mappings), string(patterns), t.UpdatedAt.Format(time.RFC3339Nano), id)
	if err != nil {
		return mapping.Template{}, fmt.Errorf("update template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return mapping.Template{}, fmt.Errorf("commit: %w", err)
	}
	logWrite(ctx, KindSQLite, "update", id)
	return t, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mapping_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete template: %w", err)
	} else if n == 0 {
		return notFound(ctx, KindSQLite, "delete", id)
	}
	logWrite(ctx, KindSQLite, "delete", id)
	return nil
}

func (s *SQLite) IncrementUsage(ctx context.Context, id string, at time.Time) (mapping.Template, error) {
	t, err := scanSQLite(s.db.QueryRowContext(ctx,
		`UPDATE mapping_templates SET use_count = use_count + 1, last_used = ?
		 WHERE id = ? RETURNING `+templateColumns,
		at.UTC().Format(time.RFC3339Nano), id))
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.Template{}, notFound(ctx, KindSQLite, "use", id)
	}
	if err != nil {
		return mapping.Template{}, err
	}
	logWrite(ctx, KindSQLite, "use", id)
	return t, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (mapping.Template, error) {
	var (
		t                    mapping.Template
		mappings, patterns   string
		lastUsed             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &mappings, &patterns, &t.UseCount, &lastUsed, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("scan template: %w", err)
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return t, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return t, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastUsed.Valid {
		at, err := time.Parse(time.RFC3339Nano, lastUsed.String)
		if err != nil {
			return t, fmt.Errorf("parse last_used: %w", err)
		}
		t.LastUsed = &at
	}
	return t, decodeLists(&t, []byte(mappings), []byte(patterns))
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
