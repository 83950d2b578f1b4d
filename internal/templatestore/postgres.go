package templatestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS mapping_templates (
	id                  UUID PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	mappings            JSONB NOT NULL DEFAULT '[]',
	applicable_patterns JSONB NOT NULL DEFAULT '[]',
	use_count           INTEGER NOT NULL DEFAULT 0,
	last_used           TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
)`

const templateColumns = `id, name, description, mappings, applicable_patterns, use_count, last_used, created_at, updated_at`

// Postgres stores templates in the mapping_templates table.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres connects to url, verifies the connection and creates the
// table when it does not exist. maxConns <= 0 keeps the pgx default.
func NewPostgres(ctx context.Context, url string, maxConns int32) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: create schema: %w", err)
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

func (s *Postgres) Save(ctx context.Context, t mapping.Template) (mapping.Template, error) {
	t = mapping.NewRecord(t, s.now())
	mappings, patterns, err := encodeLists(t)
	if err != nil {
		return mapping.Template{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO mapping_templates (`+templateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Description, mappings, patterns, t.UseCount, t.LastUsed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapping.Template{}, fmt.Errorf("insert template: %w", err)
	}
	logWrite(ctx, KindPostgres, "save", t.ID)
	return t, nil
}

func (s *Postgres) Load(ctx context.Context) ([]mapping.Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM mapping_templates ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	out := []mapping.Template{}
	for rows.Next() {
		t, err := scanPostgres(rows)
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

func (s *Postgres) Update(ctx context.Context, id string, p mapping.Patch) (mapping.Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return mapping.Template{}, notFound(ctx, KindPostgres, "update", id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapping.Template{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanPostgres(tx.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM mapping_templates WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return mapping.Template{}, notFound(ctx, KindPostgres, "update", id)
	}
	if err != nil {
		return mapping.Template{}, err
	}

	t = p.Apply(t, s.now())
	mappings, patterns, err := encodeLists(t)
	if err != nil {
		return mapping.Template{}, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE mapping_templates
		 SET name = $2, description = $3, mappings = $4, applicable_patterns = $5, updated_at = $6
		 WHERE id = $1`,
		id, t.Name, t.Description, mappings, patterns, t.UpdatedAt)
	if err != nil {
		return mapping.Template{}, fmt.Errorf("update template: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapping.Template{}, fmt.Errorf("commit: %w", err)
	}
	logWrite(ctx, KindPostgres, "update", id)
	return t, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(ctx, KindPostgres, "delete", id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM mapping_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(ctx, KindPostgres, "delete", id)
	}
	logWrite(ctx, KindPostgres, "delete", id)
	return nil
}

func (s *Postgres) IncrementUsage(ctx context.Context, id string, at time.Time) (mapping.Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return mapping.Template{}, notFound(ctx, KindPostgres, "use", id)
	}
	t, err := scanPostgres(s.pool.QueryRow(ctx,
		`UPDATE mapping_templates SET use_count = use_count + 1, last_used = $2
		 WHERE id = $1 RETURNING `+templateColumns, id, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return mapping.Template{}, notFound(ctx, KindPostgres, "use", id)
	}
	if err != nil {
		return mapping.Template{}, err
	}
	logWrite(ctx, KindPostgres, "use", id)
	return t, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (mapping.Template, error) {
	var (
		t                  mapping.Template
		id                 uuid.UUID
		mappings, patterns []byte
	)
	err := row.Scan(&id, &t.Name, &t.Description, &mappings, &patterns, &t.UseCount, &t.LastUsed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("scan template: %w", err)
	}
	t.ID = id.String()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.LastUsed != nil {
		at := t.LastUsed.UTC()
		t.LastUsed = &at
	}
	return t, decodeLists(&t, mappings, patterns)
}
