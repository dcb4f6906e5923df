package templatestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"blueprint/internal/generation"
)

// PostgresStore persists templates as JSONB rows.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgres opens dsn with the pgx driver and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("templates: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("templates: ping postgres: %w", err)
	}
	return NewPostgresFromDB(db), nil
}

func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS project_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  body JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_project_templates_category ON project_templates (category);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (generation.ProjectTemplate, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return generation.ProjectTemplate{}, err
	}
	id = strings.TrimSpace(id)
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM project_templates WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return generation.ProjectTemplate{}, notFound(id)
	}
	if err != nil {
		return generation.ProjectTemplate{}, fmt.Errorf("templates: get %s: %w", id, err)
	}
	return decodeRow(body)
}

func (s *PostgresStore) ListTemplates(ctx context.Context, category string) ([]generation.ProjectTemplate, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	category = normalizeCategory(category)
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM project_templates
WHERE $1 = '' OR category = $1
ORDER BY id`, category)
	if err != nil {
		return nil, fmt.Errorf("templates: list: %w", err)
	}
	defer rows.Close()

	var out []generation.ProjectTemplate
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("templates: scan: %w", err)
		}
		t, err := decodeRow(body)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutTemplate(ctx context.Context, t generation.ProjectTemplate) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO project_templates (id, name, category, body, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id)
DO UPDATE SET name=EXCLUDED.name,
  category=EXCLUDED.category,
  body=EXCLUDED.body,
  updated_at=NOW()`,
		t.ID, t.Name, t.Category, body)
	if err != nil {
		return fmt.Errorf("templates: put %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("templates: delete %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func decodeRow(body []byte) (generation.ProjectTemplate, error) {
	var t generation.ProjectTemplate
	if err := json.Unmarshal(body, &t); err != nil {
		return generation.ProjectTemplate{}, fmt.Errorf("templates: decode row: %w", err)
	}
	return t, nil
}
