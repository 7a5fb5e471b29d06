// Package database is the durable metadata store for chunks and datasets,
// plus the Postgres full-text lexical index over chunk content.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chunkstore/fault"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/panjf2000/ants/v2"
)

type PostgresStore struct {
	DB *sql.DB

	// workers bounds concurrent store calls issued from request paths so a
	// slow query cannot stall unrelated requests on the server's handlers.
	workers *ants.Pool
}

func NewPostgresStore(connStr string, poolSize int) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	if poolSize < 1 {
		poolSize = 1
	}
	workers, err := ants.NewPool(poolSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create store worker pool: %w", err)
	}

	return &PostgresStore{DB: db, workers: workers}, nil
}

func (s *PostgresStore) Close() {
	if s.workers != nil {
		s.workers.Release()
	}
	s.DB.Close()
}

// block runs fn on the bounded worker pool and waits for it, honoring context
// cancellation. The query keeps running to completion on the worker after a
// cancel; only the wait is abandoned.
func (s *PostgresStore) block(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := s.workers.Submit(func() { done <- fn() }); err != nil {
		return fmt.Errorf("submit store task: %w", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
            id UUID PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            embedding_size INT NOT NULL,
            duplicate_threshold DOUBLE PRECISION NOT NULL,
            chunk_quota BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS chunks (
            id UUID PRIMARY KEY,
            tracking_id TEXT,
            dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
            raw_markup TEXT NOT NULL,
            plain_content TEXT NOT NULL,
            link TEXT,
            tag_set TEXT[] NOT NULL DEFAULT '{}'::TEXT[],
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
            ts TIMESTAMPTZ,
            weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
            vector_point_id UUID,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            search_vec tsvector GENERATED ALWAYS AS (to_tsvector('english', plain_content)) STORED
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_tracking
            ON chunks(dataset_id, tracking_id) WHERE tracking_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_point
            ON chunks(dataset_id, vector_point_id) WHERE vector_point_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_dataset ON chunks(dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_search_vec ON chunks USING GIN(search_vec)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_tag_set ON chunks USING GIN(tag_set)`,
		`CREATE TABLE IF NOT EXISTS chunk_collisions (
            chunk_id UUID PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
            dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
            root_point_id UUID NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_collisions_root ON chunk_collisions(dataset_id, root_point_id, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// mapConstraintError turns unique violations into validation faults so a
// conflicting tracking id surfaces as a client error rather than a 500.
func mapConstraintError(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fault.Wrap(fault.KindValidation, err, "conflicting %s", what)
	}
	return err
}
