package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chunkstore/fault"
	"chunkstore/model"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// DatasetResolver caches dataset rows so the per-dataset configuration can be
// resolved once per request without a store round trip on the hot path. The
// cache is keyed by dataset id; updates to a dataset evict its entry.
type DatasetResolver struct {
	store *PostgresStore
	cache *lru.Cache
}

func NewDatasetResolver(store *PostgresStore, cacheSize int) (*DatasetResolver, error) {
	if cacheSize < 1 {
		cacheSize = 64
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	return &DatasetResolver{store: store, cache: cache}, nil
}

// Resolve returns the dataset, from cache when possible.
func (r *DatasetResolver) Resolve(ctx context.Context, id uuid.UUID) (model.Dataset, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(model.Dataset), nil
	}
	ds, err := r.store.GetDataset(ctx, id)
	if err != nil {
		return model.Dataset{}, err
	}
	r.cache.Add(id, ds)
	return ds, nil
}

// Evict removes a dataset from the cache after a mutation.
func (r *DatasetResolver) Evict(id uuid.UUID) {
	r.cache.Remove(id)
}

// CreateDataset persists a dataset row.
func (s *PostgresStore) CreateDataset(ctx context.Context, ds model.Dataset) error {
	return s.block(ctx, func() error {
		query := `INSERT INTO datasets (id, name, embedding_size, duplicate_threshold, chunk_quota, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := s.DB.ExecContext(ctx, query, ds.ID, ds.Name, ds.EmbeddingSize,
			ds.DuplicateThreshold, ds.ChunkQuota, ds.CreatedAt); err != nil {
			return mapConstraintError(fmt.Errorf("failed to insert dataset: %w", err), "dataset name")
		}
		return nil
	})
}

// GetDataset returns a dataset row by id.
func (s *PostgresStore) GetDataset(ctx context.Context, id uuid.UUID) (model.Dataset, error) {
	var ds model.Dataset
	err := s.block(ctx, func() error {
		query := `SELECT id, name, embedding_size, duplicate_threshold, chunk_quota, created_at
            FROM datasets WHERE id = $1`
		err := s.DB.QueryRowContext(ctx, query, id).Scan(&ds.ID, &ds.Name,
			&ds.EmbeddingSize, &ds.DuplicateThreshold, &ds.ChunkQuota, &ds.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound("dataset %s not found", id)
			}
			return fmt.Errorf("failed to fetch dataset: %w", err)
		}
		return nil
	})
	return ds, err
}
