// Package search merges dense-vector and lexical retrieval into one ranking:
// query parsing semantics, weighted score fusion or cross-encoder re-ranking,
// recency bias, highlighting, and pagination.
package search

import (
	"context"

	"chunkstore/model"

	"github.com/google/uuid"
)

// VectorIndex is the slice of the dense index the ranker needs.
type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, filter model.Filter, datasetID uuid.UUID, limit, offset int) ([]model.PointHit, error)
	Count(ctx context.Context, filter model.Filter, datasetID uuid.UUID) (int64, error)
	Recommend(ctx context.Context, positive []uuid.UUID, datasetID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// LexicalIndex is the slice of the fulltext index the ranker needs.
type LexicalIndex interface {
	SearchFulltext(ctx context.Context, parsed model.ParsedQuery, filter model.Filter, datasetID uuid.UUID, limit, offset int) ([]model.LexicalHit, error)
	CountFulltext(ctx context.Context, parsed model.ParsedQuery, filter model.Filter, datasetID uuid.UUID) (int64, error)
}

// MetadataStore hydrates index hits back into chunk rows.
type MetadataStore interface {
	GetChunksByIDs(ctx context.Context, ids []uuid.UUID, datasetID uuid.UUID) ([]model.Chunk, error)
	GetChunksByPointIDs(ctx context.Context, pointIDs []uuid.UUID, datasetID uuid.UUID) ([]model.Chunk, error)
	RootPointIDs(ctx context.Context, chunkIDs []uuid.UUID, datasetID uuid.UUID) ([]uuid.UUID, error)
}

// Embedder turns query text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, document) pairs with a cross-encoder.
type Reranker interface {
	Available() bool
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}
