// Package ingest owns the chunk write path: create with write-time semantic
// deduplication, update with re-embedding, and delete with duplicate-group
// re-rooting.
package ingest

import (
	"context"

	"chunkstore/model"

	"github.com/google/uuid"
)

// ChunkStore is the slice of the metadata store the engine writes through.
type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk model.Chunk) error
	InsertDuplicateChunk(ctx context.Context, chunk model.Chunk, rootPointID uuid.UUID) error
	GetChunk(ctx context.Context, id, datasetID uuid.UUID) (model.Chunk, error)
	GetChunkByTrackingID(ctx context.Context, trackingID string, datasetID uuid.UUID) (model.Chunk, error)
	GetChunksByPointIDs(ctx context.Context, pointIDs []uuid.UUID, datasetID uuid.UUID) ([]model.Chunk, error)
	UpdateChunk(ctx context.Context, chunk model.Chunk) error
	DeleteChunk(ctx context.Context, id, datasetID uuid.UUID) error
	LatestCollision(ctx context.Context, rootPointID, datasetID uuid.UUID) (model.Chunk, bool, error)
	PromoteChunk(ctx context.Context, chunkID, oldPointID, newPointID, datasetID uuid.UUID) error
	CountChunks(ctx context.Context, datasetID uuid.UUID) (int64, error)
}

// VectorIndex is the slice of the dense index the engine writes through.
type VectorIndex interface {
	Upsert(ctx context.Context, pointID, datasetID uuid.UUID, embedding []float32, payload model.PointPayload) error
	UpdatePayload(ctx context.Context, pointID, datasetID uuid.UUID, payload model.PointPayload) error
	Delete(ctx context.Context, pointID, datasetID uuid.UUID) error
	Top1Unfiltered(ctx context.Context, embedding []float32, datasetID uuid.UUID) (model.PointHit, bool, error)
}

// Embedder turns chunk content into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
