// Package types holds the request and response shapes of the HTTP API.
package types

import (
	"chunkstore/model"

	"github.com/google/uuid"
)

// CreateChunkRequest ingests one chunk. Timestamp is RFC 3339. ChunkVector,
// when present, is used as the embedding verbatim.
type CreateChunkRequest struct {
	Content     string            `json:"content" binding:"required"`
	TrackingID  *string           `json:"tracking_id,omitempty"`
	Link        *string           `json:"link,omitempty"`
	TagSet      []string          `json:"tag_set,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   *string           `json:"timestamp,omitempty"`
	Weight      *float64          `json:"weight,omitempty"`
	ChunkVector []float32         `json:"chunk_vector,omitempty"`
}

// CreateChunkResponse reports the stored chunk and whether it was merged into
// an existing duplicate group instead of becoming searchable on its own.
type CreateChunkResponse struct {
	Chunk     model.Chunk `json:"chunk_metadata"`
	Duplicate bool        `json:"duplicate"`
}

// UpdateChunkRequest mutates a chunk. Absent fields stay unchanged.
type UpdateChunkRequest struct {
	ChunkID    *uuid.UUID        `json:"chunk_id,omitempty"`
	TrackingID *string           `json:"tracking_id,omitempty"`
	Content    *string           `json:"content,omitempty"`
	Link       *string           `json:"link,omitempty"`
	TagSet     []string          `json:"tag_set,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  *string           `json:"timestamp,omitempty"`
	Weight     *float64          `json:"weight,omitempty"`
}

// ChunkFilter mirrors model.Filter with RFC 3339 time bounds.
type ChunkFilter struct {
	Links     []string          `json:"links,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	TimeAfter *string           `json:"time_range_start,omitempty"`
	TimeUntil *string           `json:"time_range_end,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SearchChunksRequest runs a paginated search. SearchType is semantic,
// fulltext, or hybrid. Weights, when present, are the semantic and fulltext
// fusion weights and take precedence over the cross-encoder.
type SearchChunksRequest struct {
	Query        string      `json:"query" binding:"required"`
	SearchType   string      `json:"search_type,omitempty"`
	Page         int         `json:"page,omitempty"`
	Filter       ChunkFilter `json:"filters,omitempty"`
	Weights      *[2]float64 `json:"weights,omitempty"`
	CrossEncoder *bool       `json:"cross_encoder,omitempty"`
	DateBias     bool        `json:"date_bias,omitempty"`
	Highlight    *bool       `json:"highlight_results,omitempty"`
}

// SearchChunksResponse is one page of scored chunks.
type SearchChunksResponse struct {
	Chunks     []model.ScoredChunk `json:"score_chunks"`
	TotalPages int64               `json:"total_chunk_pages"`
}

// RecommendChunksRequest asks for chunks similar to the positive examples.
type RecommendChunksRequest struct {
	PositiveChunkIDs []uuid.UUID `json:"positive_chunk_ids" binding:"required"`
	Limit            int         `json:"limit,omitempty"`
}

// CreateDatasetRequest provisions a dataset. Zero-valued knobs fall back to
// the server defaults.
type CreateDatasetRequest struct {
	Name               string  `json:"name" binding:"required"`
	EmbeddingSize      int     `json:"embedding_size,omitempty"`
	DuplicateThreshold float64 `json:"duplicate_threshold,omitempty"`
	ChunkQuota         int64   `json:"chunk_quota,omitempty"`
}

// UploadFileResponse reports the per-piece outcome of a PDF ingest.
type UploadFileResponse struct {
	Chunks []CreateChunkResponse `json:"chunks"`
}
