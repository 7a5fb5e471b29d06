package model

import (
	"time"

	"github.com/google/uuid"
)

// SearchMode selects which index (or both) a search request runs against.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchFulltext SearchMode = "fulltext"
	SearchHybrid   SearchMode = "hybrid"
)

// ParseSearchMode maps a raw mode string onto a SearchMode, defaulting to
// semantic for unrecognized values.
func ParseSearchMode(raw string) SearchMode {
	switch raw {
	case string(SearchFulltext):
		return SearchFulltext
	case string(SearchHybrid):
		return SearchHybrid
	default:
		return SearchSemantic
	}
}

// Chunk is the atomic unit of indexed, searchable content. A chunk either
// owns a vector point (VectorPointID set) or is a duplicate merged into
// another chunk's point (VectorPointID nil); duplicates are reachable through
// fulltext search and metadata lookup only.
type Chunk struct {
	ID            uuid.UUID         `json:"id"`
	TrackingID    *string           `json:"tracking_id,omitempty"`
	DatasetID     uuid.UUID         `json:"dataset_id"`
	RawMarkup     string            `json:"raw_markup"`
	PlainContent  string            `json:"plain_content"`
	Link          *string           `json:"link,omitempty"`
	TagSet        []string          `json:"tag_set,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     *time.Time        `json:"timestamp,omitempty"`
	Weight        float64           `json:"weight"`
	VectorPointID *uuid.UUID        `json:"vector_point_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsDuplicate reports whether this chunk was merged into another chunk's
// vector point at ingest time.
func (c Chunk) IsDuplicate() bool {
	return c.VectorPointID == nil
}

// Filter carries the constraints accepted uniformly by the vector and lexical
// indexes. Links and tags match any-of; the time range is inclusive. Metadata
// filters are substring matches with no index support, so they cost a linear
// scan over the candidate set.
type Filter struct {
	Links     []string
	Tags      []string
	TimeAfter *time.Time
	TimeUntil *time.Time
	Metadata  map[string]string
}

// IsZero reports whether the filter constrains anything at all.
func (f Filter) IsZero() bool {
	return len(f.Links) == 0 && len(f.Tags) == 0 &&
		f.TimeAfter == nil && f.TimeUntil == nil && len(f.Metadata) == 0
}

// ScoredChunk pairs a hydrated chunk with its relevance score and its
// page-relative rank. Higher scores are better. Highlighted carries the
// chunk content with matching sentences wrapped in <b> tags; it is cosmetic
// and never participates in ordering.
type ScoredChunk struct {
	Chunk       Chunk   `json:"chunk"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
	Highlighted string  `json:"highlighted,omitempty"`
}

// Dataset is the owning partition for chunks, with the per-dataset knobs
// resolved once per request and threaded into the ingest and search paths.
type Dataset struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	DatasetConfig
}

// DatasetConfig holds the per-dataset tuning values. DuplicateThreshold is
// compared against cosine similarity on a higher-is-more-similar scale in
// [-1, 1]; see vectorindex for the polarity contract.
type DatasetConfig struct {
	EmbeddingSize      int     `json:"embedding_size"`
	DuplicateThreshold float64 `json:"duplicate_threshold"`
	ChunkQuota         int64   `json:"chunk_quota"`
}
