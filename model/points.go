package model

import (
	"time"

	"github.com/google/uuid"
)

// PointPayload is the denormalized slice of chunk fields carried on a vector
// point so the index can filter without consulting the metadata store.
type PointPayload struct {
	Link      *string
	TagSet    []string
	Timestamp *time.Time
	Weight    float64
	Metadata  map[string]string
}

// PayloadOf extracts the filterable fields a vector point denormalizes.
func PayloadOf(c Chunk) PointPayload {
	return PointPayload{
		Link:      c.Link,
		TagSet:    c.TagSet,
		Timestamp: c.Timestamp,
		Weight:    c.Weight,
		Metadata:  c.Metadata,
	}
}

// PointHit is a vector index match: a point id with its similarity score on
// the higher-is-more-similar scale.
type PointHit struct {
	PointID uuid.UUID
	Score   float64
}

// LexicalHit is a fulltext index match before hydration.
type LexicalHit struct {
	ChunkID uuid.UUID
	Score   float64
}
