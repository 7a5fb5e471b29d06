// Package vectorindex is the dense vector index, backed by pgvector.
//
// Similarity polarity: all scores returned here are cosine similarity,
// computed as 1 - cosine distance, so higher means more similar and the
// useful range is [-1, 1]. Dataset duplicate thresholds compare against this
// scale.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chunkstore/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

type Index struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Index {
	return &Index{db: db, logger: logger}
}

// EnsureSchema creates the pgvector extension and the points table. The
// embedding column dimension is fixed per deployment; datasets declaring a
// different embedding size need their own deployment of the index table.
func (i *Index) EnsureSchema(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_points (
            point_id UUID PRIMARY KEY,
            dataset_id UUID NOT NULL,
            embedding vector(%d) NOT NULL,
            link TEXT,
            tag_set TEXT[] NOT NULL DEFAULT '{}'::TEXT[],
            ts TIMESTAMPTZ,
            weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
            metadata JSONB NOT NULL DEFAULT '{}'::jsonb
        )`, dims),
		`CREATE INDEX IF NOT EXISTS idx_points_dataset ON vector_points(dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_points_embedding ON vector_points
            USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_points_tag_set ON vector_points USING GIN(tag_set)`,
	}
	for _, stmt := range stmts {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute vector schema statement: %w", err)
		}
	}
	return nil
}

func payloadArgs(p model.PointPayload) (link sql.NullString, tags any, ts sql.NullTime, metaJSON string) {
	if p.Link != nil {
		link = sql.NullString{String: *p.Link, Valid: true}
	}
	tagSet := p.TagSet
	if tagSet == nil {
		tagSet = []string{}
	}
	tags = pq.Array(tagSet)
	if p.Timestamp != nil {
		ts = sql.NullTime{Time: *p.Timestamp, Valid: true}
	}
	raw, _ := json.Marshal(p.Metadata)
	metaJSON = string(raw)
	return
}

// Upsert writes a point with its embedding and denormalized payload.
func (i *Index) Upsert(ctx context.Context, pointID, datasetID uuid.UUID, embedding []float32, payload model.PointPayload) error {
	link, tags, ts, metaJSON := payloadArgs(payload)
	query := `INSERT INTO vector_points (point_id, dataset_id, embedding, link, tag_set, ts, weight, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (point_id) DO UPDATE SET embedding = EXCLUDED.embedding, link = EXCLUDED.link,
            tag_set = EXCLUDED.tag_set, ts = EXCLUDED.ts, weight = EXCLUDED.weight, metadata = EXCLUDED.metadata`
	if _, err := i.db.ExecContext(ctx, query, pointID, datasetID,
		pgvector.NewVector(embedding), link, tags, ts, payload.Weight, metaJSON); err != nil {
		return fmt.Errorf("failed to upsert vector point: %w", err)
	}
	return nil
}

// UpdatePayload rewrites a point's denormalized payload while leaving its
// embedding untouched. Used when a collision lands on an existing root: the
// point keeps representing the root chunk's content.
func (i *Index) UpdatePayload(ctx context.Context, pointID, datasetID uuid.UUID, payload model.PointPayload) error {
	link, tags, ts, metaJSON := payloadArgs(payload)
	query := `UPDATE vector_points SET link = $1, tag_set = $2, ts = $3, weight = $4, metadata = $5
        WHERE point_id = $6 AND dataset_id = $7`
	if _, err := i.db.ExecContext(ctx, query, link, tags, ts, payload.Weight, metaJSON, pointID, datasetID); err != nil {
		return fmt.Errorf("failed to update vector point payload: %w", err)
	}
	return nil
}

// Delete removes a point. Deleting an absent point is not an error.
func (i *Index) Delete(ctx context.Context, pointID, datasetID uuid.UUID) error {
	if _, err := i.db.ExecContext(ctx,
		`DELETE FROM vector_points WHERE point_id = $1 AND dataset_id = $2`, pointID, datasetID); err != nil {
		return fmt.Errorf("failed to delete vector point: %w", err)
	}
	return nil
}

// Top1Unfiltered returns the single nearest point across the whole dataset,
// ignoring every filter. This is the collision-detection primitive: one
// nearest neighbor, not a clustering pass.
func (i *Index) Top1Unfiltered(ctx context.Context, embedding []float32, datasetID uuid.UUID) (model.PointHit, bool, error) {
	query := `SELECT point_id, 1 - (embedding <=> $1) AS score
        FROM vector_points WHERE dataset_id = $2
        ORDER BY embedding <=> $1 LIMIT 1`
	var hit model.PointHit
	err := i.db.QueryRowContext(ctx, query, pgvector.NewVector(embedding), datasetID).Scan(&hit.PointID, &hit.Score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PointHit{}, false, nil
		}
		return model.PointHit{}, false, fmt.Errorf("top-1 collision query failed: %w", err)
	}
	return hit, true, nil
}

// appendFilterSQL renders the uniform search filter against the denormalized
// point payload. Metadata filters are unindexed substring scans.
func appendFilterSQL(builder *strings.Builder, args *[]any, filter model.Filter) {
	param := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	if len(filter.Links) > 0 {
		fmt.Fprintf(builder, " AND link = ANY(%s)", param(pq.Array(filter.Links)))
	}
	if len(filter.Tags) > 0 {
		fmt.Fprintf(builder, " AND tag_set && %s::TEXT[]", param(pq.Array(filter.Tags)))
	}
	if filter.TimeAfter != nil {
		fmt.Fprintf(builder, " AND ts >= %s", param(*filter.TimeAfter))
	}
	if filter.TimeUntil != nil {
		fmt.Fprintf(builder, " AND ts <= %s", param(*filter.TimeUntil))
	}
	for key, val := range filter.Metadata {
		fmt.Fprintf(builder, " AND metadata ->> %s ILIKE '%%' || %s || '%%'", param(key), param(val))
	}
}

// Search returns the filtered nearest neighbors, scored by similarity biased
// with the chunk weight. Ties break on point id for deterministic paging.
func (i *Index) Search(ctx context.Context, embedding []float32, filter model.Filter, datasetID uuid.UUID, limit, offset int) ([]model.PointHit, error) {
	args := []any{pgvector.NewVector(embedding), datasetID}
	var builder strings.Builder
	builder.WriteString(`SELECT point_id, (1 - (embedding <=> $1)) * weight AS score
        FROM vector_points WHERE dataset_id = $2`)
	appendFilterSQL(&builder, &args, filter)
	args = append(args, limit, offset)
	fmt.Fprintf(&builder, " ORDER BY score DESC, point_id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := i.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var hits []model.PointHit
	for rows.Next() {
		var hit model.PointHit
		if err := rows.Scan(&hit.PointID, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the total number of points matching the filter, used to
// report total pages independent of fusion.
func (i *Index) Count(ctx context.Context, filter model.Filter, datasetID uuid.UUID) (int64, error) {
	args := []any{datasetID}
	var builder strings.Builder
	builder.WriteString(`SELECT COUNT(*) FROM vector_points WHERE dataset_id = $1`)
	appendFilterSQL(&builder, &args, filter)

	var count int64
	if err := i.db.QueryRowContext(ctx, builder.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("vector count failed: %w", err)
	}
	return count, nil
}

// Recommend returns the points nearest to the centroid of the positive set,
// excluding the positives themselves.
func (i *Index) Recommend(ctx context.Context, positive []uuid.UUID, datasetID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if len(positive) == 0 {
		return nil, nil
	}
	query := `WITH centroid AS (
            SELECT avg(embedding) AS c FROM vector_points
            WHERE dataset_id = $1 AND point_id = ANY($2)
        )
        SELECT point_id FROM vector_points, centroid
        WHERE dataset_id = $1 AND centroid.c IS NOT NULL AND NOT (point_id = ANY($2))
        ORDER BY embedding <=> centroid.c LIMIT $3`
	rows, err := i.db.QueryContext(ctx, query, datasetID, pq.Array(positive), limit)
	if err != nil {
		return nil, fmt.Errorf("recommendation query failed: %w", err)
	}
	defer rows.Close()

	var pointIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recommended point: %w", err)
		}
		pointIDs = append(pointIDs, id)
	}
	return pointIDs, rows.Err()
}
