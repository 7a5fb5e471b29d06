package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chunkstore/fault"
	"chunkstore/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const chunkColumns = `id, tracking_id, dataset_id, raw_markup, plain_content, link, tag_set, metadata, ts, weight, vector_point_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (model.Chunk, error) {
	var (
		c          model.Chunk
		trackingID sql.NullString
		link       sql.NullString
		metaJSON   []byte
		ts         sql.NullTime
		pointID    uuid.NullUUID
	)
	err := row.Scan(&c.ID, &trackingID, &c.DatasetID, &c.RawMarkup, &c.PlainContent,
		&link, pq.Array(&c.TagSet), &metaJSON, &ts, &c.Weight, &pointID, &c.CreatedAt)
	if err != nil {
		return model.Chunk{}, err
	}
	if trackingID.Valid {
		c.TrackingID = &trackingID.String
	}
	if link.Valid {
		c.Link = &link.String
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return model.Chunk{}, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
	}
	if ts.Valid {
		t := ts.Time
		c.Timestamp = &t
	}
	if pointID.Valid {
		p := pointID.UUID
		c.VectorPointID = &p
	}
	return c, nil
}

func chunkInsertArgs(c model.Chunk) []any {
	metaJSON, _ := json.Marshal(c.Metadata)
	var trackingID sql.NullString
	if c.TrackingID != nil && *c.TrackingID != "" {
		trackingID = sql.NullString{String: *c.TrackingID, Valid: true}
	}
	var link sql.NullString
	if c.Link != nil {
		link = sql.NullString{String: *c.Link, Valid: true}
	}
	var ts sql.NullTime
	if c.Timestamp != nil {
		ts = sql.NullTime{Time: *c.Timestamp, Valid: true}
	}
	var pointID uuid.NullUUID
	if c.VectorPointID != nil {
		pointID = uuid.NullUUID{UUID: *c.VectorPointID, Valid: true}
	}
	tagSet := c.TagSet
	if tagSet == nil {
		tagSet = []string{}
	}
	return []any{c.ID, trackingID, c.DatasetID, c.RawMarkup, c.PlainContent,
		link, pq.Array(tagSet), string(metaJSON), ts, c.Weight, pointID, c.CreatedAt}
}

// InsertChunk persists a root chunk, one that owns its own vector point.
func (s *PostgresStore) InsertChunk(ctx context.Context, chunk model.Chunk) error {
	return s.block(ctx, func() error {
		query := `INSERT INTO chunks (` + chunkColumns + `)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := s.DB.ExecContext(ctx, query, chunkInsertArgs(chunk)...); err != nil {
			return mapConstraintError(fmt.Errorf("failed to insert chunk: %w", err), "tracking id")
		}
		return nil
	})
}

// InsertDuplicateChunk persists a chunk detected as a near-duplicate. The
// chunk row carries no vector point id; instead a collision row links it to
// the root's point. Both writes commit together.
func (s *PostgresStore) InsertDuplicateChunk(ctx context.Context, chunk model.Chunk, rootPointID uuid.UUID) error {
	return s.block(ctx, func() error {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin duplicate insert: %w", err)
		}
		defer tx.Rollback()

		chunk.VectorPointID = nil
		query := `INSERT INTO chunks (` + chunkColumns + `)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.ExecContext(ctx, query, chunkInsertArgs(chunk)...); err != nil {
			return mapConstraintError(fmt.Errorf("failed to insert duplicate chunk: %w", err), "tracking id")
		}

		collisionQuery := `INSERT INTO chunk_collisions (chunk_id, dataset_id, root_point_id, created_at)
            VALUES ($1, $2, $3, $4)`
		if _, err := tx.ExecContext(ctx, collisionQuery, chunk.ID, chunk.DatasetID, rootPointID, time.Now()); err != nil {
			return fmt.Errorf("failed to insert collision row: %w", err)
		}

		return tx.Commit()
	})
}

// GetChunk returns a chunk by id within a dataset.
func (s *PostgresStore) GetChunk(ctx context.Context, id, datasetID uuid.UUID) (model.Chunk, error) {
	var chunk model.Chunk
	err := s.block(ctx, func() error {
		query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = $1 AND dataset_id = $2`
		c, err := scanChunk(s.DB.QueryRowContext(ctx, query, id, datasetID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound("chunk %s not found", id)
			}
			return fmt.Errorf("failed to fetch chunk: %w", err)
		}
		chunk = c
		return nil
	})
	return chunk, err
}

// GetChunkByTrackingID returns a chunk by its caller-supplied tracking id.
func (s *PostgresStore) GetChunkByTrackingID(ctx context.Context, trackingID string, datasetID uuid.UUID) (model.Chunk, error) {
	var chunk model.Chunk
	err := s.block(ctx, func() error {
		query := `SELECT ` + chunkColumns + ` FROM chunks WHERE tracking_id = $1 AND dataset_id = $2`
		c, err := scanChunk(s.DB.QueryRowContext(ctx, query, trackingID, datasetID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound("chunk with tracking id %q not found", trackingID)
			}
			return fmt.Errorf("failed to fetch chunk by tracking id: %w", err)
		}
		chunk = c
		return nil
	})
	return chunk, err
}

func (s *PostgresStore) queryChunks(ctx context.Context, query string, args ...any) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := s.block(ctx, func() error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query chunks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				return fmt.Errorf("failed to scan chunk: %w", err)
			}
			chunks = append(chunks, c)
		}
		return rows.Err()
	})
	return chunks, err
}

// GetChunksByIDs returns the chunks for the given ids, in no particular order.
// Missing ids are silently absent from the result.
func (s *PostgresStore) GetChunksByIDs(ctx context.Context, ids []uuid.UUID, datasetID uuid.UUID) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE dataset_id = $1 AND id = ANY($2)`
	return s.queryChunks(ctx, query, datasetID, pq.Array(ids))
}

// GetChunksByPointIDs resolves vector point ids back to the chunks that own
// them. An empty result for a non-empty input signals a torn write between
// the vector index and this store; callers treat that as a consistency fault.
func (s *PostgresStore) GetChunksByPointIDs(ctx context.Context, pointIDs []uuid.UUID, datasetID uuid.UUID) ([]model.Chunk, error) {
	if len(pointIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE dataset_id = $1 AND vector_point_id = ANY($2)`
	return s.queryChunks(ctx, query, datasetID, pq.Array(pointIDs))
}

// UpdateChunk replaces a chunk's mutable fields. The vector point linkage is
// left untouched; point ownership only changes through ingest and delete.
func (s *PostgresStore) UpdateChunk(ctx context.Context, chunk model.Chunk) error {
	return s.block(ctx, func() error {
		metaJSON, _ := json.Marshal(chunk.Metadata)
		var trackingID sql.NullString
		if chunk.TrackingID != nil && *chunk.TrackingID != "" {
			trackingID = sql.NullString{String: *chunk.TrackingID, Valid: true}
		}
		var link sql.NullString
		if chunk.Link != nil {
			link = sql.NullString{String: *chunk.Link, Valid: true}
		}
		var ts sql.NullTime
		if chunk.Timestamp != nil {
			ts = sql.NullTime{Time: *chunk.Timestamp, Valid: true}
		}
		tagSet := chunk.TagSet
		if tagSet == nil {
			tagSet = []string{}
		}

		query := `UPDATE chunks
            SET tracking_id = $1, raw_markup = $2, plain_content = $3, link = $4,
                tag_set = $5, metadata = $6, ts = $7, weight = $8
            WHERE id = $9 AND dataset_id = $10`
		result, err := s.DB.ExecContext(ctx, query, trackingID, chunk.RawMarkup, chunk.PlainContent,
			link, pq.Array(tagSet), string(metaJSON), ts, chunk.Weight, chunk.ID, chunk.DatasetID)
		if err != nil {
			return mapConstraintError(fmt.Errorf("failed to update chunk: %w", err), "tracking id")
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("chunk %s not found", chunk.ID)
		}
		return nil
	})
}

// DeleteChunk removes a chunk row. Collision rows cascade.
func (s *PostgresStore) DeleteChunk(ctx context.Context, id, datasetID uuid.UUID) error {
	return s.block(ctx, func() error {
		result, err := s.DB.ExecContext(ctx, `DELETE FROM chunks WHERE id = $1 AND dataset_id = $2`, id, datasetID)
		if err != nil {
			return fmt.Errorf("failed to delete chunk: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if affected == 0 {
			return fault.NotFound("chunk %s not found", id)
		}
		return nil
	})
}

// LatestCollision returns the most recently created duplicate merged into the
// given root point, or ok=false when the root has no duplicates.
func (s *PostgresStore) LatestCollision(ctx context.Context, rootPointID, datasetID uuid.UUID) (model.Chunk, bool, error) {
	var (
		chunk model.Chunk
		found bool
	)
	err := s.block(ctx, func() error {
		query := `SELECT ` + chunkColumns + ` FROM chunks
            WHERE id = (
                SELECT chunk_id FROM chunk_collisions
                WHERE dataset_id = $1 AND root_point_id = $2
                ORDER BY created_at DESC LIMIT 1
            )`
		c, err := scanChunk(s.DB.QueryRowContext(ctx, query, datasetID, rootPointID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to fetch latest collision: %w", err)
		}
		chunk = c
		found = true
		return nil
	})
	return chunk, found, err
}

// PromoteChunk re-roots a duplicate: the chunk takes ownership of a fresh
// vector point, its collision row disappears, and the group's remaining
// duplicates are re-pointed at the new root, in one transaction.
func (s *PostgresStore) PromoteChunk(ctx context.Context, chunkID, oldPointID, newPointID, datasetID uuid.UUID) error {
	return s.block(ctx, func() error {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin promotion: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`UPDATE chunks SET vector_point_id = $1 WHERE id = $2 AND dataset_id = $3`,
			newPointID, chunkID, datasetID); err != nil {
			return fmt.Errorf("failed to re-point promoted chunk: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_collisions WHERE chunk_id = $1`, chunkID); err != nil {
			return fmt.Errorf("failed to clear collision row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chunk_collisions SET root_point_id = $1
             WHERE dataset_id = $2 AND root_point_id = $3`,
			newPointID, datasetID, oldPointID); err != nil {
			return fmt.Errorf("failed to re-point surviving duplicates: %w", err)
		}
		return tx.Commit()
	})
}

// RootPointIDs maps chunk ids to the vector points that represent them.
// Duplicates resolve to their root's point through the collision table, so
// every chunk maps to exactly one point id here unless its group is headless.
func (s *PostgresStore) RootPointIDs(ctx context.Context, chunkIDs []uuid.UUID, datasetID uuid.UUID) ([]uuid.UUID, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	var pointIDs []uuid.UUID
	err := s.block(ctx, func() error {
		query := `SELECT DISTINCT COALESCE(c.vector_point_id, cc.root_point_id)
            FROM chunks c
            LEFT JOIN chunk_collisions cc ON cc.chunk_id = c.id
            WHERE c.dataset_id = $1 AND c.id = ANY($2)
              AND COALESCE(c.vector_point_id, cc.root_point_id) IS NOT NULL`
		rows, err := s.DB.QueryContext(ctx, query, datasetID, pq.Array(chunkIDs))
		if err != nil {
			return fmt.Errorf("failed to resolve root point ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan point id: %w", err)
			}
			pointIDs = append(pointIDs, id)
		}
		return rows.Err()
	})
	return pointIDs, err
}

// CountChunks returns the number of chunks in a dataset, used for quota
// checks before any embedding cost is paid.
func (s *PostgresStore) CountChunks(ctx context.Context, datasetID uuid.UUID) (int64, error) {
	var count int64
	err := s.block(ctx, func() error {
		if err := s.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE dataset_id = $1`, datasetID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count chunks: %w", err)
		}
		return nil
	})
	return count, err
}
