package ingest

import (
	"context"
	"strings"
	"time"

	"chunkstore/fault"
	"chunkstore/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine coordinates the chunk write path across the metadata store, the
// vector index, and the embedder. All operations are request-scoped; the only
// shared state is the stores themselves.
type Engine struct {
	store    ChunkStore
	vector   VectorIndex
	embedder Embedder
	logger   *zap.Logger
}

func NewEngine(store ChunkStore, vector VectorIndex, embedder Embedder, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		vector:   vector,
		embedder: embedder,
		logger:   logger,
	}
}

// CreateRequest carries a new chunk. Embedding, when non-empty, is used as
// the chunk's vector verbatim and the embedder is never called.
type CreateRequest struct {
	Content    string
	TrackingID *string
	Link       *string
	TagSet     []string
	Metadata   map[string]string
	Timestamp  *time.Time
	Weight     *float64
	Embedding  []float32
}

// CreateResult is the outcome of one ingest: the persisted chunk and whether
// it was merged into an existing duplicate group.
type CreateResult struct {
	Chunk     model.Chunk
	Duplicate bool
}

// Create ingests one chunk. The quota check runs before any embedding cost is
// paid. A top-1 unfiltered neighbor at or above the dataset's duplicate
// threshold merges the chunk into that neighbor's group: the chunk row is
// written with no vector point of its own and the root's point keeps its
// embedding. Otherwise the chunk becomes a new root with a fresh point.
//
// Two concurrent ingests of near-identical content can both miss the
// collision check and create two roots; nothing locks across the embed and
// detect steps.
func (e *Engine) Create(ctx context.Context, ds model.Dataset, req CreateRequest) (CreateResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return CreateResult{}, fault.Validation("chunk content must not be empty")
	}
	if req.TrackingID != nil && strings.TrimSpace(*req.TrackingID) == "" {
		return CreateResult{}, fault.Validation("tracking_id must not be blank when present")
	}

	count, err := e.store.CountChunks(ctx, ds.ID)
	if err != nil {
		return CreateResult{}, err
	}
	if count >= ds.ChunkQuota {
		return CreateResult{}, fault.Quota("dataset %s is at its chunk quota (%d)", ds.ID, ds.ChunkQuota)
	}

	plain := PlainText(req.Content)
	if plain == "" {
		return CreateResult{}, fault.Validation("chunk content has no indexable text")
	}

	embedding := req.Embedding
	if len(embedding) == 0 {
		if embedding, err = e.embedder.Embed(ctx, plain); err != nil {
			return CreateResult{}, err
		}
	}

	chunk := model.Chunk{
		ID:           uuid.New(),
		TrackingID:   req.TrackingID,
		DatasetID:    ds.ID,
		RawMarkup:    req.Content,
		PlainContent: plain,
		Link:         req.Link,
		TagSet:       req.TagSet,
		Metadata:     req.Metadata,
		Timestamp:    req.Timestamp,
		Weight:       1.0,
		CreatedAt:    time.Now(),
	}
	if req.Weight != nil {
		chunk.Weight = *req.Weight
	}

	rootPoint, collided, err := e.detectCollision(ctx, ds, embedding)
	if err != nil {
		return CreateResult{}, err
	}

	if collided {
		if err := e.store.InsertDuplicateChunk(ctx, chunk, rootPoint.PointID); err != nil {
			return CreateResult{}, err
		}
		// The root's point keeps its embedding; only the filterable payload
		// is refreshed so index-side filters see the group's latest state.
		if err := e.vector.UpdatePayload(ctx, rootPoint.PointID, ds.ID, model.PayloadOf(rootPoint.Chunk)); err != nil {
			return CreateResult{}, err
		}
		e.logger.Debug("chunk merged into duplicate group",
			zap.String("chunk_id", chunk.ID.String()),
			zap.String("root_point_id", rootPoint.PointID.String()),
			zap.Float64("similarity", rootPoint.Score))
		return CreateResult{Chunk: chunk, Duplicate: true}, nil
	}

	pointID := uuid.New()
	chunk.VectorPointID = &pointID
	if err := e.store.InsertChunk(ctx, chunk); err != nil {
		return CreateResult{}, err
	}
	if err := e.vector.Upsert(ctx, pointID, ds.ID, embedding, model.PayloadOf(chunk)); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Chunk: chunk}, nil
}

// rootMatch is a confirmed collision target: the nearest point plus the chunk
// row that owns it.
type rootMatch struct {
	PointID uuid.UUID
	Score   float64
	Chunk   model.Chunk
}

// detectCollision runs the top-1 unfiltered neighbor check. A neighbor below
// the dataset threshold is not a collision. A neighbor whose point has no
// backing chunk row is a torn write: the orphan point is deleted and the
// ingest fails with a retryable fault.
func (e *Engine) detectCollision(ctx context.Context, ds model.Dataset, embedding []float32) (rootMatch, bool, error) {
	hit, found, err := e.vector.Top1Unfiltered(ctx, embedding, ds.ID)
	if err != nil {
		return rootMatch{}, false, err
	}
	if !found || hit.Score < ds.DuplicateThreshold {
		return rootMatch{}, false, nil
	}

	roots, err := e.store.GetChunksByPointIDs(ctx, []uuid.UUID{hit.PointID}, ds.ID)
	if err != nil {
		return rootMatch{}, false, err
	}
	if len(roots) == 0 {
		e.logger.Warn("nearest point has no chunk row, deleting orphan",
			zap.String("point_id", hit.PointID.String()),
			zap.String("dataset_id", ds.ID.String()))
		if err := e.vector.Delete(ctx, hit.PointID, ds.ID); err != nil {
			return rootMatch{}, false, err
		}
		return rootMatch{}, false, fault.Consistency("orphaned vector point %s removed, retry the ingest", hit.PointID)
	}
	return rootMatch{PointID: hit.PointID, Score: hit.Score, Chunk: roots[0]}, true, nil
}

// Get returns a chunk by id.
func (e *Engine) Get(ctx context.Context, ds model.Dataset, id uuid.UUID) (model.Chunk, error) {
	return e.store.GetChunk(ctx, id, ds.ID)
}

// GetByTrackingID returns a chunk by its caller-supplied alternate id.
func (e *Engine) GetByTrackingID(ctx context.Context, ds model.Dataset, trackingID string) (model.Chunk, error) {
	if strings.TrimSpace(trackingID) == "" {
		return model.Chunk{}, fault.Validation("tracking_id must not be blank")
	}
	return e.store.GetChunkByTrackingID(ctx, trackingID, ds.ID)
}

// UpdateRequest mutates an existing chunk. Nil fields stay unchanged; Content
// non-nil triggers re-embedding.
type UpdateRequest struct {
	Content   *string
	Link      *string
	TagSet    []string
	Metadata  map[string]string
	Timestamp *time.Time
	Weight    *float64
}

// Update mutates a chunk by id. Content changes re-derive the plain text and
// re-embed. The vector point is only touched when the chunk owns one;
// duplicates update their row alone, since their group's point represents the
// root's content.
func (e *Engine) Update(ctx context.Context, ds model.Dataset, id uuid.UUID, req UpdateRequest) (model.Chunk, error) {
	chunk, err := e.store.GetChunk(ctx, id, ds.ID)
	if err != nil {
		return model.Chunk{}, err
	}
	return e.applyUpdate(ctx, ds, chunk, req)
}

// UpdateByTrackingID is Update keyed on the caller-supplied alternate id.
func (e *Engine) UpdateByTrackingID(ctx context.Context, ds model.Dataset, trackingID string, req UpdateRequest) (model.Chunk, error) {
	chunk, err := e.store.GetChunkByTrackingID(ctx, trackingID, ds.ID)
	if err != nil {
		return model.Chunk{}, err
	}
	return e.applyUpdate(ctx, ds, chunk, req)
}

func (e *Engine) applyUpdate(ctx context.Context, ds model.Dataset, chunk model.Chunk, req UpdateRequest) (model.Chunk, error) {
	var embedding []float32
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return model.Chunk{}, fault.Validation("chunk content must not be empty")
		}
		plain := PlainText(*req.Content)
		if plain == "" {
			return model.Chunk{}, fault.Validation("chunk content has no indexable text")
		}
		var err error
		if embedding, err = e.embedder.Embed(ctx, plain); err != nil {
			return model.Chunk{}, err
		}
		chunk.RawMarkup = *req.Content
		chunk.PlainContent = plain
	}
	if req.Link != nil {
		chunk.Link = req.Link
	}
	if req.TagSet != nil {
		chunk.TagSet = req.TagSet
	}
	if req.Metadata != nil {
		chunk.Metadata = req.Metadata
	}
	if req.Timestamp != nil {
		chunk.Timestamp = req.Timestamp
	}
	if req.Weight != nil {
		chunk.Weight = *req.Weight
	}

	if err := e.store.UpdateChunk(ctx, chunk); err != nil {
		return model.Chunk{}, err
	}

	if chunk.VectorPointID != nil {
		pointID := *chunk.VectorPointID
		if embedding != nil {
			if err := e.vector.Upsert(ctx, pointID, ds.ID, embedding, model.PayloadOf(chunk)); err != nil {
				return model.Chunk{}, err
			}
		} else if err := e.vector.UpdatePayload(ctx, pointID, ds.ID, model.PayloadOf(chunk)); err != nil {
			return model.Chunk{}, err
		}
	}
	return chunk, nil
}

// Delete removes a chunk. Deleting a root with surviving duplicates re-roots
// the group: the most recently created duplicate is re-embedded and takes
// over a fresh point, created before the old point and row disappear, so the
// group is never headless when this returns.
func (e *Engine) Delete(ctx context.Context, ds model.Dataset, id uuid.UUID) error {
	chunk, err := e.store.GetChunk(ctx, id, ds.ID)
	if err != nil {
		return err
	}
	return e.deleteChunk(ctx, ds, chunk)
}

// DeleteByTrackingID is Delete keyed on the caller-supplied alternate id.
func (e *Engine) DeleteByTrackingID(ctx context.Context, ds model.Dataset, trackingID string) error {
	chunk, err := e.store.GetChunkByTrackingID(ctx, trackingID, ds.ID)
	if err != nil {
		return err
	}
	return e.deleteChunk(ctx, ds, chunk)
}

func (e *Engine) deleteChunk(ctx context.Context, ds model.Dataset, chunk model.Chunk) error {
	if chunk.IsDuplicate() {
		return e.store.DeleteChunk(ctx, chunk.ID, ds.ID)
	}

	oldPoint := *chunk.VectorPointID
	promoted, hasHeir, err := e.store.LatestCollision(ctx, oldPoint, ds.ID)
	if err != nil {
		return err
	}

	if hasHeir {
		embedding, err := e.embedder.Embed(ctx, promoted.PlainContent)
		if err != nil {
			return err
		}
		newPoint := uuid.New()
		promoted.VectorPointID = &newPoint
		if err := e.vector.Upsert(ctx, newPoint, ds.ID, embedding, model.PayloadOf(promoted)); err != nil {
			return err
		}
		if err := e.store.PromoteChunk(ctx, promoted.ID, oldPoint, newPoint, ds.ID); err != nil {
			return err
		}
		e.logger.Debug("duplicate promoted to root",
			zap.String("chunk_id", promoted.ID.String()),
			zap.String("old_point_id", oldPoint.String()),
			zap.String("new_point_id", newPoint.String()))
	}

	if err := e.vector.Delete(ctx, oldPoint, ds.ID); err != nil {
		return err
	}
	return e.store.DeleteChunk(ctx, chunk.ID, ds.ID)
}
