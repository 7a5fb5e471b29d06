package search

import (
	"context"
	"sort"

	"chunkstore/fault"
	"chunkstore/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recommend returns chunks similar to the positive examples. Duplicates among
// the positives resolve to their root point, so a merged chunk contributes its
// root's embedding to the centroid.
func (r *Ranker) Recommend(ctx context.Context, positiveIDs []uuid.UUID, datasetID uuid.UUID, limit int) ([]model.Chunk, error) {
	if len(positiveIDs) == 0 {
		return nil, fault.Validation("at least one positive chunk id is required")
	}
	if limit <= 0 {
		limit = r.pageSize
	}

	rootPoints, err := r.store.RootPointIDs(ctx, positiveIDs, datasetID)
	if err != nil {
		return nil, err
	}
	if len(rootPoints) == 0 {
		return nil, fault.NotFound("no chunks found for the given positive ids")
	}

	// Over-fetch so that positives sharing a root with a recommended point
	// can still be filtered out without starving the result.
	pointIDs, err := r.vector.Recommend(ctx, rootPoints, datasetID, limit+len(rootPoints))
	if err != nil {
		return nil, err
	}
	if len(pointIDs) == 0 {
		return nil, nil
	}

	chunks, err := r.store.GetChunksByPointIDs(ctx, pointIDs, datasetID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		r.logger.Warn("recommended points have no chunk rows",
			zap.Int("points", len(pointIDs)),
			zap.String("dataset_id", datasetID.String()))
		return nil, fault.Consistency("recommended points are missing metadata, retry the request")
	}

	positive := make(map[uuid.UUID]bool, len(positiveIDs))
	for _, id := range positiveIDs {
		positive[id] = true
	}

	order := make(map[uuid.UUID]int, len(pointIDs))
	for i, id := range pointIDs {
		order[id] = i
	}

	results := make([]model.Chunk, 0, limit)
	byRank := make([]model.Chunk, 0, len(chunks))
	byRank = append(byRank, chunks...)
	sortChunksByPointOrder(byRank, order)
	for _, chunk := range byRank {
		if positive[chunk.ID] {
			continue
		}
		results = append(results, chunk)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// sortChunksByPointOrder arranges chunks in the similarity order the index
// returned their points in.
func sortChunksByPointOrder(chunks []model.Chunk, order map[uuid.UUID]int) {
	rank := func(c model.Chunk) int {
		if c.VectorPointID == nil {
			return len(order)
		}
		if pos, ok := order[*c.VectorPointID]; ok {
			return pos
		}
		return len(order)
	}
	sort.Slice(chunks, func(a, b int) bool { return rank(chunks[a]) < rank(chunks[b]) })
}
