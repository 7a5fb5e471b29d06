package search

import (
	"context"
	"sort"
	"time"

	"chunkstore/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type hybridCandidate struct {
	chunk    model.Chunk
	semScore float64
	lexScore float64
	hasSem   bool
	hasLex   bool
	score    float64
}

// searchHybrid pulls one page of candidates from each index, unions them by
// chunk, and applies exactly one fusion strategy: explicit weights when the
// caller supplied them, otherwise cross-encoder re-ranking when a reranker
// is configured (and not explicitly disabled), otherwise equal weights.
func (r *Ranker) searchHybrid(ctx context.Context, parsed model.ParsedQuery, opts Options, datasetID uuid.UUID, offset int) (Result, error) {
	embedding, err := r.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		return Result{}, err
	}

	semHits, err := r.vector.Search(ctx, embedding, opts.Filter, datasetID, r.pageSize, offset)
	if err != nil {
		return Result{}, err
	}
	lexHits, err := r.lexical.SearchFulltext(ctx, parsed, opts.Filter, datasetID, r.pageSize, offset)
	if err != nil {
		return Result{}, err
	}

	semTotal, err := r.vector.Count(ctx, opts.Filter, datasetID)
	if err != nil {
		return Result{}, err
	}
	lexTotal, err := r.lexical.CountFulltext(ctx, parsed, opts.Filter, datasetID)
	if err != nil {
		return Result{}, err
	}
	total := semTotal
	if lexTotal > total {
		total = lexTotal
	}

	candidates, err := r.collectCandidates(ctx, semHits, lexHits, datasetID)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{Chunks: []model.ScoredChunk{}, TotalPages: totalPages(total, r.pageSize)}, nil
	}

	useReranker := opts.Weights == nil &&
		(opts.CrossEncoder == nil || *opts.CrossEncoder) &&
		r.reranker != nil && r.reranker.Available()

	if useReranker {
		if err := r.rerankCandidates(ctx, parsed.Query, candidates); err != nil {
			return Result{}, err
		}
	} else {
		weights := [2]float64{0.5, 0.5}
		if opts.Weights != nil {
			weights = *opts.Weights
		}
		fuseWeighted(candidates, weights)
	}

	if opts.DateBias {
		now := time.Now()
		for _, cand := range candidates {
			cand.score = r.recencyBoost(cand.score, cand.chunk.Timestamp, now)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].chunk.ID.String() < candidates[j].chunk.ID.String()
		}
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > r.pageSize {
		candidates = candidates[:r.pageSize]
	}

	scored := make([]model.ScoredChunk, len(candidates))
	for i, cand := range candidates {
		scored[i] = model.ScoredChunk{
			Chunk:       cand.chunk,
			Score:       cand.score,
			Rank:        i + 1,
			Highlighted: highlight(cand.chunk.PlainContent, parsed),
		}
	}

	return Result{Chunks: scored, TotalPages: totalPages(total, r.pageSize)}, nil
}

// collectCandidates hydrates both hit lists and unions them by chunk id,
// keeping the best score a chunk earned from each source.
func (r *Ranker) collectCandidates(ctx context.Context, semHits []model.PointHit, lexHits []model.LexicalHit, datasetID uuid.UUID) ([]*hybridCandidate, error) {
	byChunk := make(map[uuid.UUID]*hybridCandidate, len(semHits)+len(lexHits))

	if len(semHits) > 0 {
		pointIDs := make([]uuid.UUID, len(semHits))
		for i, hit := range semHits {
			pointIDs[i] = hit.PointID
		}
		chunks, err := r.store.GetChunksByPointIDs(ctx, pointIDs, datasetID)
		if err != nil {
			return nil, err
		}
		byPoint := make(map[uuid.UUID]model.Chunk, len(chunks))
		for _, c := range chunks {
			if c.VectorPointID != nil {
				byPoint[*c.VectorPointID] = c
			}
		}
		for _, hit := range semHits {
			chunk, ok := byPoint[hit.PointID]
			if !ok {
				r.logger.Warn("Vector hit has no backing chunk, skipping",
					zap.String("point_id", hit.PointID.String()))
				continue
			}
			cand := byChunk[chunk.ID]
			if cand == nil {
				cand = &hybridCandidate{chunk: chunk}
				byChunk[chunk.ID] = cand
			}
			if hit.Score > cand.semScore || !cand.hasSem {
				cand.semScore = hit.Score
			}
			cand.hasSem = true
		}
	}

	if len(lexHits) > 0 {
		ids := make([]uuid.UUID, len(lexHits))
		for i, hit := range lexHits {
			ids[i] = hit.ChunkID
		}
		chunks, err := r.store.GetChunksByIDs(ctx, ids, datasetID)
		if err != nil {
			return nil, err
		}
		byID := make(map[uuid.UUID]model.Chunk, len(chunks))
		for _, c := range chunks {
			byID[c.ID] = c
		}
		for _, hit := range lexHits {
			chunk, ok := byID[hit.ChunkID]
			if !ok {
				continue
			}
			cand := byChunk[chunk.ID]
			if cand == nil {
				cand = &hybridCandidate{chunk: chunk}
				byChunk[chunk.ID] = cand
			}
			if hit.Score > cand.lexScore || !cand.hasLex {
				cand.lexScore = hit.Score
			}
			cand.hasLex = true
		}
	}

	candidates := make([]*hybridCandidate, 0, len(byChunk))
	for _, cand := range byChunk {
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// fuseWeighted combines the per-source scores as a weighted average after
// normalizing each source by its max, so the two score scales become
// comparable. Candidates missing from a source only average over the
// sources that actually saw them.
func fuseWeighted(candidates []*hybridCandidate, weights [2]float64) {
	var maxSem, maxLex float64
	for _, cand := range candidates {
		if cand.semScore > maxSem {
			maxSem = cand.semScore
		}
		if cand.lexScore > maxLex {
			maxLex = cand.lexScore
		}
	}

	for _, cand := range candidates {
		weighted := 0.0
		weightSum := 0.0
		if cand.hasSem && maxSem > 0 {
			weighted += weights[0] * (cand.semScore / maxSem)
			weightSum += weights[0]
		}
		if cand.hasLex && maxLex > 0 {
			weighted += weights[1] * (cand.lexScore / maxLex)
			weightSum += weights[1]
		}
		if weightSum > 0 {
			cand.score = weighted / weightSum
		}
	}
}

// rerankCandidates scores every unioned (query, chunk) pair with the
// cross-encoder and uses that as the fused score.
func (r *Ranker) rerankCandidates(ctx context.Context, query string, candidates []*hybridCandidate) error {
	// Stable input order so identical requests send identical batches.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].chunk.ID.String() < candidates[j].chunk.ID.String()
	})

	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = cand.chunk.PlainContent
	}
	scores, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return err
	}
	for i := range candidates {
		if i < len(scores) {
			candidates[i].score = scores[i]
		}
	}
	return nil
}

func sortScored(scored []model.ScoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Chunk.ID.String() < scored[j].Chunk.ID.String()
		}
		return scored[i].Score > scored[j].Score
	})
}
