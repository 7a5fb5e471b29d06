package search

import (
	"context"
	"math"
	"time"

	"chunkstore/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options carries the caller-controlled knobs of one search request.
// Exactly one fusion strategy applies in hybrid mode: explicit Weights win
// over the cross-encoder; with neither, the cross-encoder is the default
// when a reranker is configured.
type Options struct {
	Mode   model.SearchMode
	Filter model.Filter
	Page   int

	// Weights is (semantic, fulltext) for weighted fusion. Nil means unset.
	Weights *[2]float64
	// CrossEncoder explicitly enables or disables re-ranking. Nil means
	// default (on, when no weights are given).
	CrossEncoder *bool
	// DateBias adds a recency bonus to final scores.
	DateBias bool
}

// Result is one page of ranked chunks plus the page count computed from the
// index-side candidate totals, independent of fusion.
type Result struct {
	Chunks     []model.ScoredChunk `json:"chunks"`
	TotalPages int64               `json:"total_pages"`
}

type Ranker struct {
	vector   VectorIndex
	lexical  LexicalIndex
	store    MetadataStore
	embedder Embedder
	reranker Reranker
	logger   *zap.Logger

	pageSize        int
	recencyHalfLife time.Duration
	recencyWeight   float64
}

func NewRanker(vector VectorIndex, lexical LexicalIndex, store MetadataStore,
	embedder Embedder, reranker Reranker, logger *zap.Logger,
	pageSize int, recencyHalfLife time.Duration, recencyWeight float64) *Ranker {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Ranker{
		vector:          vector,
		lexical:         lexical,
		store:           store,
		embedder:        embedder,
		reranker:        reranker,
		logger:          logger,
		pageSize:        pageSize,
		recencyHalfLife: recencyHalfLife,
		recencyWeight:   recencyWeight,
	}
}

// Search runs one retrieval request and returns the ordered page.
func (r *Ranker) Search(ctx context.Context, parsed model.ParsedQuery, opts Options, datasetID uuid.UUID) (Result, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * r.pageSize

	switch opts.Mode {
	case model.SearchFulltext:
		return r.searchFulltext(ctx, parsed, opts, datasetID, offset)
	case model.SearchHybrid:
		return r.searchHybrid(ctx, parsed, opts, datasetID, offset)
	default:
		return r.searchSemantic(ctx, parsed, opts, datasetID, offset)
	}
}

func (r *Ranker) searchSemantic(ctx context.Context, parsed model.ParsedQuery, opts Options, datasetID uuid.UUID, offset int) (Result, error) {
	embedding, err := r.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		return Result{}, err
	}

	hits, err := r.vector.Search(ctx, embedding, opts.Filter, datasetID, r.pageSize, offset)
	if err != nil {
		return Result{}, err
	}
	total, err := r.vector.Count(ctx, opts.Filter, datasetID)
	if err != nil {
		return Result{}, err
	}

	pointIDs := make([]uuid.UUID, len(hits))
	for i, hit := range hits {
		pointIDs[i] = hit.PointID
	}
	chunks, err := r.store.GetChunksByPointIDs(ctx, pointIDs, datasetID)
	if err != nil {
		return Result{}, err
	}
	byPoint := make(map[uuid.UUID]model.Chunk, len(chunks))
	for _, c := range chunks {
		if c.VectorPointID != nil {
			byPoint[*c.VectorPointID] = c
		}
	}

	scored := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := byPoint[hit.PointID]
		if !ok {
			r.logger.Warn("Vector hit has no backing chunk, skipping",
				zap.String("point_id", hit.PointID.String()),
				zap.String("dataset_id", datasetID.String()))
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: chunk, Score: hit.Score})
	}

	return r.finishPage(parsed, opts, scored, total), nil
}

func (r *Ranker) searchFulltext(ctx context.Context, parsed model.ParsedQuery, opts Options, datasetID uuid.UUID, offset int) (Result, error) {
	hits, err := r.lexical.SearchFulltext(ctx, parsed, opts.Filter, datasetID, r.pageSize, offset)
	if err != nil {
		return Result{}, err
	}
	total, err := r.lexical.CountFulltext(ctx, parsed, opts.Filter, datasetID)
	if err != nil {
		return Result{}, err
	}

	ids := make([]uuid.UUID, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ChunkID
	}
	chunks, err := r.store.GetChunksByIDs(ctx, ids, datasetID)
	if err != nil {
		return Result{}, err
	}
	byID := make(map[uuid.UUID]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	scored := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := byID[hit.ChunkID]
		if !ok {
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: chunk, Score: hit.Score})
	}

	return r.finishPage(parsed, opts, scored, total), nil
}

// finishPage applies the recency bonus, re-sorts if it changed anything,
// assigns page-relative ranks, and highlights. Highlighting happens last so
// it can never influence ordering.
func (r *Ranker) finishPage(parsed model.ParsedQuery, opts Options, scored []model.ScoredChunk, total int64) Result {
	if opts.DateBias {
		now := time.Now()
		for i := range scored {
			scored[i].Score = r.recencyBoost(scored[i].Score, scored[i].Chunk.Timestamp, now)
		}
		sortScored(scored)
	}

	for i := range scored {
		scored[i].Rank = i + 1
		scored[i].Highlighted = highlight(scored[i].Chunk.PlainContent, parsed)
	}

	return Result{Chunks: scored, TotalPages: totalPages(total, r.pageSize)}
}

// recencyBoost adds a bonus that decays exponentially with the chunk's age.
// Chunks without a timestamp keep their score untouched.
func (r *Ranker) recencyBoost(score float64, ts *time.Time, now time.Time) float64 {
	if ts == nil || r.recencyWeight <= 0 || r.recencyHalfLife <= 0 {
		return score
	}
	age := now.Sub(*ts)
	if age < 0 {
		age = 0
	}
	halfLives := float64(age) / float64(r.recencyHalfLife)
	return score + r.recencyWeight*math.Exp2(-halfLives)
}

func totalPages(total int64, pageSize int) int64 {
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
