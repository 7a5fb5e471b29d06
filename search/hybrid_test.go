package search

import (
	"context"
	"testing"

	"chunkstore/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHybridExplicitWeightsWinOverReranker(t *testing.T) {
	a := rootChunk("alpha only in the vector index")
	b := rootChunk("beta present in both indexes")

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: *a.VectorPointID, Score: 0.9},
			{PointID: *b.VectorPointID, Score: 0.8},
		},
		total: 2,
	}
	lexical := &fakeLexicalIndex{
		hits:  []model.LexicalHit{{ChunkID: b.ID, Score: 5.0}},
		total: 1,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b}}
	reranker := &fakeReranker{available: true}
	ranker := newTestRanker(vector, lexical, store, reranker)

	weights := [2]float64{0.7, 0.3}
	result, err := ranker.Search(context.Background(), model.ParseQuery("beta"),
		Options{Mode: model.SearchHybrid, Weights: &weights}, uuid.New())
	require.NoError(t, err)
	require.Zero(t, reranker.calls, "explicit weights take precedence over the cross-encoder")
	require.Len(t, result.Chunks, 2)

	scoreOf := func(id uuid.UUID) float64 {
		for _, sc := range result.Chunks {
			if sc.Chunk.ID == id {
				return sc.Score
			}
		}
		t.Fatalf("chunk %s missing from results", id)
		return 0
	}

	// a: semantic only, normalized 0.9/0.9 = 1.0 averaged over its one source.
	require.InDelta(t, 1.0, scoreOf(a.ID), 1e-9)
	// b: (0.7*(0.8/0.9) + 0.3*(5.0/5.0)) / 1.0
	require.InDelta(t, 0.7*(0.8/0.9)+0.3, scoreOf(b.ID), 1e-9)
	require.Equal(t, a.ID, result.Chunks[0].Chunk.ID)
}

func TestHybridWeightedFusionIsDeterministic(t *testing.T) {
	a := rootChunk("first candidate")
	b := rootChunk("second candidate")

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: *a.VectorPointID, Score: 0.6},
			{PointID: *b.VectorPointID, Score: 0.6},
		},
		total: 2,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b}}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, &fakeReranker{})

	weights := [2]float64{0.5, 0.5}
	var first []uuid.UUID
	for i := 0; i < 5; i++ {
		result, err := ranker.Search(context.Background(), model.ParseQuery("candidate"),
			Options{Mode: model.SearchHybrid, Weights: &weights}, uuid.New())
		require.NoError(t, err)
		ids := make([]uuid.UUID, len(result.Chunks))
		for j, sc := range result.Chunks {
			ids[j] = sc.Chunk.ID
		}
		if first == nil {
			first = ids
		} else {
			require.Equal(t, first, ids, "equal scores must tie-break deterministically")
		}
	}
}

func TestHybridRerankerIsDefault(t *testing.T) {
	a := rootChunk("alpha document")
	b := rootChunk("beta document")

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: *a.VectorPointID, Score: 0.95},
			{PointID: *b.VectorPointID, Score: 0.60},
		},
		total: 2,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b}}
	reranker := &fakeReranker{
		available: true,
		scores:    map[string]float64{"alpha document": 0.1, "beta document": 0.9},
	}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, reranker)

	result, err := ranker.Search(context.Background(), model.ParseQuery("document"),
		Options{Mode: model.SearchHybrid}, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 1, reranker.calls)
	require.Equal(t, b.ID, result.Chunks[0].Chunk.ID,
		"cross-encoder score overrides the retrieval scores")
	require.InDelta(t, 0.9, result.Chunks[0].Score, 1e-9)
}

func TestHybridCrossEncoderDisabledFallsBackToEqualWeights(t *testing.T) {
	a := rootChunk("alpha document")

	vector := &fakeVectorIndex{
		hits:  []model.PointHit{{PointID: *a.VectorPointID, Score: 0.9}},
		total: 1,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a}}
	reranker := &fakeReranker{available: true}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, reranker)

	off := false
	result, err := ranker.Search(context.Background(), model.ParseQuery("alpha"),
		Options{Mode: model.SearchHybrid, CrossEncoder: &off}, uuid.New())
	require.NoError(t, err)
	require.Zero(t, reranker.calls)
	require.Len(t, result.Chunks, 1)
	require.InDelta(t, 1.0, result.Chunks[0].Score, 1e-9)
}

func TestHybridTotalPagesFromLargerIndexCount(t *testing.T) {
	vector := &fakeVectorIndex{total: 12}
	lexical := &fakeLexicalIndex{total: 31}
	ranker := newTestRanker(vector, lexical, &fakeMetaStore{}, &fakeReranker{})

	result, err := ranker.Search(context.Background(), model.ParseQuery("anything"),
		Options{Mode: model.SearchHybrid}, uuid.New())
	require.NoError(t, err)
	require.Empty(t, result.Chunks)
	require.Equal(t, int64(4), result.TotalPages, "page count follows the larger of the two index totals")
}

func TestFuseWeightedSingleSourceCandidates(t *testing.T) {
	semOnly := &hybridCandidate{semScore: 0.4, hasSem: true}
	lexOnly := &hybridCandidate{lexScore: 3.0, hasLex: true}
	both := &hybridCandidate{semScore: 0.8, hasSem: true, lexScore: 1.5, hasLex: true}

	fuseWeighted([]*hybridCandidate{semOnly, lexOnly, both}, [2]float64{0.5, 0.5})

	require.InDelta(t, 0.5, semOnly.score, 1e-9) // 0.4/0.8 averaged over one source
	require.InDelta(t, 1.0, lexOnly.score, 1e-9) // owns the lexical max
	require.InDelta(t, 0.75, both.score, 1e-9)   // (0.5*1.0 + 0.5*0.5) / 1.0
}
