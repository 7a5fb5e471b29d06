package search

import (
	"context"
	"testing"
	"time"

	"chunkstore/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVectorIndex struct {
	hits      []model.PointHit
	total     int64
	recommend []uuid.UUID
}

func (f *fakeVectorIndex) Search(context.Context, []float32, model.Filter, uuid.UUID, int, int) ([]model.PointHit, error) {
	return f.hits, nil
}

func (f *fakeVectorIndex) Count(context.Context, model.Filter, uuid.UUID) (int64, error) {
	return f.total, nil
}

func (f *fakeVectorIndex) Recommend(context.Context, []uuid.UUID, uuid.UUID, int) ([]uuid.UUID, error) {
	return f.recommend, nil
}

type fakeLexicalIndex struct {
	hits  []model.LexicalHit
	total int64
}

func (f *fakeLexicalIndex) SearchFulltext(context.Context, model.ParsedQuery, model.Filter, uuid.UUID, int, int) ([]model.LexicalHit, error) {
	return f.hits, nil
}

func (f *fakeLexicalIndex) CountFulltext(context.Context, model.ParsedQuery, model.Filter, uuid.UUID) (int64, error) {
	return f.total, nil
}

type fakeMetaStore struct {
	chunks     []model.Chunk
	rootPoints []uuid.UUID
}

func (f *fakeMetaStore) GetChunksByIDs(_ context.Context, ids []uuid.UUID, _ uuid.UUID) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, c := range f.chunks {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeMetaStore) GetChunksByPointIDs(_ context.Context, pointIDs []uuid.UUID, _ uuid.UUID) ([]model.Chunk, error) {
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.VectorPointID == nil {
			continue
		}
		for _, pid := range pointIDs {
			if *c.VectorPointID == pid {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeMetaStore) RootPointIDs(context.Context, []uuid.UUID, uuid.UUID) ([]uuid.UUID, error) {
	return f.rootPoints, nil
}

type fakeQueryEmbedder struct{}

func (fakeQueryEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeReranker struct {
	available bool
	scores    map[string]float64
	calls     int
}

func (f *fakeReranker) Available() bool { return f.available }

func (f *fakeReranker) Rerank(_ context.Context, _ string, documents []string) ([]float64, error) {
	f.calls++
	out := make([]float64, len(documents))
	for i, doc := range documents {
		out[i] = f.scores[doc]
	}
	return out, nil
}

func rootChunk(content string) model.Chunk {
	point := uuid.New()
	return model.Chunk{
		ID:            uuid.New(),
		PlainContent:  content,
		Weight:        1.0,
		VectorPointID: &point,
	}
}

func newTestRanker(vector *fakeVectorIndex, lexical *fakeLexicalIndex, store *fakeMetaStore, reranker Reranker) *Ranker {
	return NewRanker(vector, lexical, store, fakeQueryEmbedder{}, reranker, zap.NewNop(),
		10, 720*time.Hour, 0.1)
}

func TestSemanticSearchOrdersAndPaginates(t *testing.T) {
	a := rootChunk("alpha content here")
	b := rootChunk("beta content here")
	c := rootChunk("gamma content here")

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: *a.VectorPointID, Score: 0.9},
			{PointID: *b.VectorPointID, Score: 0.8},
			{PointID: *c.VectorPointID, Score: 0.7},
		},
		total: 25,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b, c}}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, &fakeReranker{})

	result, err := ranker.Search(context.Background(), model.ParseQuery("content"),
		Options{Mode: model.SearchSemantic}, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)
	require.Equal(t, int64(3), result.TotalPages, "25 candidates at page size 10")
	for i, sc := range result.Chunks {
		require.Equal(t, i+1, sc.Rank)
		if i > 0 {
			require.GreaterOrEqual(t, result.Chunks[i-1].Score, sc.Score)
		}
	}
	require.Equal(t, a.ID, result.Chunks[0].Chunk.ID)
}

func TestSemanticSearchSkipsOrphanHits(t *testing.T) {
	a := rootChunk("alpha")
	orphanPoint := uuid.New()

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: orphanPoint, Score: 0.95},
			{PointID: *a.VectorPointID, Score: 0.8},
		},
		total: 2,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a}}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, &fakeReranker{})

	result, err := ranker.Search(context.Background(), model.ParseQuery("alpha"),
		Options{Mode: model.SearchSemantic}, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1, "hit without a backing chunk is dropped")
	require.Equal(t, a.ID, result.Chunks[0].Chunk.ID)
}

func TestFulltextSearchHydratesByChunkID(t *testing.T) {
	a := rootChunk("needle in alpha")
	b := model.Chunk{ID: uuid.New(), PlainContent: "needle in duplicate", Weight: 1.0}

	lexical := &fakeLexicalIndex{
		hits: []model.LexicalHit{
			{ChunkID: b.ID, Score: 2.5},
			{ChunkID: a.ID, Score: 1.5},
		},
		total: 2,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b}}
	ranker := newTestRanker(&fakeVectorIndex{}, lexical, store, &fakeReranker{})

	result, err := ranker.Search(context.Background(), model.ParseQuery("needle"),
		Options{Mode: model.SearchFulltext}, uuid.New())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)
	require.Equal(t, b.ID, result.Chunks[0].Chunk.ID,
		"duplicates without a vector point are reachable through fulltext")
	require.Equal(t, int64(1), result.TotalPages)
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
	}
	for _, tt := range tests {
		if got := totalPages(tt.total, tt.pageSize); got != tt.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
		}
	}
}

func TestRecencyBoost(t *testing.T) {
	ranker := newTestRanker(&fakeVectorIndex{}, &fakeLexicalIndex{}, &fakeMetaStore{}, &fakeReranker{})
	now := time.Now()

	fresh := now.Add(-1 * time.Hour)
	stale := now.Add(-2000 * time.Hour)
	ancient := now.Add(-20000 * time.Hour)

	base := 0.5
	freshScore := ranker.recencyBoost(base, &fresh, now)
	staleScore := ranker.recencyBoost(base, &stale, now)
	ancientScore := ranker.recencyBoost(base, &ancient, now)

	require.Greater(t, freshScore, staleScore, "newer chunks earn a larger bonus")
	require.Greater(t, staleScore, ancientScore)
	require.Greater(t, ancientScore, base, "the bonus is additive, never a penalty")
	require.Equal(t, base, ranker.recencyBoost(base, nil, now), "no timestamp, no adjustment")
}

func TestDateBiasReordersPage(t *testing.T) {
	now := time.Now()
	old := now.Add(-10000 * time.Hour)
	recent := now.Add(-1 * time.Hour)

	a := rootChunk("older but slightly better match")
	a.Timestamp = &old
	b := rootChunk("fresh and nearly as good")
	b.Timestamp = &recent

	vector := &fakeVectorIndex{
		hits: []model.PointHit{
			{PointID: *a.VectorPointID, Score: 0.80},
			{PointID: *b.VectorPointID, Score: 0.79},
		},
		total: 2,
	}
	store := &fakeMetaStore{chunks: []model.Chunk{a, b}}
	ranker := newTestRanker(vector, &fakeLexicalIndex{}, store, &fakeReranker{})

	result, err := ranker.Search(context.Background(), model.ParseQuery("match"),
		Options{Mode: model.SearchSemantic, DateBias: true}, uuid.New())
	require.NoError(t, err)
	require.Equal(t, b.ID, result.Chunks[0].Chunk.ID, "recency bonus lifts the fresh chunk past the old one")
	require.Equal(t, 1, result.Chunks[0].Rank)
}
