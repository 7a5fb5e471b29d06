package handlers

import (
	"net/http"

	"chunkstore/model"
	"chunkstore/search"
	"chunkstore/web/middleware"
	"chunkstore/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SearchHandler struct {
	ranker *search.Ranker
	logger *zap.Logger
}

func NewSearchHandler(ranker *search.Ranker, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{ranker: ranker, logger: logger}
}

// Search handles POST /api/chunk/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req types.SearchChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	filter, err := parseFilter(req.Filter)
	if err != nil {
		respondWithFault(c, err, h.logger)
		return
	}

	ds := middleware.DatasetFrom(c)
	parsed := model.ParseQuery(req.Query)
	result, err := h.ranker.Search(c.Request.Context(), parsed, search.Options{
		Mode:         model.ParseSearchMode(req.SearchType),
		Filter:       filter,
		Page:         req.Page,
		Weights:      req.Weights,
		CrossEncoder: req.CrossEncoder,
		DateBias:     req.DateBias,
	}, ds.ID)
	if err != nil {
		respondWithFault(c, err, h.logger,
			zap.String("dataset_id", ds.ID.String()),
			zap.String("search_type", req.SearchType))
		return
	}

	if req.Highlight != nil && !*req.Highlight {
		for i := range result.Chunks {
			result.Chunks[i].Highlighted = ""
		}
	}

	c.JSON(http.StatusOK, types.SearchChunksResponse{
		Chunks:     result.Chunks,
		TotalPages: result.TotalPages,
	})
}

// Recommend handles POST /api/chunk/recommend.
func (h *SearchHandler) Recommend(c *gin.Context) {
	var req types.RecommendChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ds := middleware.DatasetFrom(c)
	chunks, err := h.ranker.Recommend(c.Request.Context(), req.PositiveChunkIDs, ds.ID, req.Limit)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("dataset_id", ds.ID.String()))
		return
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}
