// Package handlers maps HTTP requests onto the ingest and search engines.
package handlers

import (
	"net/http"

	"chunkstore/ingest"
	"chunkstore/web/middleware"
	"chunkstore/web/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChunkHandler struct {
	engine *ingest.Engine
	logger *zap.Logger
}

func NewChunkHandler(engine *ingest.Engine, logger *zap.Logger) *ChunkHandler {
	return &ChunkHandler{engine: engine, logger: logger}
}

// Create handles POST /api/chunk.
func (h *ChunkHandler) Create(c *gin.Context) {
	var req types.CreateChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		respondWithFault(c, err, h.logger)
		return
	}

	ds := middleware.DatasetFrom(c)
	result, err := h.engine.Create(c.Request.Context(), ds, ingest.CreateRequest{
		Content:    req.Content,
		TrackingID: req.TrackingID,
		Link:       req.Link,
		TagSet:     req.TagSet,
		Metadata:   req.Metadata,
		Timestamp:  ts,
		Weight:     req.Weight,
		Embedding:  req.ChunkVector,
	})
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("dataset_id", ds.ID.String()))
		return
	}

	c.JSON(http.StatusCreated, types.CreateChunkResponse{
		Chunk:     result.Chunk,
		Duplicate: result.Duplicate,
	})
}

// Update handles PUT /api/chunk/update, keyed on chunk_id.
func (h *ChunkHandler) Update(c *gin.Context) {
	var req types.UpdateChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.ChunkID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_id is required"})
		return
	}

	update, err := toUpdateRequest(req)
	if err != nil {
		respondWithFault(c, err, h.logger)
		return
	}

	ds := middleware.DatasetFrom(c)
	chunk, err := h.engine.Update(c.Request.Context(), ds, *req.ChunkID, update)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("chunk_id", req.ChunkID.String()))
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// UpdateByTrackingID handles PUT /api/chunk/tracking_id/update.
func (h *ChunkHandler) UpdateByTrackingID(c *gin.Context) {
	var req types.UpdateChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.TrackingID == nil || *req.TrackingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tracking_id is required"})
		return
	}

	update, err := toUpdateRequest(req)
	if err != nil {
		respondWithFault(c, err, h.logger)
		return
	}

	ds := middleware.DatasetFrom(c)
	chunk, err := h.engine.UpdateByTrackingID(c.Request.Context(), ds, *req.TrackingID, update)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("tracking_id", *req.TrackingID))
		return
	}
	c.JSON(http.StatusOK, chunk)
}

func toUpdateRequest(req types.UpdateChunkRequest) (ingest.UpdateRequest, error) {
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		return ingest.UpdateRequest{}, err
	}
	return ingest.UpdateRequest{
		Content:   req.Content,
		Link:      req.Link,
		TagSet:    req.TagSet,
		Metadata:  req.Metadata,
		Timestamp: ts,
		Weight:    req.Weight,
	}, nil
}

// Get handles GET /api/chunk/:id.
func (h *ChunkHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk id must be a UUID"})
		return
	}

	ds := middleware.DatasetFrom(c)
	chunk, err := h.engine.Get(c.Request.Context(), ds, id)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("chunk_id", id.String()))
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// GetByTrackingID handles GET /api/chunk/tracking_id/:tracking_id.
func (h *ChunkHandler) GetByTrackingID(c *gin.Context) {
	trackingID := c.Param("tracking_id")
	ds := middleware.DatasetFrom(c)
	chunk, err := h.engine.GetByTrackingID(c.Request.Context(), ds, trackingID)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("tracking_id", trackingID))
		return
	}
	c.JSON(http.StatusOK, chunk)
}

// Delete handles DELETE /api/chunk/:id.
func (h *ChunkHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk id must be a UUID"})
		return
	}

	ds := middleware.DatasetFrom(c)
	if err := h.engine.Delete(c.Request.Context(), ds, id); err != nil {
		respondWithFault(c, err, h.logger, zap.String("chunk_id", id.String()))
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteByTrackingID handles DELETE /api/chunk/tracking_id/:tracking_id.
func (h *ChunkHandler) DeleteByTrackingID(c *gin.Context) {
	trackingID := c.Param("tracking_id")
	ds := middleware.DatasetFrom(c)
	if err := h.engine.DeleteByTrackingID(c.Request.Context(), ds, trackingID); err != nil {
		respondWithFault(c, err, h.logger, zap.String("tracking_id", trackingID))
		return
	}
	c.Status(http.StatusNoContent)
}
