package handlers

import (
	"net/http"
	"time"

	"chunkstore/config"
	"chunkstore/database"
	"chunkstore/model"

	"chunkstore/web/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DatasetHandler struct {
	store  *database.PostgresStore
	config *config.Config
	logger *zap.Logger
}

func NewDatasetHandler(store *database.PostgresStore, config *config.Config, logger *zap.Logger) *DatasetHandler {
	return &DatasetHandler{store: store, config: config, logger: logger}
}

// Create handles POST /api/dataset. Unset knobs inherit the server defaults.
func (h *DatasetHandler) Create(c *gin.Context) {
	var req types.CreateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ds := model.Dataset{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now(),
		DatasetConfig: model.DatasetConfig{
			EmbeddingSize:      h.config.DefaultEmbeddingSize,
			DuplicateThreshold: h.config.DefaultDuplicateThreshold,
			ChunkQuota:         h.config.DefaultChunkQuota,
		},
	}
	if req.EmbeddingSize > 0 {
		ds.EmbeddingSize = req.EmbeddingSize
	}
	if req.DuplicateThreshold > 0 {
		ds.DuplicateThreshold = req.DuplicateThreshold
	}
	if req.ChunkQuota > 0 {
		ds.ChunkQuota = req.ChunkQuota
	}

	if err := h.store.CreateDataset(c.Request.Context(), ds); err != nil {
		respondWithFault(c, err, h.logger, zap.String("dataset_name", req.Name))
		return
	}
	c.JSON(http.StatusCreated, ds)
}

// Get handles GET /api/dataset/:id.
func (h *DatasetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset id must be a UUID"})
		return
	}

	ds, err := h.store.GetDataset(c.Request.Context(), id)
	if err != nil {
		respondWithFault(c, err, h.logger, zap.String("dataset_id", id.String()))
		return
	}
	c.JSON(http.StatusOK, ds)
}
