package handlers

import (
	"io"
	"net/http"
	"strings"

	"chunkstore/ingest"
	"chunkstore/web/middleware"
	"chunkstore/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FileHandler struct {
	engine        *ingest.Engine
	maxChunkChars int
	logger        *zap.Logger
}

func NewFileHandler(engine *ingest.Engine, maxChunkChars int, logger *zap.Logger) *FileHandler {
	return &FileHandler{engine: engine, maxChunkChars: maxChunkChars, logger: logger}
}

// Upload handles POST /api/file: a multipart PDF upload split into chunks and
// ingested piece by piece. Optional form fields: tracking_id (prefix for the
// per-piece ids), link, tag_set (comma separated).
func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	base := ingest.CreateRequest{}
	if tid := c.PostForm("tracking_id"); tid != "" {
		base.TrackingID = &tid
	}
	if link := c.PostForm("link"); link != "" {
		base.Link = &link
	}
	if tags := c.PostForm("tag_set"); tags != "" {
		base.TagSet = strings.Split(tags, ",")
	}

	ds := middleware.DatasetFrom(c)
	results, err := h.engine.IngestPDF(c.Request.Context(), ds, data, base, h.maxChunkChars)
	if err != nil {
		respondWithFault(c, err, h.logger,
			zap.String("dataset_id", ds.ID.String()),
			zap.String("filename", fileHeader.Filename),
			zap.Int("ingested_before_failure", len(results)))
		return
	}

	resp := types.UploadFileResponse{Chunks: make([]types.CreateChunkResponse, 0, len(results))}
	for _, r := range results {
		resp.Chunks = append(resp.Chunks, types.CreateChunkResponse{Chunk: r.Chunk, Duplicate: r.Duplicate})
	}
	c.JSON(http.StatusCreated, resp)
}
