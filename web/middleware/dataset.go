// Package middleware carries the request plumbing shared by every handler.
package middleware

import (
	"net/http"

	"chunkstore/database"
	"chunkstore/fault"
	"chunkstore/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const datasetKey = "dataset"

// RequireDataset resolves the X-Dataset-ID header into the owning dataset and
// stashes it on the request context. Requests without a valid dataset never
// reach a handler.
func RequireDataset(resolver *database.DatasetResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Dataset-ID")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Dataset-ID header is required"})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Dataset-ID must be a UUID"})
			return
		}

		ds, err := resolver.Resolve(c.Request.Context(), id)
		if err != nil {
			if fault.KindOf(err) == fault.KindNotFound {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			logger.Error("failed to resolve dataset", zap.String("dataset_id", raw), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve dataset"})
			return
		}

		c.Set(datasetKey, ds)
		c.Next()
	}
}

// DatasetFrom returns the dataset resolved by RequireDataset.
func DatasetFrom(c *gin.Context) model.Dataset {
	return c.MustGet(datasetKey).(model.Dataset)
}
