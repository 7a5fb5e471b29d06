package handlers

import (
	"net/http"
	"time"

	"chunkstore/fault"
	"chunkstore/model"

	"chunkstore/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondWithFault maps the fault taxonomy onto HTTP statuses and logs server
// faults with their technical detail. Retryable faults advertise themselves
// so clients know to re-issue the request.
func respondWithFault(c *gin.Context, err error, logger *zap.Logger, fields ...zap.Field) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.KindValidation:
		status = http.StatusBadRequest
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindQuota:
		status = http.StatusUpgradeRequired
	case fault.KindConsistency:
		status = http.StatusServiceUnavailable
	case fault.KindUpstream:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", append(fields, zap.Error(err))...)
	}

	body := gin.H{"error": err.Error()}
	if fault.Retryable(err) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

// parseTimestamp validates an optional RFC 3339 timestamp string.
func parseTimestamp(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fault.Validation("invalid timestamp %q, expected RFC 3339", *raw)
	}
	return &ts, nil
}

// parseFilter converts the wire filter into the model filter.
func parseFilter(f types.ChunkFilter) (model.Filter, error) {
	after, err := parseTimestamp(f.TimeAfter)
	if err != nil {
		return model.Filter{}, err
	}
	until, err := parseTimestamp(f.TimeUntil)
	if err != nil {
		return model.Filter{}, err
	}
	return model.Filter{
		Links:     f.Links,
		Tags:      f.Tags,
		TimeAfter: after,
		TimeUntil: until,
		Metadata:  f.Metadata,
	}, nil
}
