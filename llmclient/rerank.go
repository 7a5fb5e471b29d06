package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chunkstore/config"
	"chunkstore/fault"

	"go.uber.org/zap"
)

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Reranker scores (query, document) pairs with a cross-encoder model served
// behind an HTTP endpoint.
type Reranker struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewReranker(cfg *config.Config, logger *zap.Logger) *Reranker {
	return &Reranker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// Available reports whether a reranker host is configured. Searches that ask
// for cross-encoder re-ranking without one fall back to weighted fusion.
func (r *Reranker) Available() bool {
	return strings.TrimSpace(r.cfg.RerankerHost) != ""
}

// Rerank returns one relevance score per document, aligned with the input
// order. Transient HTTP failures are retried with a linear backoff; a final
// failure surfaces as an upstream fault.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := rerankRequest{
		Model:     r.cfg.RerankerModel,
		Query:     query,
		Documents: documents,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/rerank", strings.TrimRight(r.cfg.RerankerHost, "/"))

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = r.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			r.logger.Warn("Reranker request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			time.Sleep(time.Second * time.Duration(attempt+1))
			continue
		}

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("reranker returned %d: %s", resp.StatusCode, string(body))
			resp = nil
			time.Sleep(time.Second * time.Duration(attempt+1))
			continue
		}
		break
	}
	if resp == nil {
		return nil, fault.Upstream(lastErr, "reranker unreachable after %d attempts", r.cfg.MaxRetries)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fault.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, string(body)), "reranker rejected request")
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fault.Upstream(err, "decode reranker response")
	}

	scores := make([]float64, len(documents))
	for _, result := range parsed.Results {
		if result.Index >= 0 && result.Index < len(scores) {
			scores[result.Index] = result.RelevanceScore
		}
	}
	return scores, nil
}
