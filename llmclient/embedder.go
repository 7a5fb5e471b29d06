// Package llmclient holds the clients for the model sidecars: the embedding
// provider and the cross-encoder reranker.
package llmclient

import (
	"context"
	"fmt"
	"os"

	"chunkstore/config"
	"chunkstore/fault"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// Embedder turns text into a dense vector through an OpenAI-compatible
// embeddings endpoint. Provider failures surface as upstream faults and are
// not retried internally; the request fails and the caller may resubmit.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *zap.Logger
}

func NewEmbedder(cfg *config.Config, logger *zap.Logger) (*Embedder, error) {
	// Local OpenAI-compatible servers don't validate the token; "none" keeps
	// the client constructor happy when no key is configured.
	token := os.Getenv("EMBEDDING_API_KEY")
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrap embedding client: %w", err)
	}

	return &Embedder{embedder: embedder, logger: logger}, nil
}

// Embed generates the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Warn("Embedding provider call failed", zap.Error(err), zap.Int("text_len", len(text)))
		return nil, fault.Upstream(err, "embedding provider failed")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fault.Upstream(nil, "embedding provider returned an empty vector")
	}
	return vectors[0], nil
}
