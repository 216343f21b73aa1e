package embedder

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
)

// OpenAI implements Embedder against any OpenAI-compatible embedding API,
// including local servers that ignore the API key.
type OpenAI struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an embedder from config.
func NewOpenAI(cfg config.EmbeddingConfig) (*OpenAI, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible services reject empty tokens but
		// accept any placeholder.
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &OpenAI{
		embedder: emb,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// EmbedTexts generates vector embeddings for a batch of texts.
func (o *OpenAI) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	o.logger.Debug("generating embeddings", "count", len(texts))
	vectors, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		o.logger.Error("embedding generation failed", "count", len(texts), "error", err)
		return nil, err
	}
	return vectors, nil
}
