package search

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Config is loaded with the SEARCH prefix.
type Config struct {
	TopK int `envconfig:"TOP_K" split_words:"true" default:"5"`

	QdrantURL    string `envconfig:"QDRANT_URL" split_words:"true" default:"http://localhost:6334"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY" split_words:"true"`
	Collection   string `default:"products"`

	EmbeddingBaseURL    string        `envconfig:"EMBEDDING_BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	EmbeddingAPIKey     string        `envconfig:"EMBEDDING_API_KEY" split_words:"true"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" split_words:"true" default:"1536"`
	Timeout             time.Duration `default:"15s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.QdrantURL) == "" {
		return fmt.Errorf("%w: qdrant url is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection name is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.EmbeddingAPIKey) == "" {
		return fmt.Errorf("%w: embedding api key is required", contractx.ErrValidation)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", contractx.ErrValidation)
	}
	return nil
}
