package llm

import (
	"fmt"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

// NewClientFromConfig creates an LLM client from a model configuration
func NewClientFromConfig(cfg *ModelConfig) (Client, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeConfig, "model config is required", nil)
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg)
	case "anthropic":
		return NewAnthropicClient(cfg)
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfig,
			fmt.Sprintf("unsupported model provider: %s", cfg.Provider), nil)
	}
}
