package summarize

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider names.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// ProviderConfig selects and configures a Completer. Secrets are read from
// the environment variables it names.
type ProviderConfig struct {
	Provider string
	Model    string
	// Region is the AWS region for bedrock.
	Region string
	// BaseURL is the OpenAI-compatible endpoint root.
	BaseURL   string
	APIKeyEnv string
	// AWS credential variables. Empty names fall back to the default chain.
	AccessKeyEnv    string
	SecretKeyEnv    string
	SessionTokenEnv string
}

// NewCompleter builds the configured provider. Missing provider or
// credentials yield ErrNotConfigured.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, ErrNotConfigured
	case ProviderBedrock:
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: bedrock needs a region", ErrNotConfigured)
		}
		if cfg.AccessKeyEnv != "" && (getenv(cfg.AccessKeyEnv) == "" || getenv(cfg.SecretKeyEnv) == "") {
			return nil, fmt.Errorf("%w: %s and %s must be set", ErrNotConfigured, cfg.AccessKeyEnv, cfg.SecretKeyEnv)
		}
		return NewBedrock(ctx, BedrockConfig{
			Region:       cfg.Region,
			Model:        cfg.Model,
			AccessKey:    getenv(cfg.AccessKeyEnv),
			SecretKey:    getenv(cfg.SecretKeyEnv),
			SessionToken: getenv(cfg.SessionTokenEnv),
		})
	case ProviderOpenAI:
		key := getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s is not set", ErrNotConfigured, cfg.APIKeyEnv)
		}
		return NewOpenAI(cfg.BaseURL, cfg.Model, key), nil
	case ProviderGemini:
		key := getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s is not set", ErrNotConfigured, cfg.APIKeyEnv)
		}
		return NewGemini(ctx, key, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
