package anthropic

import (
	"fmt"

	"github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/config"
)

// NewProviderFromConfig creates a provider from loaded configuration.
// A capabilities_file is layered over the embedded capabilities in a
// registry private to the provider. Options passed here take precedence.
func NewProviderFromConfig(cfg config.Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &llmprovider.ValidationError{
			Field:  "config",
			Reason: err.Error(),
			Err:    llmprovider.ErrInvalidRequest,
		}
	}

	if cfg.CapabilitiesFile != "" {
		registry, err := llmprovider.NewDefaultCapabilityRegistry()
		if err != nil {
			return nil, fmt.Errorf("load embedded capabilities: %w", err)
		}
		if err := registry.LoadCapabilitiesFromFile(cfg.CapabilitiesFile); err != nil {
			return nil, err
		}
		opts = append([]Option{WithCapabilityRegistry(registry)}, opts...)
	}

	return NewProvider(Config{
		Mode:       Mode(cfg.Provider.Mode),
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		Profile:    cfg.Provider.Profile,
		Region:     cfg.Provider.Region,
		MaxRetries: cfg.Provider.MaxRetries,
		Cache:      cfg.Cache,
	}, opts...)
}
