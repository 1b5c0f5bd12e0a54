package llmprovider

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/capabilities/*.yaml
var embeddedCapabilities embed.FS

// Capabilities Philosophy:
//
// This package provides MODEL METADATA for request shaping and warnings.
// It does NOT enforce validation - provider APIs are the source of truth.
//
// Use cases:
//   - Decide whether tool definitions are attached to a request
//   - Convert reasoning effort to a thinking budget
//   - Provide warnings (not errors)
//
// Capabilities may be outdated as providers release new models/features.
// Library users can override embedded capabilities by:
//  1. Calling LoadCapabilitiesFromFile() with custom YAML
//  2. Calling RegisterProviderCapabilities() programmatically

// bedrockGeoPrefixes are cross-region inference profile prefixes on Bedrock model IDs.
var bedrockGeoPrefixes = []string{"us.", "eu.", "apac.", "global."}

// ProviderCapabilities represents the full capability configuration for a provider
type ProviderCapabilities struct {
	Version     string                     `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string                     `yaml:"last_updated"` // ISO 8601 date (e.g., "2025-01-15")
	Provider    string                     `yaml:"provider"`
	Models      map[string]ModelCapability `yaml:"models"`
	Constraints ProviderConstraints        `yaml:"constraints"`
}

// ModelCapability represents the capabilities of a specific model
type ModelCapability struct {
	ContextWindow   int                `yaml:"context_window"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
	Features        ModelFeatures      `yaml:"features"`
	Thinking        ThinkingCapability `yaml:"thinking"`
}

// ModelFeatures indicates which features a model supports
type ModelFeatures struct {
	Vision    bool `yaml:"vision"`
	Tools     bool `yaml:"tools"`
	Thinking  bool `yaml:"thinking"`
	Streaming bool `yaml:"streaming"`
	Caching   bool `yaml:"caching"`
}

// ThinkingCapability defines thinking/reasoning constraints
type ThinkingCapability struct {
	MinBudget      int            `yaml:"min_budget"`
	MaxBudget      int            `yaml:"max_budget"`
	EffortToBudget map[string]int `yaml:"effort_to_budget"` // "low" -> 2000, etc.
}

// ProviderConstraints defines provider-wide parameter limits
type ProviderConstraints struct {
	TemperatureMin float64 `yaml:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	TopPMin        float64 `yaml:"top_p_min"`
	TopPMax        float64 `yaml:"top_p_max"`
	TopKMin        int     `yaml:"top_k_min"`
	TopKMax        int     `yaml:"top_k_max"`
}

// CapabilityRegistry manages provider capabilities
type CapabilityRegistry struct {
	capabilities map[string]*ProviderCapabilities
	logger       *slog.Logger
	mu           sync.RWMutex
}

var (
	globalRegistry     *CapabilityRegistry
	globalRegistryOnce sync.Once
)

// NewCapabilityRegistry returns an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		capabilities: make(map[string]*ProviderCapabilities),
		logger:       slog.Default(),
	}
}

// NewDefaultCapabilityRegistry returns a registry preloaded with the embedded
// capability files. Files loaded afterwards replace entries per provider.
func NewDefaultCapabilityRegistry() (*CapabilityRegistry, error) {
	registry := NewCapabilityRegistry()
	if err := registry.loadEmbeddedCapabilities(); err != nil {
		return nil, err
	}
	return registry, nil
}

// GetCapabilityRegistry returns the global capability registry (singleton)
func GetCapabilityRegistry() *CapabilityRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewCapabilityRegistry()
		if err := globalRegistry.loadEmbeddedCapabilities(); err != nil {
			// Don't panic - lookups on a missing provider just report unknown models
			globalRegistry.logger.Warn("failed to load embedded capabilities", "error", err)
		}
	})
	return globalRegistry
}

// SetLogger replaces the logger used for fallback warnings.
func (r *CapabilityRegistry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *CapabilityRegistry) loadEmbeddedCapabilities() error {
	entries, err := embeddedCapabilities.ReadDir("config/capabilities")
	if err != nil {
		return fmt.Errorf("failed to list embedded capabilities: %w", err)
	}

	for _, entry := range entries {
		data, err := embeddedCapabilities.ReadFile("config/capabilities/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if err := r.LoadCapabilities(data); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return nil
}

// LoadCapabilities parses capability YAML and registers it under its provider key.
func (r *CapabilityRegistry) LoadCapabilities(data []byte) error {
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	if caps.Provider == "" {
		return fmt.Errorf("capabilities file is missing the provider key")
	}

	r.RegisterProviderCapabilities(caps.Provider, &caps)
	return nil
}

// GetProviderCapabilities returns capabilities for a provider
func (r *CapabilityRegistry) GetProviderCapabilities(provider string) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.capabilities[provider]
	if !ok {
		return nil, fmt.Errorf("no capabilities found for provider: %s", provider)
	}
	return caps, nil
}

// GetModelCapability returns capabilities for a specific model.
//
// Lookup is exact first, then by the longest registered name that prefixes the
// model ID at a "-" boundary, so dated IDs ("claude-haiku-4-5-20251001") and
// Bedrock version suffixes ("...-v1:0") resolve to their family entry.
// Bedrock cross-region prefixes ("us.", "eu.", ...) are ignored.
func (r *CapabilityRegistry) GetModelCapability(provider, model string) (*ModelCapability, error) {
	providerCaps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return nil, err
	}

	key := NormalizeModelID(provider, model)
	if modelCap, ok := providerCaps.Models[key]; ok {
		return &modelCap, nil
	}

	best := ""
	for name := range providerCaps.Models {
		if strings.HasPrefix(key, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
	}

	modelCap := providerCaps.Models[best]
	return &modelCap, nil
}

// NormalizeModelID strips transport-specific decorations from a model ID.
func NormalizeModelID(provider, model string) string {
	if provider != string(ProviderBedrock) {
		return model
	}
	for _, prefix := range bedrockGeoPrefixes {
		if strings.HasPrefix(model, prefix) {
			return strings.TrimPrefix(model, prefix)
		}
	}
	return model
}

// SupportsModel checks if a provider supports a specific model
func (r *CapabilityRegistry) SupportsModel(provider, model string) bool {
	_, err := r.GetModelCapability(provider, model)
	return err == nil
}

// SupportsTools checks if a model supports tools
func (r *CapabilityRegistry) SupportsTools(provider, model string) bool {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return false
	}
	return modelCap.Features.Tools
}

// SupportsThinking checks if a model supports extended thinking
func (r *CapabilityRegistry) SupportsThinking(provider, model string) bool {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return false
	}
	return modelCap.Features.Thinking
}

// GetThinkingBudgetRange returns the valid thinking budget range for a model
func (r *CapabilityRegistry) GetThinkingBudgetRange(provider, model string) (min int, max int, err error) {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return 0, 0, err
	}
	return modelCap.Thinking.MinBudget, modelCap.Thinking.MaxBudget, nil
}

// ConvertEffortToBudget converts effort level to token budget
// Falls back to default budgets if model not found in registry
func (r *CapabilityRegistry) ConvertEffortToBudget(provider, model, effort string) (int, error) {
	// Default thinking budgets (used when model not in registry)
	defaultBudgets := map[string]int{
		"low":    2000,
		"medium": 5000,
		"high":   12000,
	}

	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	// Try to get model-specific budget from registry
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		// Model not in registry - use defaults
		budget, ok := defaultBudgets[effort]
		if !ok {
			return 0, fmt.Errorf("unknown effort level: %s (valid: low, medium, high)", effort)
		}
		logger.Warn("model not in capability registry, using default thinking budget",
			"provider", provider, "model", model, "budget", budget)
		return budget, nil
	}

	// Use model-specific budget if available
	budget, ok := modelCap.Thinking.EffortToBudget[effort]
	if !ok {
		// Model found but effort level not defined - use defaults
		defaultBudget, defaultOk := defaultBudgets[effort]
		if !defaultOk {
			return 0, fmt.Errorf("unknown effort level: %s (valid: low, medium, high)", effort)
		}
		logger.Warn("effort level not defined for model, using default thinking budget",
			"effort", effort, "model", model, "budget", defaultBudget)
		return defaultBudget, nil
	}
	return budget, nil
}

// LoadCapabilitiesFromFile loads provider capabilities from a YAML file.
// This allows library users to override embedded capabilities with custom data.
// The file format should match the embedded YAML structure.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}
	return r.LoadCapabilities(data)
}

// RegisterProviderCapabilities programmatically registers provider capabilities.
// This allows library users to define capabilities in code rather than YAML.
func (r *CapabilityRegistry) RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = caps
}

// LoadCapabilitiesFromFile is a convenience function that calls the global registry's LoadCapabilitiesFromFile.
func LoadCapabilitiesFromFile(path string) error {
	return GetCapabilityRegistry().LoadCapabilitiesFromFile(path)
}

// RegisterProviderCapabilities is a convenience function that calls the global registry's RegisterProviderCapabilities.
func RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	GetCapabilityRegistry().RegisterProviderCapabilities(provider, caps)
}
