package llmprovider

import (
	"strings"
)

// DefaultMaxTokens is used when CompletionOptions.MaxTokens is not set.
const DefaultMaxTokens = 2048

// CompletionOptions holds per-request generation settings.
// Pointer fields distinguish "not set" from "set to zero value".
type CompletionOptions struct {
	// Model is the provider model identifier (e.g., "claude-sonnet-4-5-20250929")
	Model string `json:"model" yaml:"model"`

	// MaxTokens sets the maximum number of tokens to generate (default 2048)
	MaxTokens *int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0)
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	// TopK limits sampling to top K tokens
	TopK *int `json:"top_k,omitempty" yaml:"top_k,omitempty"`

	// Stop sequences. Blank entries are discarded before transmission.
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`

	// Stream selects the streaming endpoint (default true)
	Stream *bool `json:"stream,omitempty" yaml:"stream,omitempty"`

	// ===== Tools =====

	// Tools available for the model to call
	Tools []Tool `json:"tools,omitempty" yaml:"tools,omitempty"`

	// ToolChoice controls whether/which tools to use (nil lets the model decide)
	ToolChoice *ToolChoice `json:"tool_choice,omitempty" yaml:"tool_choice,omitempty"`

	// ===== Extended thinking =====

	// Reasoning enables extended thinking
	Reasoning bool `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// ReasoningBudgetTokens is the thinking token budget
	ReasoningBudgetTokens int `json:"reasoning_budget_tokens,omitempty" yaml:"reasoning_budget_tokens,omitempty"`

	// ReasoningEffort ("low", "medium", "high") is converted to a budget
	// through the capability registry when ReasoningBudgetTokens is zero.
	ReasoningEffort string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`
}

// CacheBehavior configures prompt caching annotations.
// It is owned by the caller and only read by encoders.
type CacheBehavior struct {
	// CacheConversation marks the last two user turns as cache breakpoints
	CacheConversation bool `json:"cache_conversation" yaml:"conversation"`

	// CacheSystemMessage marks the system prompt as a cache breakpoint
	CacheSystemMessage bool `json:"cache_system_message" yaml:"system_message"`
}

// GetMaxTokens returns max_tokens with default fallback
func (o *CompletionOptions) GetMaxTokens(defaultValue int) int {
	if o.MaxTokens != nil {
		return *o.MaxTokens
	}
	return defaultValue
}

// IsStreaming returns whether the streaming endpoint should be used (default true).
func (o *CompletionOptions) IsStreaming() bool {
	if o.Stream != nil {
		return *o.Stream
	}
	return true
}

// StopSequences returns Stop without blank entries.
func (o *CompletionOptions) StopSequences() []string {
	var stops []string
	for _, s := range o.Stop {
		if strings.TrimSpace(s) == "" {
			continue
		}
		stops = append(stops, s)
	}
	return stops
}

// ValidateOptions checks parameter ranges.
// It returns a *ValidationError wrapping ErrInvalidRequest for the first bad field.
func ValidateOptions(o *CompletionOptions) error {
	if o == nil {
		return nil
	}

	if o.Temperature != nil && (*o.Temperature < 0.0 || *o.Temperature > 1.0) {
		return invalidField("temperature", *o.Temperature, "must be between 0.0 and 1.0")
	}

	if o.TopP != nil && (*o.TopP < 0.0 || *o.TopP > 1.0) {
		return invalidField("top_p", *o.TopP, "must be between 0.0 and 1.0")
	}

	if o.TopK != nil && *o.TopK < 0 {
		return invalidField("top_k", *o.TopK, "must be non-negative")
	}

	if o.MaxTokens != nil && *o.MaxTokens < 1 {
		return invalidField("max_tokens", *o.MaxTokens, "must be positive")
	}

	if o.Reasoning && o.ReasoningBudgetTokens < 0 {
		return invalidField("reasoning_budget_tokens", o.ReasoningBudgetTokens, "must be non-negative")
	}

	if o.ReasoningEffort != "" {
		switch o.ReasoningEffort {
		case "low", "medium", "high":
		default:
			return invalidField("reasoning_effort", o.ReasoningEffort, "must be 'low', 'medium', or 'high'")
		}
	}

	for i := range o.Tools {
		if err := o.Tools[i].Validate(); err != nil {
			return invalidField("tools", o.Tools[i].Function.Name, err.Error())
		}
	}

	if o.ToolChoice != nil {
		if err := o.ToolChoice.Validate(); err != nil {
			return invalidField("tool_choice", o.ToolChoice.Mode, err.Error())
		}
	}

	return nil
}

func invalidField(field string, value any, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
		Err:    ErrInvalidRequest,
	}
}

// Ptr returns a pointer to v. Handy for optional CompletionOptions fields.
func Ptr[T any](v T) *T {
	return &v
}
