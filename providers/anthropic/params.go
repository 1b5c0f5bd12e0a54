package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/sjson"

	"github.com/haowjy/meridian-claude-go"
)

// Request is an encoded Messages API request.
// Params is what the SDK client sends; Stream selects the endpoint.
type Request struct {
	Params anthropic.MessageNewParams
	Stream bool
}

// MarshalJSON renders the wire body, including the stream flag that the SDK
// otherwise adds per call.
func (r Request) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(r.Params)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "stream", r.Stream)
}

// Encode converts messages and options into a direct-API request.
// Options are validated the same way (*Provider).Encode validates them.
// Tool definitions are attached only when the capability registry reports
// tool support for options.Model.
func Encode(messages []llmprovider.Message, opts llmprovider.CompletionOptions, cache llmprovider.CacheBehavior) (*Request, error) {
	if err := llmprovider.ValidateOptions(&opts); err != nil {
		return nil, err
	}

	registry := llmprovider.GetCapabilityRegistry()
	provider := llmprovider.ProviderAnthropic.String()

	opts, err := resolveReasoningBudget(registry, provider, opts)
	if err != nil {
		return nil, err
	}
	return encode(messages, opts, cache, registry.SupportsTools(provider, opts.Model))
}

func encode(messages []llmprovider.Message, opts llmprovider.CompletionOptions, cache llmprovider.CacheBehavior, withTools bool) (*Request, error) {
	converted, err := convertMessages(messages, cache)
	if err != nil {
		return nil, err
	}

	params, stream, err := convertArgs(opts, withTools)
	if err != nil {
		return nil, err
	}

	params.Messages = converted
	params.System = buildSystemPrompt(messages, cache)

	return &Request{Params: params, Stream: stream}, nil
}

// convertArgs maps completion options to Anthropic request parameters and
// reports whether the streaming endpoint should be used.
func convertArgs(opts llmprovider.CompletionOptions, withTools bool) (anthropic.MessageNewParams, bool, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(opts.GetMaxTokens(llmprovider.DefaultMaxTokens)),
	}

	// Temperature
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	// Top-P
	if opts.TopP != nil {
		params.TopP = anthropic.Float(*opts.TopP)
	}

	// Top-K
	if opts.TopK != nil {
		params.TopK = anthropic.Int(int64(*opts.TopK))
	}

	// Stop sequences (blank entries dropped)
	if stops := opts.StopSequences(); len(stops) > 0 {
		params.StopSequences = stops
	}

	// Extended thinking
	if opts.Reasoning {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(opts.ReasoningBudgetTokens))
	}

	if withTools && len(opts.Tools) > 0 {
		tools, err := convertTools(opts.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, false, err
		}
		params.Tools = tools

		choice, err := convertToolChoice(opts.ToolChoice)
		if err != nil {
			return anthropic.MessageNewParams{}, false, err
		}
		if choice != nil {
			params.ToolChoice = *choice
		}
	}

	return params, opts.IsStreaming(), nil
}

// buildSystemPrompt joins all system messages into the top-level system field.
func buildSystemPrompt(messages []llmprovider.Message, cache llmprovider.CacheBehavior) []anthropic.TextBlockParam {
	var parts []string
	for _, msg := range messages {
		if msg.Role != llmprovider.RoleSystem {
			continue
		}
		if text := llmprovider.RenderChatMessage(msg); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	block := anthropic.TextBlockParam{Text: strings.Join(parts, "\n\n")}
	if cache.CacheSystemMessage {
		block.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return []anthropic.TextBlockParam{block}
}

// resolveReasoningBudget fills ReasoningBudgetTokens from ReasoningEffort
// when thinking is on and no explicit budget was given.
func resolveReasoningBudget(registry *llmprovider.CapabilityRegistry, provider string, opts llmprovider.CompletionOptions) (llmprovider.CompletionOptions, error) {
	if !opts.Reasoning || opts.ReasoningBudgetTokens > 0 || opts.ReasoningEffort == "" {
		return opts, nil
	}

	budget, err := registry.ConvertEffortToBudget(provider, opts.Model, opts.ReasoningEffort)
	if err != nil {
		return opts, &llmprovider.ValidationError{
			Field:  "reasoning_effort",
			Value:  opts.ReasoningEffort,
			Reason: err.Error(),
			Err:    llmprovider.ErrInvalidRequest,
		}
	}
	opts.ReasoningBudgetTokens = budget
	return opts, nil
}
