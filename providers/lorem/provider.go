package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/haowjy/meridian-claude-go"
)

// mockSignature stands in for an Anthropic thinking signature.
const mockSignature = "4k_a"

// wordsPerBlock is the size of each generated text or thinking block.
const wordsPerBlock = 20

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
// It emits the same delta shapes as the Claude decoder: assistant text,
// thinking text followed by a signature, and tool-call argument fragments.
// It is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex // guards generator
	generator *loremgen.Lorem
	logger    *slog.Logger
	delay     *time.Duration // overrides the per-model delay when set
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDelay fixes the delay between streamed words for every model.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.delay = &d
	}
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		generator: loremgen.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderLorem
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-cutoff"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second (500ms per word)
// - lorem-fast: 30 words/second (33ms per word)
// - lorem-medium: 10 words/second (100ms per word)
// - lorem-instant: no delay
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "instant"):
		return 0
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// isCutoffModel returns true if the model should simulate a max_tokens cutoff
// in the middle of a text block.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff") || strings.Contains(model, "small")
}

// StreamChat generates a lorem ipsum reply.
//
// Blocks rotate text → thinking (when Reasoning is set) → tool call (when
// Tools are set) until MaxTokens words have been produced. With Stream
// disabled the deltas are merged and returned as whole messages.
func (p *Provider) StreamChat(ctx context.Context, messages []llmprovider.Message, opts llmprovider.CompletionOptions) (*llmprovider.Stream[llmprovider.Message], error) {
	if !p.SupportsModel(opts.Model) {
		return nil, &llmprovider.ModelError{
			Model:    opts.Model,
			Provider: p.Name().String(),
			Reason:   "model not supported by Lorem provider (must start with 'lorem-')",
			Err:      llmprovider.ErrInvalidModel,
		}
	}
	if err := llmprovider.ValidateOptions(&opts); err != nil {
		return nil, err
	}

	deltas := p.script(opts)
	p.logger.Debug("lorem reply generated",
		"model", opts.Model,
		"input_words", estimateWords(messages),
		"deltas", len(deltas),
		"thinking", opts.Reasoning,
		"tools", len(opts.Tools))

	if !opts.IsStreaming() {
		return llmprovider.SliceStream(llmprovider.MergeDeltas(deltas)), nil
	}

	delay := getStreamDelay(opts.Model)
	if p.delay != nil {
		delay = *p.delay
	}
	return replay(ctx, deltas, delay), nil
}

// StreamComplete sends prompt as a single user message and yields the text of each delta.
func (p *Provider) StreamComplete(ctx context.Context, prompt string, opts llmprovider.CompletionOptions) (*llmprovider.Stream[string], error) {
	messages := []llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, prompt)}

	stream, err := p.StreamChat(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	return llmprovider.MapStream(stream, llmprovider.RenderChatMessage), nil
}

// replay yields deltas one at a time, waiting delay before each.
// Cancelling ctx ends the stream with ctx.Err().
func replay(ctx context.Context, deltas []llmprovider.Message, delay time.Duration) *llmprovider.Stream[llmprovider.Message] {
	i := 0
	return llmprovider.NewStream(func() (llmprovider.Message, bool, error) {
		if i >= len(deltas) {
			return llmprovider.Message{}, false, nil
		}
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return llmprovider.Message{}, false, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return llmprovider.Message{}, false, err
		}

		msg := deltas[i]
		i++
		return msg, true, nil
	}, nil)
}

// script builds every delta of the reply up front.
func (p *Provider) script(opts llmprovider.CompletionOptions) []llmprovider.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	budget := opts.GetMaxTokens(llmprovider.DefaultMaxTokens)
	cutoff := isCutoffModel(opts.Model)

	var deltas []llmprovider.Message
	used := 0
	toolIndex := 0

	for block := 0; used < budget; block++ {
		remaining := budget - used

		switch block % 3 {
		case 0:
			words := p.words(min(wordsPerBlock, remaining))
			if cutoff {
				// Stop halfway through the block, as if max_tokens was hit
				words = words[:max(1, len(words)/2)]
				used = budget
			}
			for _, w := range words {
				deltas = append(deltas, llmprovider.NewTextMessage(llmprovider.RoleAssistant, w+" "))
			}
			used += len(words)

		case 1:
			if !opts.Reasoning {
				continue
			}
			words := p.words(min(wordsPerBlock, remaining))
			for _, w := range words {
				deltas = append(deltas, llmprovider.NewTextMessage(llmprovider.RoleThinking, w+" "))
			}
			// The signature arrives after the thinking text
			deltas = append(deltas, llmprovider.Message{Role: llmprovider.RoleThinking, Signature: mockSignature})
			used += len(words)

		case 2:
			if len(opts.Tools) == 0 {
				continue
			}
			tool := opts.Tools[toolIndex%len(opts.Tools)]
			fragments := p.toolCallFragments(tool, block)
			deltas = append(deltas, fragments...)
			used += len(fragments)
			toolIndex++
		}
	}

	return deltas
}

// words returns n lorem ipsum words. Callers hold p.mu.
func (p *Provider) words(n int) []string {
	var words []string
	for len(words) < n {
		words = append(words, strings.Fields(p.generator.Sentence(5, 15))...)
	}
	return words[:n]
}

// toolCallFragments builds mock arguments for tool from its parameter schema
// and splits the JSON into small argument fragments.
func (p *Provider) toolCallFragments(tool llmprovider.Tool, block int) []llmprovider.Message {
	id := fmt.Sprintf("toolu_%s_%d", tool.Function.Name, block)

	args, err := json.Marshal(p.mockArguments(tool.Function.Parameters))
	if err != nil {
		args = []byte("{}")
	}

	const fragmentSize = 8
	var fragments []llmprovider.Message
	for start := 0; start < len(args); start += fragmentSize {
		end := min(start+fragmentSize, len(args))
		fragments = append(fragments, llmprovider.Message{
			Role: llmprovider.RoleAssistant,
			ToolCalls: []llmprovider.ToolCall{{
				ID:        id,
				Name:      tool.Function.Name,
				Arguments: string(args[start:end]),
			}},
		})
	}
	return fragments
}

// mockArguments fills every property of a JSON schema with a plausible value.
func (p *Provider) mockArguments(schema map[string]interface{}) map[string]interface{} {
	args := map[string]interface{}{}

	properties, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := properties[name].(map[string]interface{})
		propType, _ := prop["type"].(string)

		switch propType {
		case "integer", "number":
			args[name] = 3
		case "boolean":
			args[name] = true
		case "array":
			args[name] = p.words(2)
		case "object":
			args[name] = p.mockArguments(prop)
		default:
			args[name] = p.words(1)[0]
		}
	}
	return args
}

// estimateWords counts the words of a conversation as a rough token estimate.
func estimateWords(messages []llmprovider.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(strings.Fields(llmprovider.RenderChatMessage(msg)))
	}
	return total
}
