package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haowjy/meridian-claude-go"
)

// Config holds everything needed to reach Claude through one transport.
type Config struct {
	// Mode selects the direct API or Bedrock (default direct)
	Mode Mode

	// APIKey authenticates direct mode
	APIKey string

	// BaseURL overrides the API endpoint (optional, both modes)
	BaseURL string

	// Profile is the AWS profile for Bedrock; empty means the default profile
	Profile string

	// Region is the AWS region for Bedrock
	Region string

	// MaxRetries is passed to the SDK client. This package never retries on its own.
	MaxRetries int

	// Cache controls prompt caching annotations
	Cache llmprovider.CacheBehavior
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

// WithCredentialProvider replaces the AWS credential lookup used in Bedrock mode.
func WithCredentialProvider(credentials CredentialProvider) Option {
	return func(p *Provider) {
		p.credentials = credentials
	}
}

// WithCapabilityRegistry replaces the global capability registry.
func WithCapabilityRegistry(registry *llmprovider.CapabilityRegistry) Option {
	return func(p *Provider) {
		p.capabilities = registry
	}
}

// WithRequestOptions appends SDK request options to the client (e.g. a custom HTTP client).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) {
		p.requestOptions = append(p.requestOptions, opts...)
	}
}

// Provider implements the llmprovider.Provider interface for Anthropic (Claude) models.
type Provider struct {
	config         Config
	logger         *slog.Logger
	credentials    CredentialProvider
	capabilities   *llmprovider.CapabilityRegistry
	validator      *llmprovider.ValidationEngine
	requestOptions []option.RequestOption
	selector       *clientSelector
}

// NewProvider creates a Claude provider. The network client is built on first use.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDirect
	}

	switch cfg.Mode {
	case ModeDirect:
		if cfg.APIKey == "" {
			return nil, llmprovider.ErrInvalidAPIKey
		}
	case ModeBedrock:
		if cfg.Region == "" {
			return nil, &llmprovider.ValidationError{
				Field:  "region",
				Reason: "bedrock mode requires an AWS region",
				Err:    llmprovider.ErrInvalidRequest,
			}
		}
	default:
		return nil, &llmprovider.ValidationError{
			Field:  "mode",
			Value:  cfg.Mode,
			Reason: "must be 'direct' or 'bedrock'",
			Err:    llmprovider.ErrInvalidRequest,
		}
	}

	p := &Provider{
		config:       cfg,
		logger:       slog.Default(),
		credentials:  AWSCredentialProvider{Region: cfg.Region},
		capabilities: llmprovider.GetCapabilityRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.validator = llmprovider.NewValidationEngine(p.capabilities)
	p.selector = &clientSelector{build: p.buildTransport}

	return p, nil
}

func (p *Provider) buildTransport(ctx context.Context) (transport, error) {
	if p.config.Mode == ModeDirect {
		p.logger.Debug("creating anthropic client", "mode", p.config.Mode, "base_url", p.config.BaseURL)
		return newDirectTransport(p.config, p.requestOptions), nil
	}

	resolve := func(ctx context.Context) (Credentials, error) {
		return resolveCredentials(ctx, p.credentials, p.config.Profile, p.logger)
	}
	creds, err := resolve(ctx)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("creating bedrock client", "mode", p.config.Mode, "region", p.config.Region, "profile", p.config.Profile)
	return newBedrockTransport(p.config, credentialSource(creds, resolve), p.requestOptions)
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	if p.config.Mode == ModeBedrock {
		return llmprovider.ProviderBedrock
	}
	return llmprovider.ProviderAnthropic
}

// Mode returns the transport mode.
func (p *Provider) Mode() Mode {
	return p.config.Mode
}

// SupportsModel returns true if this provider supports the given model.
// Anthropic models start with "claude-"; Bedrock models with "anthropic.claude-",
// optionally behind a cross-region prefix.
func (p *Provider) SupportsModel(model string) bool {
	if p.config.Mode == ModeBedrock {
		return strings.HasPrefix(llmprovider.NormalizeModelID(p.Name().String(), model), "anthropic.claude-")
	}
	return strings.HasPrefix(model, "claude-")
}

// Encode builds the request StreamChat would send, without sending it.
func (p *Provider) Encode(messages []llmprovider.Message, opts llmprovider.CompletionOptions) (*Request, error) {
	if !p.SupportsModel(opts.Model) {
		return nil, &llmprovider.ModelError{
			Model:    opts.Model,
			Provider: p.Name().String(),
			Reason:   fmt.Sprintf("model not supported by %s transport", p.config.Mode),
			Err:      llmprovider.ErrInvalidModel,
		}
	}

	if err := llmprovider.ValidateOptions(&opts); err != nil {
		return nil, err
	}

	provider := p.Name().String()
	opts, err := resolveReasoningBudget(p.capabilities, provider, opts)
	if err != nil {
		return nil, err
	}

	return encode(messages, opts, p.config.Cache, p.capabilities.SupportsTools(provider, opts.Model))
}

// StreamChat sends the conversation and returns a lazy stream of message deltas.
//
// Encoding and client construction errors are returned directly. With
// Stream disabled, request failures are returned directly as well; otherwise
// they end the stream and are reported by its Err method.
func (p *Provider) StreamChat(ctx context.Context, messages []llmprovider.Message, opts llmprovider.CompletionOptions) (*llmprovider.Stream[llmprovider.Message], error) {
	req, err := p.Encode(messages, opts)
	if err != nil {
		return nil, err
	}

	p.logWarnings(ctx, messages, opts)

	client, err := p.selector.get(ctx)
	if err != nil {
		return nil, err
	}

	if !req.Stream {
		message, err := client.send(ctx, req.Params)
		if err != nil {
			return nil, wrapTransportError(p.config.Mode, err)
		}
		return llmprovider.SliceStream(decodeResponse(message)), nil
	}

	return decodeStream(ctx, p.config.Mode, client.stream(ctx, req.Params)), nil
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

// logWarnings reports validation warnings. They never block the request.
func (p *Provider) logWarnings(ctx context.Context, messages []llmprovider.Message, opts llmprovider.CompletionOptions) {
	req := &llmprovider.GenerateRequest{Messages: messages, Options: opts}

	for _, w := range p.validator.Validate(p.Name(), req) {
		level := slog.LevelWarn
		if w.Severity == llmprovider.SeverityInfo {
			level = slog.LevelInfo
		}
		p.logger.Log(ctx, level, w.Message,
			"code", w.Code,
			"field", w.Field,
			"severity", w.Severity)
	}
}
