package anthropic

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
)

// Mode selects the network client used for requests.
type Mode string

const (
	ModeDirect  Mode = "direct"  // Anthropic API with an API key
	ModeBedrock Mode = "bedrock" // Amazon Bedrock with AWS credentials
)

// IsValid returns true for a known transport mode
func (m Mode) IsValid() bool {
	return m == ModeDirect || m == ModeBedrock
}

// transport issues one request through a concrete network client.
type transport interface {
	send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
	stream(ctx context.Context, params anthropic.MessageNewParams) eventSource
}

// sdkTransport adapts the SDK client. The same client type serves both modes;
// Bedrock differs only in request options.
type sdkTransport struct {
	client anthropic.Client
}

func (t *sdkTransport) send(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return t.client.Messages.New(ctx, params)
}

func (t *sdkTransport) stream(ctx context.Context, params anthropic.MessageNewParams) eventSource {
	return t.client.Messages.NewStreaming(ctx, params)
}

// clientSelector lazily builds one transport and reuses it.
// Concurrent first calls build once. A failed build is not remembered, so the
// next call tries again.
type clientSelector struct {
	mu     sync.Mutex
	client transport
	build  func(ctx context.Context) (transport, error)
}

func (s *clientSelector) get(ctx context.Context) (transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// newDirectTransport builds the Anthropic API client.
func newDirectTransport(cfg Config, extra []option.RequestOption) transport {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &sdkTransport{client: anthropic.NewClient(opts...)}
}

// newBedrockTransport builds a Bedrock client. The client outlives any single
// set of temporary credentials, so creds must refresh itself on expiry.
func newBedrockTransport(cfg Config, creds aws.CredentialsProvider, extra []option.RequestOption) (transport, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock transport requires a region")
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: creds,
	}

	opts := []option.RequestOption{
		bedrock.WithConfig(awsCfg),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	// After WithConfig so it overrides the regional endpoint
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	return &sdkTransport{client: anthropic.NewClient(opts...)}, nil
}
