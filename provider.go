package llmprovider

import (
	"context"
)

// Provider defines the interface that chat providers implement.
//
// Types used by this interface:
//   - Message, Content: defined in types.go
//   - CompletionOptions: defined in params.go
//   - Stream: defined in streaming.go
type Provider interface {
	// StreamChat sends a conversation and returns a lazy stream of decoded
	// message deltas. Each yielded Message is a delta of one turn; callers
	// concatenate consecutive deltas (see MergeDeltas).
	//
	// Cancelling ctx aborts the in-flight request and ends the stream with a
	// *TransportError.
	StreamChat(ctx context.Context, messages []Message, opts CompletionOptions) (*Stream[Message], error)

	// StreamComplete sends a single user prompt and returns the rendered text
	// of every yielded delta.
	StreamComplete(ctx context.Context, prompt string, opts CompletionOptions) (*Stream[string], error)

	// Name returns the provider identifier
	Name() ProviderID

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool
}
