package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/meridian-claude-go"
)

// eventSource is a pull-based sequence of wire events.
// *ssestream.Stream[anthropic.MessageStreamEventUnion] satisfies it.
type eventSource interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// streamDecoder turns Anthropic stream events into message deltas.
// One decoder belongs to one response stream; it is not shared.
//
// Anthropic stream events include:
//   - message_start, message_delta, message_stop: envelope, ignored
//   - content_block_start: opens a block (text, thinking, tool_use, redacted_thinking)
//   - content_block_delta: text_delta, input_json_delta, thinking_delta, signature_delta
//   - content_block_stop: closes the current block
type streamDecoder struct {
	// Tool call currently receiving input_json_delta fragments
	lastToolUseID   string
	lastToolUseName string
}

// step consumes one event. It returns a delta and true when the event carries
// something for the caller.
func (d *streamDecoder) step(event anthropic.MessageStreamEventUnion) (llmprovider.Message, bool, error) {
	switch event.Type {
	case "content_block_start":
		switch event.ContentBlock.Type {
		case "tool_use":
			// Arguments arrive in the following input_json_delta events
			d.lastToolUseID = event.ContentBlock.ID
			d.lastToolUseName = event.ContentBlock.Name
		case "redacted_thinking":
			return llmprovider.Message{
				Role:             llmprovider.RoleThinking,
				RedactedThinking: event.ContentBlock.Data,
			}, true, nil
		}

	case "content_block_delta":
		return d.stepDelta(event)

	case "content_block_stop":
		d.lastToolUseID = ""
		d.lastToolUseName = ""
	}

	return llmprovider.Message{}, false, nil
}

func (d *streamDecoder) stepDelta(event anthropic.MessageStreamEventUnion) (llmprovider.Message, bool, error) {
	switch event.Delta.Type {
	case "text_delta":
		return llmprovider.NewTextMessage(llmprovider.RoleAssistant, event.Delta.Text), true, nil

	case "input_json_delta":
		if d.lastToolUseID == "" || d.lastToolUseName == "" {
			return llmprovider.Message{}, false, &llmprovider.ProtocolError{
				Event:  event.Type,
				Reason: "no tool use in progress",
			}
		}
		return llmprovider.Message{
			Role: llmprovider.RoleAssistant,
			ToolCalls: []llmprovider.ToolCall{{
				ID:        d.lastToolUseID,
				Name:      d.lastToolUseName,
				Arguments: event.Delta.PartialJSON,
			}},
		}, true, nil

	case "thinking_delta":
		return llmprovider.NewTextMessage(llmprovider.RoleThinking, event.Delta.Thinking), true, nil

	case "signature_delta":
		return llmprovider.Message{
			Role:      llmprovider.RoleThinking,
			Signature: event.Delta.Signature,
		}, true, nil
	}

	return llmprovider.Message{}, false, nil
}

// decodeStream lazily decodes source into message deltas, one per meaningful
// event. The returned stream owns source and closes it when done.
func decodeStream(ctx context.Context, mode Mode, source eventSource) *llmprovider.Stream[llmprovider.Message] {
	decoder := &streamDecoder{}

	return llmprovider.NewStream(func() (llmprovider.Message, bool, error) {
		for {
			if err := ctx.Err(); err != nil {
				return llmprovider.Message{}, false, wrapTransportError(mode, err)
			}

			if !source.Next() {
				if err := source.Err(); err != nil {
					return llmprovider.Message{}, false, wrapTransportError(mode, err)
				}
				return llmprovider.Message{}, false, nil
			}

			msg, ok, err := decoder.step(source.Current())
			if err != nil {
				return llmprovider.Message{}, false, err
			}
			if ok {
				return msg, true, nil
			}
		}
	}, source.Close)
}

// decodeResponse converts a non-streaming response. Only the first content
// block's text is kept.
func decodeResponse(message *anthropic.Message) []llmprovider.Message {
	if message == nil || len(message.Content) == 0 {
		return nil
	}

	first := message.Content[0]
	if first.Text == "" {
		return nil
	}

	return []llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleAssistant, first.Text)}
}

// wrapTransportError converts a network client failure into a *llmprovider.TransportError.
// Errors that already are transport errors pass through.
func wrapTransportError(mode Mode, err error) error {
	var transportErr *llmprovider.TransportError
	if errors.As(err, &transportErr) {
		return err
	}

	wrapped := &llmprovider.TransportError{
		Mode:    string(mode),
		Message: err.Error(),
		Err:     err,
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		wrapped.StatusCode = apiErr.StatusCode
	}

	return wrapped
}
