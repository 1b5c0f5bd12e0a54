package llmprovider

import "strings"

// Role identifies who produced a message.
type Role string

// Message roles
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"     // Result of a client-executed tool call
	RoleThinking  Role = "thinking" // Extended thinking emitted by the model
)

// ContentPart is one element of structured message content.
// The set of implementations is closed: TextPart and ImagePart.
type ContentPart interface {
	isContentPart()
}

// TextPart is a plain text content part.
type TextPart struct {
	Text string
}

// ImagePart references an image by URL.
// Data URLs ("data:image/png;base64,...") are sent inline; http(s) URLs are
// passed through as URL image sources.
type ImagePart struct {
	URL string
}

func (TextPart) isContentPart()  {}
func (ImagePart) isContentPart() {}

// Content is either a plain string or an ordered list of parts.
// A nil Parts slice means the content is the plain string in Text.
type Content struct {
	Text  string
	Parts []ContentPart
}

// TextContent returns plain string content.
func TextContent(text string) Content {
	return Content{Text: text}
}

// PartsContent returns structured content made of the given parts.
func PartsContent(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsStructured reports whether the content is a list of parts.
func (c Content) IsStructured() bool {
	return c.Parts != nil
}

// IsEmpty reports whether there is nothing to send.
func (c Content) IsEmpty() bool {
	if c.IsStructured() {
		return len(c.Parts) == 0
	}
	return c.Text == ""
}

// HasImages reports whether any part is an image.
func (c Content) HasImages() bool {
	for _, part := range c.Parts {
		if _, ok := part.(ImagePart); ok {
			return true
		}
	}
	return false
}

// ToolCall is a tool invocation requested by the assistant.
//
// Arguments holds the raw JSON object text. When produced by a streaming
// decoder it is a fragment that must be concatenated with the following
// fragments for the same ID before it parses.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one turn (or one streamed delta of a turn) in a conversation.
//
// Which optional fields apply depends on Role:
//   - tool: ToolCallID is required
//   - assistant: ToolCalls may be set
//   - thinking: either RedactedThinking, or Content plus an optional Signature
type Message struct {
	Role    Role
	Content Content

	ToolCallID string
	ToolCalls  []ToolCall

	RedactedThinking string
	Signature        string
}

// NewTextMessage builds a message with plain string content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// IsEmpty reports whether a message carries nothing worth sending.
// Tool calls and redacted thinking payloads count as content.
func (m Message) IsEmpty() bool {
	return m.Content.IsEmpty() && len(m.ToolCalls) == 0 && m.RedactedThinking == ""
}

// RenderChatMessage linearizes a message's content to text.
// Structured content renders as its text parts joined by newlines; images are dropped.
func RenderChatMessage(m Message) string {
	return renderContent(m.Content)
}

func renderContent(c Content) string {
	if !c.IsStructured() {
		return c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if text, ok := part.(TextPart); ok {
			texts = append(texts, text.Text)
		}
	}
	return strings.Join(texts, "\n")
}
