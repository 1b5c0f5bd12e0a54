package anthropic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/meridian-claude-go"
)

func conversation() []llmprovider.Message {
	return []llmprovider.Message{
		llmprovider.NewTextMessage(llmprovider.RoleSystem, "You are terse."),
		llmprovider.NewTextMessage(llmprovider.RoleAssistant, "How can I help?"),
		llmprovider.NewTextMessage(llmprovider.RoleUser, "first"),
		llmprovider.NewTextMessage(llmprovider.RoleAssistant, "one"),
		llmprovider.NewTextMessage(llmprovider.RoleUser, ""),
		llmprovider.NewTextMessage(llmprovider.RoleUser, "second"),
		llmprovider.NewTextMessage(llmprovider.RoleAssistant, "two"),
		llmprovider.NewTextMessage(llmprovider.RoleUser, "third"),
	}
}

func TestConvertMessages_DropsSystemAndEmpty(t *testing.T) {
	messages := conversation()

	converted, err := convertMessages(messages, llmprovider.CacheBehavior{})
	require.NoError(t, err)

	want := 0
	for _, msg := range messages {
		if msg.Role != llmprovider.RoleSystem && !msg.IsEmpty() {
			want++
		}
	}
	assert.Len(t, converted, want)
	assert.Len(t, converted, 6)
}

func TestConvertMessages_CachesLastTwoUserTurns(t *testing.T) {
	converted, err := convertMessages(conversation(), llmprovider.CacheBehavior{CacheConversation: true})
	require.NoError(t, err)

	var cached []int
	for i, msg := range converted {
		if wire(t, msg).Get("content.0.cache_control.type").String() == "ephemeral" {
			cached = append(cached, i+1)
			assert.Equal(t, "user", string(msg.Role))
		}
	}
	// 4th and 6th filtered messages are the last two user turns
	assert.Equal(t, []int{4, 6}, cached)
}

func TestConvertMessages_NoCachingWhenDisabled(t *testing.T) {
	converted, err := convertMessages(conversation(), llmprovider.CacheBehavior{CacheSystemMessage: true})
	require.NoError(t, err)

	for _, msg := range converted {
		assert.False(t, wire(t, msg).Get("content.0.cache_control").Exists())
	}
}

func TestConvertMessages_SingleUserTurnCached(t *testing.T) {
	messages := []llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "only")}

	converted, err := convertMessages(messages, llmprovider.CacheBehavior{CacheConversation: true})
	require.NoError(t, err)
	require.Len(t, converted, 1)
	assert.Equal(t, "ephemeral", wire(t, converted[0]).Get("content.0.cache_control.type").String())
}

func TestConvertMessages_ReportsMessageIndex(t *testing.T) {
	messages := []llmprovider.Message{
		llmprovider.NewTextMessage(llmprovider.RoleSystem, "sys"),
		llmprovider.NewTextMessage(llmprovider.RoleUser, "call it"),
		{
			Role:      llmprovider.RoleAssistant,
			ToolCalls: []llmprovider.ToolCall{{ID: "tu_1", Name: "search", Arguments: "{"}},
		},
	}

	_, err := convertMessages(messages, llmprovider.CacheBehavior{})
	var encErr *llmprovider.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 2, encErr.MessageIndex)
	assert.Equal(t, "tu_1", encErr.ToolCallID)
}

func TestConvertMessage_ToolResult(t *testing.T) {
	msg := llmprovider.Message{
		Role:       llmprovider.RoleTool,
		ToolCallID: "tu_1",
		Content: llmprovider.PartsContent(
			llmprovider.TextPart{Text: "line one"},
			llmprovider.TextPart{Text: "line two"},
		),
	}

	param, err := convertMessage(msg, true)
	require.NoError(t, err)

	doc := wire(t, param)
	assert.Equal(t, "user", doc.Get("role").String())
	assert.Equal(t, "tool_result", doc.Get("content.0.type").String())
	assert.Equal(t, "tu_1", doc.Get("content.0.tool_use_id").String())
	assert.Equal(t, "line one\nline two", doc.Get("content.0.content.0.text").String())
	assert.False(t, doc.Get("content.0.cache_control").Exists())
}

func TestConvertMessage_EmptyToolResultOmitsBody(t *testing.T) {
	msg := llmprovider.Message{Role: llmprovider.RoleTool, ToolCallID: "tu_1", Content: llmprovider.PartsContent()}

	param, err := convertMessage(msg, false)
	require.NoError(t, err)
	assert.False(t, wire(t, param).Get("content.0.content").Exists())
}

func TestConvertMessage_ToolResultRequiresID(t *testing.T) {
	_, err := convertMessage(llmprovider.NewTextMessage(llmprovider.RoleTool, "ok"), false)
	assert.True(t, llmprovider.IsInvalidRequest(err))
}

func TestConvertMessage_ToolCalls(t *testing.T) {
	msg := llmprovider.Message{
		Role: llmprovider.RoleAssistant,
		ToolCalls: []llmprovider.ToolCall{
			{ID: "tu_1", Name: "search", Arguments: `{"query":"go generics","limit":3}`},
			{ID: "tu_2", Name: "now", Arguments: ""},
		},
	}

	param, err := convertMessage(msg, false)
	require.NoError(t, err)

	doc := wire(t, param)
	assert.Equal(t, "assistant", doc.Get("role").String())
	assert.Equal(t, "tool_use", doc.Get("content.0.type").String())
	assert.Equal(t, "tu_1", doc.Get("content.0.id").String())
	assert.Equal(t, "search", doc.Get("content.0.name").String())
	assert.Equal(t, "go generics", doc.Get("content.0.input.query").String())
	assert.Equal(t, int64(3), doc.Get("content.0.input.limit").Int())
	assert.JSONEq(t, `{}`, doc.Get("content.1.input").Raw)
}

func TestConvertMessage_MalformedArguments(t *testing.T) {
	msg := llmprovider.Message{
		Role:      llmprovider.RoleAssistant,
		ToolCalls: []llmprovider.ToolCall{{ID: "tu_1", Name: "search", Arguments: "{"}},
	}

	_, err := convertMessage(msg, false)

	var encErr *llmprovider.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.True(t, errors.Is(err, llmprovider.ErrMalformedArguments))
	assert.False(t, llmprovider.IsRetryable(err))
}

func TestConvertMessage_Thinking(t *testing.T) {
	thinking := llmprovider.Message{
		Role:      llmprovider.RoleThinking,
		Content:   llmprovider.TextContent("Let me reason."),
		Signature: "sig",
	}
	doc := wire(t, mustConvert(t, thinking, false))
	assert.Equal(t, "assistant", doc.Get("role").String())
	assert.Equal(t, "thinking", doc.Get("content.0.type").String())
	assert.Equal(t, "Let me reason.", doc.Get("content.0.thinking").String())
	assert.Equal(t, "sig", doc.Get("content.0.signature").String())

	redacted := llmprovider.Message{Role: llmprovider.RoleThinking, RedactedThinking: "opaque"}
	doc = wire(t, mustConvert(t, redacted, false))
	assert.Equal(t, "assistant", doc.Get("role").String())
	assert.Equal(t, "redacted_thinking", doc.Get("content.0.type").String())
	assert.Equal(t, "opaque", doc.Get("content.0.data").String())
	assert.False(t, doc.Get("content.0.thinking").Exists())
}

func TestConvertMessage_PlainText(t *testing.T) {
	doc := wire(t, mustConvert(t, llmprovider.NewTextMessage(llmprovider.RoleUser, "hello"), true))
	assert.Equal(t, "user", doc.Get("role").String())
	assert.Equal(t, "text", doc.Get("content.0.type").String())
	assert.Equal(t, "hello", doc.Get("content.0.text").String())
	assert.Equal(t, "ephemeral", doc.Get("content.0.cache_control.type").String())

	doc = wire(t, mustConvert(t, llmprovider.NewTextMessage(llmprovider.RoleAssistant, "hi"), false))
	assert.Equal(t, "assistant", doc.Get("role").String())
	assert.False(t, doc.Get("content.0.cache_control").Exists())
}

func TestConvertMessage_StructuredCachesLastTextPartOnly(t *testing.T) {
	msg := llmprovider.Message{
		Role: llmprovider.RoleUser,
		Content: llmprovider.PartsContent(
			llmprovider.TextPart{Text: "look at this"},
			llmprovider.TextPart{Text: "and this"},
			llmprovider.ImagePart{URL: "data:image/png;base64,iVBORw0KGgo="},
		),
	}

	doc := wire(t, mustConvert(t, msg, true))
	parts := doc.Get("content").Array()
	require.Len(t, parts, 3)

	assert.False(t, parts[0].Get("cache_control").Exists())
	assert.Equal(t, "ephemeral", parts[1].Get("cache_control.type").String())
	assert.False(t, parts[2].Get("cache_control").Exists())

	assert.Equal(t, "image", parts[2].Get("type").String())
	assert.Equal(t, "base64", parts[2].Get("source.type").String())
	assert.Equal(t, "iVBORw0KGgo=", parts[2].Get("source.data").String())
	assert.Equal(t, "image/png", parts[2].Get("source.media_type").String())
}

func TestConvertImage(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		mediaType string
		data      string
		sourceURL string
		wantErr   bool
	}{
		{name: "jpeg data url", url: "data:image/jpeg;base64,/9j/4AAQ", mediaType: "image/jpeg", data: "/9j/4AAQ"},
		{name: "webp data url", url: "data:image/webp;base64,UklGR", mediaType: "image/webp", data: "UklGR"},
		{name: "unsupported mime falls back to jpeg", url: "data:image/bmp;base64,Qk0=", mediaType: "image/jpeg", data: "Qk0="},
		{name: "payload after first comma", url: "data:image/gif;base64,R0lG,ODlh", mediaType: "image/gif", data: "R0lG,ODlh"},
		{name: "https url", url: "https://example.com/cat.png", sourceURL: "https://example.com/cat.png"},
		{name: "data url without payload", url: "data:image/png;base64", wantErr: true},
		{name: "file path", url: "/tmp/cat.png", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := convertImage(llmprovider.ImagePart{URL: tt.url})
			if tt.wantErr {
				require.ErrorIs(t, err, llmprovider.ErrUnsupportedContent)
				return
			}
			require.NoError(t, err)

			doc := wire(t, block)
			if tt.sourceURL != "" {
				assert.Equal(t, "url", doc.Get("source.type").String())
				assert.Equal(t, tt.sourceURL, doc.Get("source.url").String())
				return
			}
			assert.Equal(t, tt.mediaType, doc.Get("source.media_type").String())
			assert.Equal(t, tt.data, doc.Get("source.data").String())
		})
	}
}

func mustConvert(t *testing.T, msg llmprovider.Message, addCaching bool) any {
	t.Helper()
	param, err := convertMessage(msg, addCaching)
	require.NoError(t, err)
	return param
}
