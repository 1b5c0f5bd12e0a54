package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haowjy/meridian-claude-go"
)

// cachedUserTurns is how many trailing user turns get a cache breakpoint.
// The older one reads the previous request's cache, the newer one writes
// the cache for the next request.
const cachedUserTurns = 2

// convertMessages converts library messages to Anthropic SDK format.
//
// System messages are skipped (they go to the top-level system field, see
// buildSystemPrompt) and so are messages with nothing to send. When
// cache.CacheConversation is set, the last two user messages of the filtered
// sequence carry an ephemeral cache_control annotation.
func convertMessages(messages []llmprovider.Message, cache llmprovider.CacheBehavior) ([]anthropic.MessageParam, error) {
	type indexed struct {
		index int
		msg   llmprovider.Message
	}

	filtered := make([]indexed, 0, len(messages))
	for i, msg := range messages {
		if msg.Role == llmprovider.RoleSystem || msg.IsEmpty() {
			continue
		}
		filtered = append(filtered, indexed{index: i, msg: msg})
	}

	cached := make(map[int]bool, cachedUserTurns)
	if cache.CacheConversation {
		for i := len(filtered) - 1; i >= 0 && len(cached) < cachedUserTurns; i-- {
			if filtered[i].msg.Role == llmprovider.RoleUser {
				cached[i] = true
			}
		}
	}

	result := make([]anthropic.MessageParam, 0, len(filtered))
	for i, item := range filtered {
		param, err := convertMessage(item.msg, cached[i])
		if err != nil {
			var encErr *llmprovider.EncodingError
			if errors.As(err, &encErr) {
				encErr.MessageIndex = item.index
			}
			return nil, err
		}
		result = append(result, param)
	}

	return result, nil
}

// convertMessage converts a single message, dispatching on role and content shape.
// Errors are *llmprovider.EncodingError with MessageIndex -1; convertMessages
// fills in the position.
func convertMessage(msg llmprovider.Message, addCaching bool) (anthropic.MessageParam, error) {
	switch {
	case msg.Role == llmprovider.RoleTool:
		return convertToolResult(msg)

	case msg.Role == llmprovider.RoleAssistant && len(msg.ToolCalls) > 0:
		return convertToolCalls(msg)

	case msg.Role == llmprovider.RoleThinking:
		if msg.RedactedThinking != "" {
			return anthropic.NewAssistantMessage(anthropic.NewRedactedThinkingBlock(msg.RedactedThinking)), nil
		}
		return anthropic.NewAssistantMessage(
			anthropic.NewThinkingBlock(msg.Signature, llmprovider.RenderChatMessage(msg)),
		), nil
	}

	role, err := messageRole(msg.Role)
	if err != nil {
		return anthropic.MessageParam{}, err
	}

	if !msg.Content.IsStructured() {
		block := anthropic.NewTextBlock(msg.Content.Text)
		if addCaching {
			block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		return anthropic.MessageParam{Role: role, Content: []anthropic.ContentBlockParamUnion{block}}, nil
	}

	blocks, err := convertParts(msg.Content.Parts, addCaching)
	if err != nil {
		return anthropic.MessageParam{}, err
	}
	return anthropic.MessageParam{Role: role, Content: blocks}, nil
}

func messageRole(role llmprovider.Role) (anthropic.MessageParamRole, error) {
	switch role {
	case llmprovider.RoleUser:
		return anthropic.MessageParamRoleUser, nil
	case llmprovider.RoleAssistant:
		return anthropic.MessageParamRoleAssistant, nil
	default:
		return "", &llmprovider.EncodingError{
			MessageIndex: -1,
			Reason:       fmt.Sprintf("unsupported role %q", role),
			Err:          llmprovider.ErrUnsupportedContent,
		}
	}
}

// convertToolResult wraps a tool message in a user turn with one tool_result block.
// The body is omitted when the rendered content is empty.
func convertToolResult(msg llmprovider.Message) (anthropic.MessageParam, error) {
	if msg.ToolCallID == "" {
		return anthropic.MessageParam{}, &llmprovider.EncodingError{
			MessageIndex: -1,
			Reason:       "tool message without tool call id",
			Err:          llmprovider.ErrInvalidRequest,
		}
	}

	result := anthropic.ToolResultBlockParam{ToolUseID: msg.ToolCallID}
	if body := llmprovider.RenderChatMessage(msg); body != "" {
		result.Content = []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: body}},
		}
	}

	return anthropic.NewUserMessage(anthropic.ContentBlockParamUnion{OfToolResult: &result}), nil
}

// convertToolCalls emits one tool_use block per call with the arguments parsed
// into a structured value. An empty argument string encodes as {}.
func convertToolCalls(msg llmprovider.Message) (anthropic.MessageParam, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls))

	for _, call := range msg.ToolCalls {
		var input any = map[string]any{}
		if strings.TrimSpace(call.Arguments) != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
				return anthropic.MessageParam{}, &llmprovider.EncodingError{
					MessageIndex: -1,
					ToolCallID:   call.ID,
					Reason:       "invalid tool call arguments",
					Err:          fmt.Errorf("%w: %v", llmprovider.ErrMalformedArguments, err),
				}
			}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
	}

	return anthropic.NewAssistantMessage(blocks...), nil
}

// convertParts maps structured content. Only the last text part is cache-annotated.
func convertParts(parts []llmprovider.ContentPart, addCaching bool) ([]anthropic.ContentBlockParamUnion, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	lastText := -1

	for _, part := range parts {
		switch p := part.(type) {
		case llmprovider.TextPart:
			lastText = len(blocks)
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))

		case llmprovider.ImagePart:
			block, err := convertImage(p)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)

		default:
			return nil, &llmprovider.EncodingError{
				MessageIndex: -1,
				Reason:       fmt.Sprintf("unsupported content part %T", part),
				Err:          llmprovider.ErrUnsupportedContent,
			}
		}
	}

	if addCaching && lastText >= 0 {
		blocks[lastText].OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	return blocks, nil
}

// convertImage turns a data URL into an inline base64 image and an http(s)
// URL into a URL image source.
//
// The payload is everything after the first comma of the data URL. The
// declared media type is kept when the API accepts it, otherwise image/jpeg
// is sent.
func convertImage(img llmprovider.ImagePart) (anthropic.ContentBlockParamUnion, error) {
	switch {
	case strings.HasPrefix(img.URL, "data:"):
		header, payload, ok := strings.Cut(img.URL, ",")
		if !ok {
			return anthropic.ContentBlockParamUnion{}, &llmprovider.EncodingError{
				MessageIndex: -1,
				Reason:       "data URL without payload",
				Err:          llmprovider.ErrUnsupportedContent,
			}
		}
		return anthropic.NewImageBlockBase64(imageMediaType(header), payload), nil

	case strings.HasPrefix(img.URL, "https://"), strings.HasPrefix(img.URL, "http://"):
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}), nil

	default:
		return anthropic.ContentBlockParamUnion{}, &llmprovider.EncodingError{
			MessageIndex: -1,
			Reason:       "image URL must be a data URL or http(s) URL",
			Err:          llmprovider.ErrUnsupportedContent,
		}
	}
}

// imageMediaType extracts the MIME type from a data URL header ("data:image/png;base64").
func imageMediaType(header string) string {
	mediaType, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")

	switch anthropic.Base64ImageSourceMediaType(strings.ToLower(mediaType)) {
	case anthropic.Base64ImageSourceMediaTypeImagePNG:
		return string(anthropic.Base64ImageSourceMediaTypeImagePNG)
	case anthropic.Base64ImageSourceMediaTypeImageGIF:
		return string(anthropic.Base64ImageSourceMediaTypeImageGIF)
	case anthropic.Base64ImageSourceMediaTypeImageWebP:
		return string(anthropic.Base64ImageSourceMediaTypeImageWebP)
	default:
		return string(anthropic.Base64ImageSourceMediaTypeImageJPEG)
	}
}
