package anthropic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/haowjy/meridian-claude-go"
)

// sseBody renders wire events in text/event-stream framing.
func sseBody(events ...string) string {
	var b strings.Builder
	for _, data := range events {
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", gjson.Get(data, "type").String(), data)
	}
	return b.String()
}

// fakeAPI serves canned responses and records the last request.
type fakeAPI struct {
	server   *httptest.Server
	requests atomic.Int32

	path   atomic.Value // string
	header atomic.Value // http.Header
	body   atomic.Value // []byte
}

func newFakeAPI(t *testing.T, status int, contentType, response string) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		api.path.Store(r.URL.Path)
		api.header.Store(r.Header.Clone())
		api.body.Store(body)

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) lastBody() gjson.Result {
	body, _ := a.body.Load().([]byte)
	return gjson.ParseBytes(body)
}

func (a *fakeAPI) lastPath() string {
	path, _ := a.path.Load().(string)
	return path
}

func (a *fakeAPI) lastHeader() http.Header {
	header, _ := a.header.Load().(http.Header)
	return header
}

func newDirectProvider(t *testing.T, api *fakeAPI, cache llmprovider.CacheBehavior, opts ...Option) *Provider {
	t.Helper()
	opts = append(opts, WithRequestOptions(option.WithHTTPClient(api.server.Client())))
	provider, err := NewProvider(Config{
		APIKey:  "sk-ant-test",
		BaseURL: api.server.URL,
		Cache:   cache,
	}, opts...)
	require.NoError(t, err)
	return provider
}

var helloStream = sseBody(
	evMessageStart,
	evTextStart,
	textDelta("He"),
	`{"type":"ping"}`,
	textDelta("llo"),
	evBlockStop,
	evMessageDelta,
	evMessageStop,
)

func TestNewProvider_Validation(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, provider.Mode())
	assert.Equal(t, llmprovider.ProviderAnthropic, provider.Name())

	_, err = NewProvider(Config{})
	assert.ErrorIs(t, err, llmprovider.ErrInvalidAPIKey)
	assert.True(t, llmprovider.IsAuthError(err))

	_, err = NewProvider(Config{Mode: ModeBedrock})
	assert.True(t, llmprovider.IsInvalidRequest(err))

	_, err = NewProvider(Config{Mode: "vertex", APIKey: "sk-ant-test"})
	assert.True(t, llmprovider.IsInvalidRequest(err))

	provider, err = NewProvider(Config{Mode: ModeBedrock, Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, llmprovider.ProviderBedrock, provider.Name())
}

func TestProvider_SupportsModel(t *testing.T) {
	direct, err := NewProvider(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.True(t, direct.SupportsModel("claude-sonnet-4-5-20250929"))
	assert.False(t, direct.SupportsModel("anthropic.claude-sonnet-4-5-20250929-v1:0"))
	assert.False(t, direct.SupportsModel("gpt-4o"))

	bedrock, err := NewProvider(Config{Mode: ModeBedrock, Region: "us-east-1"})
	require.NoError(t, err)
	assert.True(t, bedrock.SupportsModel("anthropic.claude-sonnet-4-5-20250929-v1:0"))
	assert.True(t, bedrock.SupportsModel("us.anthropic.claude-sonnet-4-5-20250929-v1:0"))
	assert.False(t, bedrock.SupportsModel("claude-sonnet-4-5"))
}

func TestProvider_EncodeRejectsUnsupportedModel(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)

	_, err = provider.Encode(nil, llmprovider.CompletionOptions{Model: "gpt-4o"})
	var modelErr *llmprovider.ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.ErrorIs(t, err, llmprovider.ErrInvalidModel)
}

func TestProvider_EncodeRejectsInvalidOptions(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)

	_, err = provider.Encode(nil, llmprovider.CompletionOptions{
		Model:       "claude-haiku-4-5",
		Temperature: llmprovider.Ptr(1.5),
	})
	assert.True(t, llmprovider.IsInvalidRequest(err))
}

func TestStreamChat_Direct(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{CacheConversation: true, CacheSystemMessage: true})

	messages := []llmprovider.Message{
		llmprovider.NewTextMessage(llmprovider.RoleSystem, "Be brief."),
		llmprovider.NewTextMessage(llmprovider.RoleUser, "Say hello"),
	}
	stream, err := provider.StreamChat(context.Background(), messages, llmprovider.CompletionOptions{Model: "claude-haiku-4-5"})
	require.NoError(t, err)

	deltas, err := llmprovider.Collect(stream)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, "He", deltas[0].Content.Text)
	assert.Equal(t, "llo", deltas[1].Content.Text)

	merged := llmprovider.MergeDeltas(deltas)
	require.Len(t, merged, 1)
	assert.Equal(t, "Hello", merged[0].Content.Text)

	assert.Equal(t, "/v1/messages", api.lastPath())
	assert.Equal(t, "sk-ant-test", api.lastHeader().Get("X-Api-Key"))

	body := api.lastBody()
	assert.True(t, body.Get("stream").Bool())
	assert.Equal(t, "claude-haiku-4-5", body.Get("model").String())
	assert.Equal(t, int64(llmprovider.DefaultMaxTokens), body.Get("max_tokens").Int())
	assert.Equal(t, "Be brief.", body.Get("system.0.text").String())
	assert.Equal(t, "ephemeral", body.Get("system.0.cache_control.type").String())
	assert.Equal(t, "ephemeral", body.Get("messages.0.content.0.cache_control.type").String())
}

func TestStreamChat_NonStreaming(t *testing.T) {
	response := `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5",` +
		`"content":[{"type":"text","text":"Hi"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`
	api := newFakeAPI(t, http.StatusOK, "application/json", response)
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

	stream, err := provider.StreamChat(context.Background(),
		[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
		llmprovider.CompletionOptions{Model: "claude-haiku-4-5", Stream: llmprovider.Ptr(false)})
	require.NoError(t, err)

	messages, err := llmprovider.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, []llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleAssistant, "Hi")}, messages)
	assert.False(t, api.lastBody().Get("stream").Bool())
}

func TestStreamChat_RateLimited(t *testing.T) {
	errBody := `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`

	t.Run("streaming", func(t *testing.T) {
		api := newFakeAPI(t, http.StatusTooManyRequests, "application/json", errBody)
		provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

		stream, err := provider.StreamChat(context.Background(),
			[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
			llmprovider.CompletionOptions{Model: "claude-haiku-4-5"})
		require.NoError(t, err)

		deltas, err := llmprovider.Collect(stream)
		assert.Empty(t, deltas)

		var transportErr *llmprovider.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode)
		assert.Equal(t, "direct", transportErr.Mode)
		assert.True(t, llmprovider.IsRetryable(err))
		assert.Equal(t, int32(1), api.requests.Load())
	})

	t.Run("non-streaming", func(t *testing.T) {
		api := newFakeAPI(t, http.StatusTooManyRequests, "application/json", errBody)
		provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

		_, err := provider.StreamChat(context.Background(),
			[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
			llmprovider.CompletionOptions{Model: "claude-haiku-4-5", Stream: llmprovider.Ptr(false)})

		var transportErr *llmprovider.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode)
	})
}

func TestStreamChat_EncodingErrorSendsNothing(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

	_, err := provider.StreamChat(context.Background(), []llmprovider.Message{{
		Role:      llmprovider.RoleAssistant,
		ToolCalls: []llmprovider.ToolCall{{ID: "toolu_1", Name: "lookup", Arguments: `{"broken"`}},
	}}, llmprovider.CompletionOptions{Model: "claude-haiku-4-5"})

	assert.ErrorIs(t, err, llmprovider.ErrMalformedArguments)
	assert.Equal(t, int32(0), api.requests.Load())
}

func TestStreamChat_LogsValidationWarnings(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	logger, logs := bufferLogger()
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{}, WithLogger(logger))

	stream, err := provider.StreamChat(context.Background(),
		[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
		llmprovider.CompletionOptions{
			Model:      "claude-haiku-4-5",
			ToolChoice: llmprovider.ForceTool("lookup"),
		})
	require.NoError(t, err)
	_, err = llmprovider.Collect(stream)
	require.NoError(t, err)

	assert.Contains(t, logs.String(), string(llmprovider.WarningCodeToolChoiceWithoutTools))
}

func TestStreamComplete(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

	stream, err := provider.StreamComplete(context.Background(), "Say hello", llmprovider.CompletionOptions{Model: "claude-haiku-4-5"})
	require.NoError(t, err)

	chunks, err := llmprovider.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, chunks)

	body := api.lastBody()
	assert.Equal(t, "user", body.Get("messages.0.role").String())
	assert.Equal(t, "Say hello", body.Get("messages.0.content.0.text").String())
}

func TestStreamChat_ReusesClient(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	provider := newDirectProvider(t, api, llmprovider.CacheBehavior{})

	first, err := provider.selector.get(context.Background())
	require.NoError(t, err)

	for range 2 {
		stream, err := provider.StreamChat(context.Background(),
			[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
			llmprovider.CompletionOptions{Model: "claude-haiku-4-5"})
		require.NoError(t, err)
		_, err = llmprovider.Collect(stream)
		require.NoError(t, err)
	}

	again, err := provider.selector.get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int32(2), api.requests.Load())
}

func TestStreamChat_Bedrock(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	fake := &fakeCredentials{profiles: map[string]Credentials{
		DefaultProfile: {AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "wJalrXUtnFEMI/K7MDENG"},
	}}
	logger, logs := bufferLogger()

	provider, err := NewProvider(Config{
		Mode:    ModeBedrock,
		Region:  "us-west-2",
		Profile: "writer",
		BaseURL: api.server.URL,
	},
		WithCredentialProvider(fake),
		WithLogger(logger),
		WithRequestOptions(option.WithHTTPClient(api.server.Client())),
	)
	require.NoError(t, err)

	model := "anthropic.claude-haiku-4-5"
	stream, err := provider.StreamChat(context.Background(),
		[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Say hello")},
		llmprovider.CompletionOptions{Model: model})
	require.NoError(t, err)

	deltas, err := llmprovider.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", llmprovider.MergeDeltas(deltas)[0].Content.Text)

	assert.Equal(t, "/model/"+model+"/invoke-with-response-stream", api.lastPath())
	assert.True(t, strings.HasPrefix(api.lastHeader().Get("Authorization"), "AWS4-HMAC-SHA256"))
	assert.Contains(t, api.lastHeader().Get("Authorization"), "Credential=AKIDEXAMPLE/")
	assert.NotEmpty(t, api.lastBody().Get("anthropic_version").String())

	// The named profile was missing, so credentials came from the default
	assert.Equal(t, []string{"writer", DefaultProfile}, fake.calls)
	assert.Contains(t, logs.String(), "profile=writer")
}

func TestStreamChat_BedrockCredentialFailure(t *testing.T) {
	api := newFakeAPI(t, http.StatusOK, "text/event-stream", helloStream)
	provider, err := NewProvider(Config{Mode: ModeBedrock, Region: "us-west-2", Profile: "writer", BaseURL: api.server.URL},
		WithCredentialProvider(&fakeCredentials{}),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	_, err = provider.StreamChat(context.Background(),
		[]llmprovider.Message{llmprovider.NewTextMessage(llmprovider.RoleUser, "Hello")},
		llmprovider.CompletionOptions{Model: "anthropic.claude-haiku-4-5"})

	var credErr *llmprovider.CredentialResolutionError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, int32(0), api.requests.Load())
}
