package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github-trending-digest/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1760000000,
  "model": "deepseek-chat",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "{\"title\":\"Go\"}"},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
}`

func TestGenerator_Generate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer server.Close()

	g, err := NewGenerator(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, nil)
	require.NoError(t, err)

	gen, err := g.Generate(context.Background(), "analyze golang/go", true)
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Go"}`, gen.Text)
	assert.Equal(t, 18, gen.Usage.TotalTokens)
	assert.Equal(t, 11, gen.Usage.PromptTokens)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "deepseek-chat", gotBody["model"])
}

func TestGenerator_ServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	g, err := NewGenerator(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	gen, err := g.Generate(context.Background(), "p", false)
	assert.Nil(t, gen)
	assert.True(t, common.HasCode(err, common.ErrCodeAIProcessing))
	assert.Equal(t, 1, calls)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenerator(Config{}, nil)
	assert.True(t, common.HasCode(err, common.ErrCodeInvalidInput))
}
