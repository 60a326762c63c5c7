package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeOllama serves the OpenAI-compatible subset of the Ollama API.
type fakeOllama struct {
	t        *testing.T
	reply    string
	status   int
	models   []string
	requests []openai.ChatCompletionRequest
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"model \"` + req.Model + `\" not found, try pulling it first","type":"api_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": f.reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(f.models))
		for _, id := range f.models {
			data = append(data, map[string]any{"id": id, "object": "model", "created": 1700000000, "owned_by": "library"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	return mux
}

func newFakeOllama(t *testing.T, f *fakeOllama) (*httptest.Server, *OllamaReviewer) {
	f.t = t
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	r := NewOllamaReviewer(Options{
		BaseURL: srv.URL + "/v1/",
		Model:   "llama3.2",
		Logger:  zaptest.NewLogger(t),
	})
	return srv, r
}

func testCommit() *gitrepo.Commit {
	return &gitrepo.Commit{
		Hash:      "0123456789abcdef0123456789abcdef01234567",
		ShortHash: "0123456",
		Message:   "Fix off-by-one in pager",
		Diff:      "-for i := 0; i <= n; i++ {\n+for i := 0; i < n; i++ {\n",
	}
}

func TestOllamaReviewer_Review(t *testing.T) {
	reply := "1. Good fix.\n\n2. Add a test for n == 0.\n"
	f := &fakeOllama{reply: reply}
	_, r := newFakeOllama(t, f)

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		tick = tick.Add(2 * time.Second)
		return tick
	}

	commit := testCommit()
	res, err := r.Review(context.Background(), commit)
	require.NoError(t, err)

	assert.Equal(t, reply, res.Text, "review text is returned verbatim")
	assert.Equal(t, "llama3.2", res.Model)
	assert.Same(t, commit, res.Commit)
	assert.Equal(t, 2*time.Second, res.Duration)
	assert.Equal(t, 120, res.PromptTokens)
	assert.Equal(t, 40, res.CompletionTokens)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "llama3.2", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, BuildPrompt(commit), req.Messages[1].Content)
	assert.False(t, req.Stream)
}

func TestOllamaReviewer_CustomSystemPrompt(t *testing.T) {
	f := &fakeOllama{reply: "ok"}
	srv, _ := newFakeOllama(t, f)

	r := NewOllamaReviewer(Options{BaseURL: srv.URL + "/v1", Model: "llama3.2", SystemPrompt: "Be terse."})
	_, err := r.Review(context.Background(), testCommit())
	require.NoError(t, err)
	assert.Equal(t, "Be terse.", f.requests[0].Messages[0].Content)
}

func TestOllamaReviewer_Errors(t *testing.T) {
	t.Run("nil commit", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{})
		_, err := r.Review(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("missing model", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{status: http.StatusNotFound})
		_, err := r.Review(context.Background(), testCommit())
		assert.ErrorIs(t, err, ErrModelMissing)
	})

	t.Run("server error", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{status: http.StatusInternalServerError})
		_, err := r.Review(context.Background(), testCommit())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("empty reply", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{reply: ""})
		_, err := r.Review(context.Background(), testCommit())
		assert.ErrorIs(t, err, ErrEmptyReview)
	})

	t.Run("whitespace reply is kept verbatim", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{reply: "  \n"})
		result, err := r.Review(context.Background(), testCommit())
		require.NoError(t, err)
		assert.Equal(t, "  \n", result.Text)
	})

	t.Run("unreachable daemon", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		r := NewOllamaReviewer(Options{BaseURL: url + "/v1", Model: "llama3.2"})
		_, err := r.Review(context.Background(), testCommit())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not reach ollama")
	})

	t.Run("cancelled", func(t *testing.T) {
		_, r := newFakeOllama(t, &fakeOllama{reply: "ok"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Review(ctx, testCommit())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOllamaReviewer_Ping(t *testing.T) {
	_, r := newFakeOllama(t, &fakeOllama{models: []string{"mistral:7b", "llama3.2:latest"}})
	assert.NoError(t, r.Ping(context.Background()))

	_, r = newFakeOllama(t, &fakeOllama{models: []string{"mistral:7b"}})
	err := r.Ping(context.Background())
	assert.ErrorIs(t, err, ErrModelMissing)
	assert.Contains(t, err.Error(), "ollama pull llama3.2")
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "llama3.2:latest", normalizeModel("llama3.2"))
	assert.Equal(t, "llama3.2:latest", normalizeModel(" llama3.2:latest "))
	assert.Equal(t, "qwen2.5-coder:7b", normalizeModel("qwen2.5-coder:7b"))
}
