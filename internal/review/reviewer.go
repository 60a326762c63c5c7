// Package review turns a commit into a review by asking a local Ollama model.
package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	ErrModelMissing = errors.New("model is not installed")
	ErrEmptyReview  = errors.New("model returned no review")
)

// Ollama ignores the key but the OpenAI wire format requires one.
const ollamaAPIKey = "ollama"

// Result is one completed review.
type Result struct {
	Commit   *gitrepo.Commit
	Text     string
	Model    string
	Duration time.Duration

	PromptTokens     int
	CompletionTokens int
}

// Reviewer produces a review for a commit.
type Reviewer interface {
	Review(ctx context.Context, commit *gitrepo.Commit) (*Result, error)
}

// Options configures an OllamaReviewer.
type Options struct {
	// BaseURL is the OpenAI-compatible endpoint, e.g. http://localhost:11434/v1.
	BaseURL string
	Model   string

	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// OllamaReviewer sends a single chat completion per commit. It never retries
// or streams.
type OllamaReviewer struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *zap.Logger
	now          func() time.Time
}

// NewOllamaReviewer creates a reviewer talking to opts.BaseURL.
func NewOllamaReviewer(opts Options) *OllamaReviewer {
	cfg := openai.DefaultConfig(ollamaAPIKey)
	cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaReviewer{
		client:       openai.NewClientWithConfig(cfg),
		model:        opts.Model,
		systemPrompt: systemPrompt,
		logger:       logger,
		now:          time.Now,
	}
}

// Model returns the model tag reviews are requested from.
func (r *OllamaReviewer) Model() string {
	return r.model
}

// Review asks the model to critique commit and returns its answer verbatim.
func (r *OllamaReviewer) Review(ctx context.Context, commit *gitrepo.Commit) (*Result, error) {
	if commit == nil {
		return nil, fmt.Errorf("no commit to review")
	}

	prompt := BuildPrompt(commit)
	started := r.now()

	r.logger.Debug("requesting review",
		zap.String("commit", commit.ShortHash),
		zap.String("model", r.model),
		zap.Int("promptBytes", len(prompt)))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, describeError(err, r.model)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReview
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, ErrEmptyReview
	}

	elapsed := r.now().Sub(started)
	r.logger.Info("review received",
		zap.String("commit", commit.ShortHash),
		zap.String("model", r.model),
		zap.Duration("duration", elapsed),
		zap.Int("completionTokens", resp.Usage.CompletionTokens))

	return &Result{
		Commit:           commit,
		Text:             text,
		Model:            r.model,
		Duration:         elapsed,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Ping checks that the daemon answers and that the configured model is pulled.
func (r *OllamaReviewer) Ping(ctx context.Context) error {
	models, err := r.client.ListModels(ctx)
	if err != nil {
		return describeError(err, r.model)
	}
	want := normalizeModel(r.model)
	for _, m := range models.Models {
		if normalizeModel(m.ID) == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run `ollama pull %s`)", ErrModelMissing, r.model, r.model)
}

// normalizeModel makes "llama3.2" and "llama3.2:latest" compare equal.
func normalizeModel(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}

func describeError(err error, model string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %s", ErrModelMissing, model, apiErr.Message)
		}
		return fmt.Errorf("ollama returned an error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("ollama request failed (status %d): %w", reqErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("review cancelled: %w", err)
	}
	return fmt.Errorf("could not reach ollama: %w", err)
}
