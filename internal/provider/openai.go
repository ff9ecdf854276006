package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatsummary/internal/domain"
)

// OpenAI implements domain.Provider for OpenAI-compatible APIs (GPT-4o,
// GPT-4o-mini, and any endpoint that speaks /chat/completions).
type OpenAI struct {
	apiKey       string
	apiBase      string
	model        string
	visionModels []string
	client       *http.Client
	logger       *slog.Logger
}

type OpenAIConfig struct {
	APIKey       string
	APIBase      string
	Model        string
	VisionModels []string
	Logger       *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		apiKey:       cfg.APIKey,
		apiBase:      cfg.APIBase,
		model:        cfg.Model,
		visionModels: cfg.VisionModels,
		client:       SharedHTTPClient(120 * time.Second),
		logger:       cfg.Logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// SupportsVision reports whether the configured model is on the vision
// allowlist. An empty allowlist means no vision.
func (o *OpenAI) SupportsVision() bool {
	for _, m := range o.visionModels {
		if strings.EqualFold(m, o.model) {
			return true
		}
	}
	return false
}

func (o *OpenAI) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("openai: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned %d", resp.StatusCode)
	}
	return nil
}

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

// oaiMessage content is either a plain string or, for vision requests, a
// list of typed content parts.
type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summarize sends the transcript as the user turn under the summary prompt
// and returns the completion text.
func (o *OpenAI) Summarize(ctx context.Context, prompt, transcript string) (string, error) {
	body := oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: transcript},
		},
	}
	return o.complete(ctx, body)
}

// Caption asks the vision model to describe the image at imageURL.
func (o *OpenAI) Caption(ctx context.Context, imageURL, systemPrompt string) (string, error) {
	body := oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "user", Content: []oaiContentPart{
				{Type: "text", Text: systemPrompt},
				{Type: "image_url", ImageURL: &oaiImageURL{URL: imageURL}},
			}},
		},
	}
	return o.complete(ctx, body)
}

func (o *OpenAI) complete(ctx context.Context, body oaiRequest) (string, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &domain.TransientProviderError{Err: fmt.Errorf("openai request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", &domain.TransientProviderError{Err: fmt.Errorf("decode: %w", err)}
	}

	if len(oaiResp.Choices) == 0 {
		return "", &domain.EmptyResponseError{Provider: o.Name()}
	}
	content := strings.TrimSpace(oaiResp.Choices[0].Message.Content)
	if content == "" {
		return "", &domain.EmptyResponseError{Provider: o.Name()}
	}

	o.logger.Debug("completion ok",
		"model", o.model,
		"prompt_tokens", oaiResp.Usage.PromptTokens,
		"completion_tokens", oaiResp.Usage.CompletionTokens)
	return content, nil
}

// classifyStatus maps a non-200 API response onto the retry taxonomy: 429 is
// a rate limit, 5xx is transient, everything else is terminal.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitError{Status: status, Message: body}
	case status >= 500:
		return &domain.TransientProviderError{Status: status, Message: body}
	default:
		return fmt.Errorf("openai %d: %s", status, body)
	}
}
