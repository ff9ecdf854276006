// Package render turns summary text into shareable images, either through an
// external render service or a local headless Chrome fallback.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatsummary/internal/domain"
)

const defaultHTTPTimeout = 60 * time.Second

// Remote renders through an external HTTP service that accepts text plus a
// template name and returns a URL to the finished image.
type Remote struct {
	serviceURL string
	client     *http.Client
	logger     *slog.Logger
}

type RemoteConfig struct {
	ServiceURL string
	Logger     *slog.Logger
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Remote{
		serviceURL: cfg.ServiceURL,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
		logger:     cfg.Logger,
	}
}

func (r *Remote) Name() string { return "remote" }

type renderRequest struct {
	Text     string `json:"text"`
	Template string `json:"template"`
}

type renderResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// RenderToImage submits the text and returns the service's image URL.
func (r *Remote) RenderToImage(ctx context.Context, text, templateName string) (string, error) {
	if r.serviceURL == "" {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("no service URL configured")}
	}

	body, err := json.Marshal(renderRequest{Text: text, Template: templateName})
	if err != nil {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.serviceURL, bytes.NewReader(body))
	if err != nil {
		return "", &domain.RenderError{Renderer: r.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("render request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &domain.RenderError{
			Renderer: r.Name(),
			Err:      fmt.Errorf("service returned %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var rr renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("decode: %w", err)}
	}
	if rr.Error != "" {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("service error: %s", rr.Error)}
	}
	if rr.URL == "" {
		return "", &domain.RenderError{Renderer: r.Name(), Err: fmt.Errorf("service returned no image URL")}
	}

	r.logger.Debug("remote render ok", "template", templateName, "url", rr.URL)
	return rr.URL, nil
}
