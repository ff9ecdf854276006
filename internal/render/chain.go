package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chatsummary/internal/domain"
)

// Chain tries each renderer in order and returns the first success. All
// renderers failing yields the joined errors wrapped as a RenderError.
type Chain struct {
	renderers []domain.Renderer
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, renderers ...domain.Renderer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{renderers: renderers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.renderers))
	for i, r := range c.renderers {
		names[i] = r.Name()
	}
	return "fallback(" + strings.Join(names, "→") + ")"
}

func (c *Chain) RenderToImage(ctx context.Context, text, templateName string) (string, error) {
	if len(c.renderers) == 0 {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("no renderers configured")}
	}

	var errs []error
	for _, r := range c.renderers {
		ref, err := r.RenderToImage(ctx, text, templateName)
		if err == nil {
			return ref, nil
		}
		c.logger.Warn("renderer failed, trying next", "renderer", r.Name(), "err", err)
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", &domain.RenderError{Renderer: c.Name(), Err: errors.Join(errs...)}
}
