package render

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"chatsummary/internal/domain"
)

const renderTimeout = 60 * time.Second

// pageTemplate is the fallback layout: a card on a neutral background wide
// enough for CJK text without wrapping mid-word.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { margin: 0; padding: 24px; background: #f0f2f5; width: 720px;
         font-family: "PingFang SC", "Microsoft YaHei", sans-serif; }
  .card { background: #fff; border-radius: 12px; padding: 28px 32px;
          box-shadow: 0 1px 4px rgba(0,0,0,0.08); }
  .card pre { margin: 0; white-space: pre-wrap; word-break: break-word;
              font-family: inherit; font-size: 15px; line-height: 1.7; color: #1f2329; }
</style>
</head>
<body><div class="card"><pre>{{.Text}}</pre></div></body>
</html>`))

// Chrome renders locally with headless Chrome and writes PNGs under
// OutputDir. It is the fallback when no render service is reachable.
type Chrome struct {
	outputDir string
	headless  bool
	logger    *slog.Logger
}

type ChromeConfig struct {
	OutputDir string
	Headless  bool
	Logger    *slog.Logger
}

func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.OutputDir == "" {
		home, _ := os.UserHomeDir()
		cfg.OutputDir = filepath.Join(home, ".chatsummary", "data", "images")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chrome{outputDir: cfg.OutputDir, headless: cfg.Headless, logger: cfg.Logger}
}

func (c *Chrome) Name() string { return "chrome" }

// RenderToImage writes the text into the page template, screenshots it, and
// returns the PNG path. templateName is ignored here; the local fallback has
// a single layout.
func (c *Chrome) RenderToImage(ctx context.Context, text, templateName string) (string, error) {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("create output dir: %w", err)}
	}

	var page strings.Builder
	if err := pageTemplate.Execute(&page, struct{ Text string }{Text: text}); err != nil {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("execute template: %w", err)}
	}

	htmlPath := filepath.Join(c.outputDir, fmt.Sprintf("summary-%d.html", time.Now().UnixNano()))
	if err := os.WriteFile(htmlPath, []byte(page.String()), 0o644); err != nil {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("write page: %w", err)}
	}
	defer os.Remove(htmlPath)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if c.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, renderTimeout)
	defer timeoutCancel()

	var shot []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(768, 600),
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body"),
		chromedp.FullScreenshot(&shot, 95),
	)
	if err != nil {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("screenshot: %w", err)}
	}

	imgPath := filepath.Join(c.outputDir, fmt.Sprintf("summary-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(imgPath, shot, 0o644); err != nil {
		return "", &domain.RenderError{Renderer: c.Name(), Err: fmt.Errorf("write image: %w", err)}
	}

	c.logger.Debug("chrome render ok", "path", imgPath, "bytes", len(shot))
	return imgPath, nil
}
