// Package caption provides rate-limited, cached image captioning. Caption
// never fails outward: any error degrades to a literal placeholder.
package caption

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatsummary/internal/domain"
)

// Placeholder is returned whenever a description cannot be produced.
const Placeholder = "[图片]"

const defaultSystemPrompt = "请用一句话描述这张图片的内容。"

// Service captions image URLs through the LLM provider, bounded by an
// admission gate shared across all callers of this instance. The cache and
// gate belong to the instance; construct one per process, inject everywhere.
type Service struct {
	provider domain.Provider
	prompt   string
	gate     chan struct{}
	delay    time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	cache    map[string]string
	order    []string // insertion order for FIFO eviction
	capacity int
}

type ServiceConfig struct {
	Provider      domain.Provider
	SystemPrompt  string
	MaxConcurrent int
	Delay         time.Duration
	CacheSize     int
	Logger        *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 2
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 128
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		provider: cfg.Provider,
		prompt:   cfg.SystemPrompt,
		gate:     make(chan struct{}, cfg.MaxConcurrent),
		delay:    cfg.Delay,
		logger:   cfg.Logger,
		cache:    make(map[string]string),
		capacity: cfg.CacheSize,
	}
}

// Caption returns a display string for the image at url. Failures are cached
// as the placeholder so a chronically broken URL is not re-fetched.
func (s *Service) Caption(ctx context.Context, url string) string {
	if s.provider == nil {
		return Placeholder
	}

	if desc, ok := s.lookup(url); ok {
		return desc
	}

	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return Placeholder
	}
	defer func() { <-s.gate }()

	// Another caller may have filled the entry while we waited at the gate.
	if desc, ok := s.lookup(url); ok {
		return desc
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Placeholder
		}
	}

	if !s.provider.SupportsVision() {
		s.logger.Debug("model has no vision capability, caching placeholder", "url", truncateURL(url))
		s.store(url, Placeholder)
		return Placeholder
	}

	desc, err := s.provider.Caption(ctx, url, s.prompt)
	if err != nil {
		s.logger.Warn("image caption failed, degrading to placeholder",
			"url", truncateURL(url), "err", err)
		s.store(url, Placeholder)
		return Placeholder
	}

	desc = strings.TrimSpace(desc)
	if desc == "" {
		s.store(url, Placeholder)
		return Placeholder
	}

	decorated := fmt.Sprintf("[image: %s]", desc)
	s.store(url, decorated)
	return decorated
}

func (s *Service) lookup(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	desc, ok := s.cache[url]
	return desc, ok
}

// store inserts with FIFO eviction: the single oldest-inserted entry is
// removed when capacity would be exceeded.
func (s *Service) store(url, desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cache[url]; exists {
		s.cache[url] = desc
		return
	}
	if len(s.cache) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
	s.cache[url] = desc
	s.order = append(s.order, url)
}

// Size reports the current cache population.
func (s *Service) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func truncateURL(url string) string {
	if len(url) > 50 {
		return url[:50] + "..."
	}
	return url
}
