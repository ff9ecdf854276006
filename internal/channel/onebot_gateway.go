package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatsummary/internal/domain"
	"chatsummary/internal/summarizer"
)

// OneBotGateway receives platform event posts over HTTP and serves the
// in-group wake command ("总结 100", "总结image 2h", ...).
type OneBotGateway struct {
	addr         string
	wakePrefixes []string
	orch         *summarizer.Orchestrator
	store        domain.MessageStore
	logger       *slog.Logger
}

type OneBotGatewayConfig struct {
	Addr         string // listen address for event posts, e.g. ":8900"
	WakePrefixes []string
	Orchestrator *summarizer.Orchestrator
	Store        domain.MessageStore
	Logger       *slog.Logger
}

func NewOneBotGateway(cfg OneBotGatewayConfig) *OneBotGateway {
	if cfg.Addr == "" {
		cfg.Addr = ":8900"
	}
	if len(cfg.WakePrefixes) == 0 {
		cfg.WakePrefixes = []string{"总结"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OneBotGateway{
		addr:         cfg.Addr,
		wakePrefixes: cfg.WakePrefixes,
		orch:         cfg.Orchestrator,
		store:        cfg.Store,
		logger:       cfg.Logger,
	}
}

// groupEvent is the subset of the platform's event post we act on.
type groupEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
}

// Start serves the event endpoint until ctx is cancelled.
func (g *OneBotGateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleEvent)

	srv := &http.Server{
		Addr:         g.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "addr", g.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	}
}

func (g *OneBotGateway) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev groupEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "bad event", http.StatusBadRequest)
		return
	}
	// Ack immediately; the platform does not wait for the summary.
	w.WriteHeader(http.StatusNoContent)

	if ev.PostType != "message" || ev.MessageType != "group" {
		return
	}

	selector, wantImage, matched := parseWakeCommand(ev.RawMessage, g.wakePrefixes)
	if !matched {
		return
	}

	g.logger.Info("summary requested in group",
		"group_id", ev.GroupID, "user_id", ev.UserID, "selector", selector, "image", wantImage)

	go g.serve(ev.GroupID, selector, wantImage)
}

func (g *OneBotGateway) serve(groupID int64, selector string, wantImage bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	w, err := summarizer.ParseSelector(selector)
	if err != nil {
		g.reply(ctx, groupID, domain.TextPart(err.Error()))
		return
	}

	g.reply(ctx, groupID, domain.TextPart(w.Describe()))

	res := g.orch.Run(ctx, groupID, w, wantImage)
	parts := []domain.MessagePart{domain.TextPart(res.Text)}
	if res.ImageRef != "" {
		parts = append(parts, domain.ImagePart(res.ImageRef))
	}
	g.reply(ctx, groupID, parts...)
}

func (g *OneBotGateway) reply(ctx context.Context, groupID int64, parts ...domain.MessagePart) {
	if err := g.store.SendGroupMessage(ctx, groupID, parts); err != nil {
		g.logger.Error("group reply failed", "group_id", groupID, "err", err)
	}
}

// parseWakeCommand matches text against the wake prefixes. A prefix may be
// immediately followed by the literal "image" token, which requests a
// rendered picture; the remainder is the window selector.
func parseWakeCommand(text string, prefixes []string) (selector string, wantImage, matched bool) {
	text = strings.TrimSpace(text)
	for _, prefix := range prefixes {
		if prefix == "" || !strings.HasPrefix(text, prefix) {
			continue
		}
		rest := text[len(prefix):]
		if strings.HasPrefix(rest, "image") {
			wantImage = true
			rest = rest[len("image"):]
		}
		return strings.TrimSpace(rest), wantImage, true
	}
	return "", false, false
}
