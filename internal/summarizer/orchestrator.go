package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatsummary/internal/caption"
	"chatsummary/internal/config"
	"chatsummary/internal/domain"
	"chatsummary/internal/retriever"
	"chatsummary/internal/transcript"
)

// User-facing outcome strings. These go to the group verbatim.
const (
	msgEmptyWindow     = "在指定范围内没有找到可以总结的聊天记录。"
	msgEmptyTranscript = "筛选后没有可供总结的聊天内容。"
	msgDegradedNote    = "（注：因触发模型限流，本次总结未包含图片描述。）"
	msgApology         = "抱歉，总结服务出现了一点问题。"
)

// Archiver persists finished summaries. Nil disables archiving.
type Archiver interface {
	SaveSummary(ctx context.Context, groupID int64, selector, summary, imageRef string, degraded bool) error
}

// ProviderSource yields the model used for this run. provider.Factory
// satisfies it.
type ProviderSource interface {
	DefaultProvider() (domain.Provider, error)
}

// Result is what the caller sends back to the group. Failed results still
// carry user-facing text; callers that must not post failures (the
// scheduler) check Failed instead.
type Result struct {
	Text     string
	ImageRef string // set when an image was requested and rendered
	Degraded bool   // captions were dropped after rate limiting
	Failed   bool
}

type Orchestrator struct {
	store     domain.MessageStore
	retriever *retriever.Retriever
	formatter *transcript.Formatter
	captioner *caption.Service
	providers ProviderSource
	renderer  domain.Renderer
	archive   Archiver
	cfg       *config.Config
	logger    *slog.Logger
	sleep     func(time.Duration)
}

type OrchestratorConfig struct {
	Store     domain.MessageStore
	Retriever *retriever.Retriever
	Formatter *transcript.Formatter
	Captioner *caption.Service
	Providers ProviderSource
	Renderer  domain.Renderer // nil disables image rendering
	Archive   Archiver        // nil disables archiving
	Config    *config.Config
	Logger    *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		store:     cfg.Store,
		retriever: cfg.Retriever,
		formatter: cfg.Formatter,
		captioner: cfg.Captioner,
		providers: cfg.Providers,
		renderer:  cfg.Renderer,
		archive:   cfg.Archive,
		cfg:       cfg.Config,
		logger:    cfg.Logger,
		sleep:     time.Sleep,
	}
}

// Run executes the full pipeline for one summary request. It never returns
// an error for pipeline failures; those come back as a Failed result with
// apology text. wantImage additionally renders the summary to an image.
func (o *Orchestrator) Run(ctx context.Context, groupID int64, w Window, wantImage bool) *Result {
	gc := o.cfg.GroupSummary(groupID)
	log := o.logger.With("group_id", groupID, "selector", w.Raw)

	selfID, err := o.store.LoginInfo(ctx)
	if err != nil {
		// Self-exclusion degrades gracefully; the bot rarely talks anyway.
		log.Warn("cannot resolve own account id", "err", err)
		selfID = 0
	}

	var msgs []domain.RawMessage
	if w.Count > 0 {
		msgs = o.retriever.ByCount(ctx, groupID, w.Count)
	} else {
		msgs = o.retriever.ByDuration(ctx, groupID, w.Span)
	}
	if len(msgs) == 0 {
		// Fixed texts are still rendered; the group asked for a picture.
		return o.deliver(ctx, log, groupID, w, msgEmptyWindow, false, wantImage, gc.Template, false)
	}

	captioner := o.activeCaptioner(gc)
	transcriptText := o.formatter.Format(ctx, msgs, selfID, captioner)
	if transcriptText == "" {
		return o.deliver(ctx, log, groupID, w, msgEmptyTranscript, false, wantImage, gc.Template, false)
	}

	prov, err := o.providers.DefaultProvider()
	if err != nil {
		log.Error("no usable provider", "err", err)
		return o.failure(err, transcriptText)
	}

	summary, degraded, err := o.summarize(ctx, log, prov, gc, transcriptText, func() string {
		// Captionless rebuild for the degraded attempt.
		return o.formatter.Format(ctx, msgs, selfID, nil)
	}, captioner != nil)
	if err != nil {
		return o.failure(err, transcriptText)
	}

	summary = stripFences(summary)
	if degraded {
		summary = summary + "\n\n" + msgDegradedNote
	}

	return o.deliver(ctx, log, groupID, w, summary, degraded, wantImage, gc.Template, true)
}

// deliver is the shared tail of every non-failure outcome: optional render,
// optional archive. The fixed "nothing to summarize" texts pass through here
// too, so an image request still yields a picture. Only real model output is
// archived.
func (o *Orchestrator) deliver(ctx context.Context, log *slog.Logger, groupID int64, w Window, text string, degraded, wantImage bool, template string, archive bool) *Result {
	res := &Result{Text: text, Degraded: degraded}
	if wantImage && o.renderer != nil {
		ref, rerr := o.renderer.RenderToImage(ctx, text, template)
		if rerr != nil {
			// Text still goes out; only the picture is lost.
			log.Error("render failed, falling back to text", "err", rerr)
		} else {
			res.ImageRef = ref
		}
	}

	if archive && o.archive != nil {
		if aerr := o.archive.SaveSummary(ctx, groupID, w.Raw, text, res.ImageRef, degraded); aerr != nil {
			log.Warn("archive save failed", "err", aerr)
		}
	}

	return res
}

// summarize runs the bounded retry ladder: the initial attempt plus
// MaxRetries retries with exponentially doubling delay, retrying only
// classified-retryable failures. If every attempt rate-limited and captions
// were in play, one final captionless attempt runs; success there marks the
// result degraded.
func (o *Orchestrator) summarize(ctx context.Context, log *slog.Logger, prov domain.Provider, gc config.GroupSummaryConfig, transcriptText string, rebuild func() string, captioned bool) (string, bool, error) {
	attempts := 1 + gc.MaxRetries
	delay := gc.RetryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		summary, err := prov.Summarize(ctx, gc.Prompt, transcriptText)
		if err == nil {
			return summary, false, nil
		}
		lastErr = err

		kind := domain.Classify(err)
		log.Warn("summarize attempt failed",
			"attempt", attempt, "of", attempts, "kind", kind.String(), "err", err)
		if !domain.Retryable(kind) {
			return "", false, err
		}
		if attempt < attempts {
			o.sleep(delay)
			delay *= 2
		}
	}

	if domain.Classify(lastErr) == domain.KindRateLimit && captioned {
		log.Info("rate limited with captions enabled, retrying without image descriptions")
		summary, err := prov.Summarize(ctx, gc.Prompt, rebuild())
		if err == nil {
			return summary, true, nil
		}
		lastErr = err
	}

	return "", false, lastErr
}

func (o *Orchestrator) activeCaptioner(gc config.GroupSummaryConfig) transcript.Captioner {
	if !gc.CaptionImages || o.captioner == nil {
		return nil
	}
	return o.captioner
}

// failure builds the apology message: the reason plus a bounded excerpt of
// the transcript so the group still gets something readable.
func (o *Orchestrator) failure(err error, transcriptText string) *Result {
	reason := failureReason(err)
	excerpt := truncateRunes(transcriptText, o.cfg.Summary.ExcerptRunes)
	text := fmt.Sprintf("%s（%s）\n\n最近的聊天片段：\n%s", msgApology, reason, excerpt)
	return &Result{Text: text, Failed: true}
}

func failureReason(err error) string {
	switch domain.Classify(err) {
	case domain.KindRateLimit:
		return "模型请求过于频繁，请稍后再试"
	case domain.KindTransient:
		return "上游服务暂时不可用"
	case domain.KindEmpty:
		return "模型没有返回内容"
	default:
		return "未知错误"
	}
}

// stripFences removes a wrapping markdown code fence the model sometimes
// adds around the whole summary. Inner fences are left alone.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, open := range []string{"```markdown\n", "```md\n", "```\n"} {
		if strings.HasPrefix(s, open) {
			s = s[len(open):]
			break
		}
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truncateRunes bounds s to max runes, appending an ellipsis when cut.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "……"
}
