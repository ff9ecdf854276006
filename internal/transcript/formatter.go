// Package transcript renders raw message windows into the linear,
// chronological text fed to the language model.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chatsummary/internal/caption"
	"chatsummary/internal/domain"
)

// maxForwardDepth bounds recursion through nested forwarded conversations.
const maxForwardDepth = 16

const forwardTruncated = "[转发消息层级过深，已截断]"

const animatedStickerMarker = "[动画表情]"

// Captioner describes images for the formatter. caption.Service satisfies
// it; a nil Captioner degrades every image to the literal placeholder.
type Captioner interface {
	Caption(ctx context.Context, url string) string
}

type Formatter struct {
	wakePrefixes []string
	logger       *slog.Logger
}

type FormatterConfig struct {
	WakePrefixes []string
	Logger       *slog.Logger
}

func New(cfg FormatterConfig) *Formatter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Formatter{wakePrefixes: cfg.WakePrefixes, logger: cfg.Logger}
}

// Format renders messages in chronological order. The bot's own messages
// (selfID) and lines matching a wake prefix are excluded; an input that
// produces no lines yields "".
func (f *Formatter) Format(ctx context.Context, msgs []domain.RawMessage, selfID int64, captioner Captioner) string {
	return f.format(ctx, msgs, selfID, captioner, 0, 0)
}

func (f *Formatter) format(ctx context.Context, msgs []domain.RawMessage, selfID int64, captioner Captioner, indent, depth int) string {
	indentStr := strings.Repeat(" ", indent)
	var lines []string

	for i := range msgs {
		msg := &msgs[i]
		if msg.Sender.UserID == selfID {
			continue
		}
		if len(msg.Parts) == 0 {
			continue
		}

		text := f.collectParts(ctx, msg.Parts, msgs, selfID, captioner, indent, depth, false)
		if text == "" || f.isWakeMessage(text) {
			continue
		}

		ts := time.Unix(msg.Time, 0).Format("2006-01-02 15:04:05")
		lines = append(lines, fmt.Sprintf("%s[%s]「%s」: %s", indentStr, ts, msg.Sender.DisplayName(), text))
	}

	return strings.Join(lines, "\n")
}

// isWakeMessage drops the user's own command invocations from the
// transcript. A prefix may be followed by the literal "image" marker; either
// way the whole line is excluded. First matching prefix wins.
func (f *Formatter) isWakeMessage(text string) bool {
	for _, prefix := range f.wakePrefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// collectParts renders each part and joins the results with single spaces.
// skipReply suppresses nested reply parts to bound reply recursion.
func (f *Formatter) collectParts(ctx context.Context, parts []domain.MessagePart, loaded []domain.RawMessage, selfID int64, captioner Captioner, indent, depth int, skipReply bool) string {
	var collected []string
	for _, part := range parts {
		if skipReply && part.Type == domain.PartReply {
			continue
		}
		if rendered := f.renderPart(ctx, part, loaded, selfID, captioner, indent, depth); rendered != "" {
			collected = append(collected, rendered)
		}
	}
	return strings.TrimSpace(strings.Join(collected, " "))
}

func (f *Formatter) renderPart(ctx context.Context, part domain.MessagePart, loaded []domain.RawMessage, selfID int64, captioner Captioner, indent, depth int) string {
	switch part.Type {
	case domain.PartText:
		return strings.TrimSpace(part.Data.Text)
	case domain.PartImage:
		return f.renderImage(ctx, part.Data, captioner)
	case domain.PartVideo:
		return "[视频]"
	case domain.PartSticker:
		return "[表情]"
	case domain.PartReply:
		return f.renderReply(ctx, part.Data, loaded, selfID, captioner, indent, depth)
	case domain.PartShareCard:
		return f.renderShareCard(part.Data.Payload, indent)
	case domain.PartForward:
		return f.renderForward(ctx, part.Data, selfID, captioner, indent, depth)
	default:
		return "" // unknown part types are silently dropped
	}
}

func (f *Formatter) renderImage(ctx context.Context, data domain.PartData, captioner Captioner) string {
	if data.Summary == animatedStickerMarker {
		return animatedStickerMarker
	}
	if captioner != nil {
		if url := imageURL(data); url != "" {
			return captioner.Caption(ctx, url)
		}
	}
	return caption.Placeholder
}

// imageURL extracts a fetchable HTTP(S) URL from an image part, or "".
func imageURL(data domain.PartData) string {
	url := data.URL
	if url == "" {
		url = data.File
	}
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	return ""
}

// renderReply resolves the referenced message against the currently loaded
// window; full history is not consulted. Falls back to the inline snippet
// carried on the reply payload, then to a bare placeholder.
func (f *Formatter) renderReply(ctx context.Context, data domain.PartData, loaded []domain.RawMessage, selfID int64, captioner Captioner, indent, depth int) string {
	var sender, content string

	if replied := findByID(data.ID, loaded); replied != nil {
		sender = replied.Sender.DisplayName()
		content = f.collectParts(ctx, replied.Parts, loaded, selfID, captioner, indent, depth, true)
		if content == "" {
			content = strings.TrimSpace(replied.Raw)
		}
	} else {
		if name := strings.TrimSpace(firstNonEmpty(data.Nickname, data.Name)); name != "" {
			sender = name
		} else if data.UserID != 0 {
			sender = strconv.FormatInt(data.UserID, 10)
		}
		content = strings.TrimSpace(data.Text)
	}

	switch {
	case content != "":
		return fmt.Sprintf("[回复消息: %s: %s]", sender, content)
	case sender != "":
		return fmt.Sprintf("[回复消息: %s]", sender)
	default:
		return "[回复消息]"
	}
}

func findByID(id string, msgs []domain.RawMessage) *domain.RawMessage {
	if id == "" {
		return nil
	}
	for i := range msgs {
		if strconv.FormatInt(msgs[i].MessageID, 10) == id || strconv.FormatInt(msgs[i].Seq, 10) == id {
			return &msgs[i]
		}
	}
	return nil
}

func (f *Formatter) renderShareCard(payload string, indent int) string {
	parsed, err := parseShareCard(payload, indent+2)
	if err != nil {
		f.logger.Debug("share card payload unparsable", "err", err)
		return "[无法读取的分享内容]"
	}
	return "\n" + parsed + "\n" + strings.Repeat(" ", indent)
}

// renderForward recursively formats a forwarded sub-conversation inside an
// indented brace block. Depth is hard-capped to guarantee termination on
// adversarial nesting.
func (f *Formatter) renderForward(ctx context.Context, data domain.PartData, selfID int64, captioner Captioner, indent, depth int) string {
	if depth >= maxForwardDepth {
		return forwardTruncated
	}
	inner := f.format(ctx, data.Content, selfID, captioner, indent+2, depth+1)
	indentStr := strings.Repeat(" ", indent)
	return fmt.Sprintf("\n%s{\n%s\n%s}", indentStr, inner, indentStr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
