// Package channel exposes the summarizer to operators outside the chat
// platform itself. The Telegram channel lets an admin request group
// summaries and review archived ones from a private bot chat.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatsummary/internal/store"
	"chatsummary/internal/summarizer"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram is the operator-facing mirror channel.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)

	bot     *tgbotapi.BotAPI
	orch    *summarizer.Orchestrator
	archive *store.Archive // nil disables /recent
	logger  *slog.Logger
}

type TelegramConfig struct {
	Token        string
	AllowFrom    []string // user IDs as strings
	Orchestrator *summarizer.Orchestrator
	Archive      *store.Archive
	Logger       *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		orch:      cfg.Orchestrator,
		archive:   cfg.Archive,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID, "username", update.Message.From.UserName)
		t.sendMessage(chatID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}

	if !update.Message.IsCommand() {
		t.sendMessage(chatID, "Use /summary <count|span> <group_id> to request a summary. /help for details.")
		return
	}

	switch update.Message.Command() {
	case "start", "help":
		t.sendMessage(chatID, "ChatSummary operator bot.\n\n"+
			"/summary <count|span> <group_id> — summarize a group, e.g. /summary 100 123456 or /summary 2h 123456\n"+
			"/recent <group_id> — list the latest archived summaries\n"+
			"/status — bot status")
	case "status":
		t.sendMessage(chatID, fmt.Sprintf("ChatSummary running.\nBot: @%s\nYour ID: %d", t.bot.Self.UserName, userID))
	case "summary":
		t.handleSummary(ctx, chatID, update.Message.CommandArguments())
	case "recent":
		t.handleRecent(ctx, chatID, update.Message.CommandArguments())
	default:
		t.sendMessage(chatID, "Unknown command. Type /help for available commands.")
	}
}

func (t *Telegram) handleSummary(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		t.sendMessage(chatID, "Usage: /summary <count|span> <group_id>")
		return
	}

	w, err := summarizer.ParseSelector(fields[0])
	if err != nil {
		t.sendMessage(chatID, err.Error())
		return
	}
	groupID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		t.sendMessage(chatID, "group_id must be numeric")
		return
	}

	t.sendMessage(chatID, w.Describe())

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	res := t.orch.Run(ctx, groupID, w, true)
	t.sendMessage(chatID, res.Text)
	if res.ImageRef != "" {
		t.sendPhoto(chatID, res.ImageRef)
	}
}

func (t *Telegram) handleRecent(ctx context.Context, chatID int64, args string) {
	if t.archive == nil {
		t.sendMessage(chatID, "Archive is disabled.")
		return
	}
	groupID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		t.sendMessage(chatID, "Usage: /recent <group_id>")
		return
	}

	recs, err := t.archive.Recent(ctx, groupID, 5)
	if err != nil {
		t.logger.Error("archive query failed", "err", err)
		t.sendMessage(chatID, "Archive query failed.")
		return
	}
	if len(recs) == 0 {
		t.sendMessage(chatID, "No archived summaries for that group.")
		return
	}

	var b strings.Builder
	for _, rec := range recs {
		fmt.Fprintf(&b, "— %s (%s)\n%s\n\n",
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Selector, rec.Summary)
	}
	t.sendMessage(chatID, strings.TrimSpace(b.String()))
}

func (t *Telegram) sendPhoto(chatID int64, ref string) {
	var file tgbotapi.RequestFileData
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		file = tgbotapi.FileURL(ref)
	} else {
		file = tgbotapi.FilePath(ref)
	}
	if _, err := t.bot.Send(tgbotapi.NewPhoto(chatID, file)); err != nil {
		t.logger.Error("telegram photo send failed", "err", err)
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// sendMessage splits long text on line boundaries; Telegram caps messages at
// 4096 chars.
func (t *Telegram) sendMessage(chatID int64, text string) {
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends one chunk with rate-limit aware retries.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
