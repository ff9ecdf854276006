package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatsummary/internal/domain"
)

// Share card app identifiers observed in the wild.
const (
	appForwardDigest = "com.tencent.multimsg"
	appMiniProgram   = "com.tencent.miniapp_01"
	appArticle       = "com.tencent.tuwen.lua"
)

// shareCard mirrors the JSON blob embedded in a "json" message part. Only the
// fields the known card kinds actually use are mapped.
type shareCard struct {
	App    string `json:"app"`
	Prompt string `json:"prompt"`
	Meta   struct {
		Detail struct {
			News []struct {
				Text string `json:"text"`
			} `json:"news"`
		} `json:"detail"`
		Detail1 struct {
			Title    string `json:"title"`
			Desc     string `json:"desc"`
			URL      string `json:"url"`
			QQDocURL string `json:"qqdocurl"`
		} `json:"detail_1"`
		News struct {
			Title   string `json:"title"`
			Desc    string `json:"desc"`
			JumpURL string `json:"jumpUrl"`
			Tag     string `json:"tag"`
		} `json:"news"`
	} `json:"meta"`
}

// parseShareCard renders the embedded card payload at the given indent level.
// Unknown app tags fall back to the card's prompt text.
func parseShareCard(payload string, indent int) (string, error) {
	var card shareCard
	if err := json.Unmarshal([]byte(payload), &card); err != nil {
		return "", &domain.MalformedShareContent{Err: err}
	}

	indentStr := strings.Repeat(" ", indent)

	switch card.App {
	case appForwardDigest:
		return renderForwardDigest(card, indentStr), nil

	case appMiniProgram:
		title := orDefault(card.Meta.Detail1.Title, "未知应用")
		desc := orDefault(card.Meta.Detail1.Desc, "无简介")
		link := card.Meta.Detail1.QQDocURL
		if link == "" {
			link = card.Meta.Detail1.URL
		}
		link = orDefault(link, "无链接")
		return fmt.Sprintf("%s[小程序分享: %s] %s (%s)", indentStr, title, desc, link), nil

	case appArticle:
		title := orDefault(card.Meta.News.Title, "无标题")
		desc := orDefault(card.Meta.News.Desc, "无简介")
		link := orDefault(card.Meta.News.JumpURL, "无链接")
		if tag := card.Meta.News.Tag; tag != "" {
			return fmt.Sprintf("%s[%s分享: %s] %s (%s)", indentStr, tag, title, desc, link), nil
		}
		return fmt.Sprintf("%s[图文分享: %s] %s (%s)", indentStr, title, desc, link), nil

	default:
		if card.Prompt != "" {
			return indentStr + card.Prompt, nil
		}
		return indentStr + "[未知的JSON分享]", nil
	}
}

// renderForwardDigest formats the preview lines a forward card carries. The
// full nested conversation is only available via a forward part; a card has
// just the digest.
func renderForwardDigest(card shareCard, indentStr string) string {
	news := card.Meta.Detail.News
	if len(news) == 0 {
		return indentStr + "[空的转发消息]"
	}

	contentIndent := indentStr + "  "
	lines := make([]string, 0, len(news))
	for _, item := range news {
		if text := strings.TrimSpace(item.Text); text != "" {
			lines = append(lines, contentIndent+text)
		}
	}
	if len(lines) == 0 {
		return indentStr + "[空的转发消息]"
	}

	return fmt.Sprintf("%s[转发消息]:\n%s{\n%s\n%s}",
		indentStr, indentStr, strings.Join(lines, "\n"), indentStr)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
