package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatsummary/internal/domain"
)

func TestParseShareCard_MiniProgram(t *testing.T) {
	payload := `{
		"app": "com.tencent.miniapp_01",
		"meta": {"detail_1": {"title": "哔哩哔哩", "desc": "一个视频", "qqdocurl": "https://b23.tv/abc"}}
	}`

	got, err := parseShareCard(payload, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[小程序分享: 哔哩哔哩] 一个视频 (https://b23.tv/abc)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseShareCard_MiniProgramDefaults(t *testing.T) {
	got, err := parseShareCard(`{"app": "com.tencent.miniapp_01"}`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[小程序分享: 未知应用] 无简介 (无链接)" {
		t.Fatalf("defaults not applied: %q", got)
	}
}

func TestParseShareCard_Article(t *testing.T) {
	payload := `{
		"app": "com.tencent.tuwen.lua",
		"meta": {"news": {"title": "一篇文章", "desc": "摘要内容", "jumpUrl": "https://example.com/p", "tag": "知乎"}}
	}`

	got, err := parseShareCard(payload, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[知乎分享: 一篇文章] 摘要内容 (https://example.com/p)" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseShareCard_ArticleWithoutTag(t *testing.T) {
	payload := `{"app": "com.tencent.tuwen.lua", "meta": {"news": {"title": "标题"}}}`

	got, err := parseShareCard(payload, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "[图文分享: 标题]") {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseShareCard_ForwardDigest(t *testing.T) {
	payload := `{
		"app": "com.tencent.multimsg",
		"meta": {"detail": {"news": [{"text": "甲: 你好"}, {"text": "乙: 在吗"}]}}
	}`

	got, err := parseShareCard(payload, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "[转发消息]:") {
		t.Fatalf("digest header missing: %q", got)
	}
	if !strings.Contains(got, "  甲: 你好\n  乙: 在吗") {
		t.Fatalf("digest lines missing or unindented: %q", got)
	}
}

func TestParseShareCard_ForwardDigestEmpty(t *testing.T) {
	got, err := parseShareCard(`{"app": "com.tencent.multimsg", "meta": {"detail": {"news": []}}}`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[空的转发消息]" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseShareCard_UnknownAppUsesPrompt(t *testing.T) {
	got, err := parseShareCard(`{"app": "com.tencent.something.else", "prompt": "[QQ红包]"}`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[QQ红包]" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseShareCard_UnknownAppNoPrompt(t *testing.T) {
	got, err := parseShareCard(`{"app": "com.tencent.something.else"}`, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[未知的JSON分享]" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseShareCard_MalformedPayload(t *testing.T) {
	_, err := parseShareCard(`{"app": "com.tencent`, 0)
	var malformed *domain.MalformedShareContent
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedShareContent, got %v", err)
	}
}

func TestFormat_MalformedShareCardRendersPlaceholder(t *testing.T) {
	f := newTestFormatter()
	m := domain.RawMessage{
		MessageID: 1, Seq: 1, Time: 1_700_000_000,
		Sender: domain.Sender{UserID: 101, Nickname: "a"},
		Parts: []domain.MessagePart{
			{Type: domain.PartShareCard, Data: domain.PartData{Payload: "{not json"}},
		},
	}

	out := f.Format(context.Background(), []domain.RawMessage{m}, testSelfID, nil)

	if !strings.Contains(out, "[无法读取的分享内容]") {
		t.Fatalf("expected unreadable-share placeholder, got %q", out)
	}
}

func TestParseShareCard_IndentApplied(t *testing.T) {
	got, err := parseShareCard(`{"app": "x", "prompt": "p"}`, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "    p" {
		t.Fatalf("indent not applied: %q", got)
	}
}
