// Package summarizer drives the summary pipeline: window selection, message
// retrieval, transcript formatting, the model call with its retry ladder,
// and optional image rendering.
package summarizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatsummary/internal/timespan"
)

// Count selectors outside this range are rejected outright.
const (
	minCount = 1
	maxCount = 500
)

// ErrCountOutOfRange and ErrBadSelector carry the user-facing rejection text
// verbatim; callers send err.Error() back to the group.
var (
	ErrCountOutOfRange = errors.New("请提供一个介于 1 和 500 之间的数字。")
	ErrBadSelector     = errors.New("参数格式不正确，请输入要总结的消息数量或时间范围，例如：100、2h、1d。")
)

// Window selects which slice of history to summarize. Exactly one of Count
// and Span is set.
type Window struct {
	Count int
	Span  time.Duration
	Raw   string // the selector as the user typed it
}

// ParseSelector interprets a user-supplied window argument. Duration syntax
// wins over plain integers, so "1d" is a span, not a count.
func ParseSelector(arg string) (Window, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Window{}, ErrBadSelector
	}

	if span, ok := timespan.Parse(arg); ok {
		// "0m" parses but selects nothing; treat it as a bad argument.
		if span <= 0 {
			return Window{}, ErrBadSelector
		}
		return Window{Span: span, Raw: arg}, nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil {
		return Window{}, ErrBadSelector
	}
	if n < minCount || n > maxCount {
		return Window{}, ErrCountOutOfRange
	}
	return Window{Count: n, Raw: arg}, nil
}

// Describe is the in-progress status line sent to the group before the
// pipeline runs.
func (w Window) Describe() string {
	if w.Count > 0 {
		return fmt.Sprintf("正在总结最近 %d 条消息，请稍候……", w.Count)
	}
	return fmt.Sprintf("正在总结最近 %s 内的消息，请稍候……", w.Raw)
}
