package domain

import "context"

// MessageStore is the chat-platform history API. Batches fetched with
// reverse=true arrive newest-first; callers are responsible for reordering.
type MessageStore interface {
	// FetchHistory pages backward through group history. cursorSeq 0 means
	// "start from the most recent message".
	FetchHistory(ctx context.Context, groupID, cursorSeq int64, count int, reverse bool) ([]RawMessage, error)
	// FetchRecent returns the newest count messages, newest-first.
	FetchRecent(ctx context.Context, groupID int64, count int) ([]RawMessage, error)
	// LoginInfo returns the bot's own user ID.
	LoginInfo(ctx context.Context) (int64, error)
	// SendGroupMessage delivers parts to a group.
	SendGroupMessage(ctx context.Context, groupID int64, parts []MessagePart) error
}
