// Package retriever reconstructs bounded message windows from the platform's
// cursor-only history API.
package retriever

import (
	"context"
	"log/slog"
	"time"

	"chatsummary/internal/domain"
)

// batchSize is the fixed page size for duration-based pagination.
const batchSize = 100

type Retriever struct {
	store  domain.MessageStore
	logger *slog.Logger
	now    func() time.Time
}

func New(store domain.MessageStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, logger: logger, now: time.Now}
}

// ByCount fetches the newest n messages in a single batch and returns them
// in chronological order. A failed request yields an empty window; partial
// results are preferable to a failed summary.
func (r *Retriever) ByCount(ctx context.Context, groupID int64, n int) []domain.RawMessage {
	batch, err := r.store.FetchRecent(ctx, groupID, n)
	if err != nil {
		r.logger.Error("fetch recent messages failed", "group_id", groupID, "err", err)
		return nil
	}
	reverse(batch)
	return batch
}

// ByDuration reconstructs every message newer than now−span by paging
// backward in batches of 100. The cursor starts at the "most recent"
// sentinel (0) and advances to the oldest sequence seen; the message whose
// sequence equals the cursor is the batch-boundary overlap and is skipped.
// Scanning walks each batch newest to oldest and stops at the first message
// strictly older than the cutoff. A mid-pagination failure returns whatever
// accumulated so far.
func (r *Retriever) ByDuration(ctx context.Context, groupID int64, span time.Duration) []domain.RawMessage {
	cutoff := r.now().Add(-span)

	var collected []domain.RawMessage
	var cursor int64 // 0 = most recent

	for {
		batch, err := r.store.FetchHistory(ctx, groupID, cursor, batchSize, true)
		if err != nil {
			r.logger.Error("fetch history failed, returning partial window",
				"group_id", groupID, "cursor", cursor, "collected", len(collected), "err", err)
			break
		}
		if len(batch) == 0 {
			break
		}

		crossed := false
		for _, msg := range batch {
			if msg.Seq == cursor && cursor != 0 {
				continue
			}
			if time.Unix(msg.Time, 0).Before(cutoff) {
				crossed = true
				break
			}
			collected = append(collected, msg)
			cursor = msg.Seq
		}
		if crossed {
			break
		}
		if len(batch) < batchSize {
			break // history exhausted
		}
	}

	reverse(collected)
	return collected
}

// reverse flips a newest-first slice into chronological order in place.
func reverse(msgs []domain.RawMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
