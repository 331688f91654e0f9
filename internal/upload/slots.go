package upload

import (
	"context"
	"fmt"
	"log/slog"

	"upqueue/internal/models"
)

// SlotSource allocates presigned upload destinations.
type SlotSource interface {
	GetUploadURLs(ctx context.Context, count int) ([]models.SlotLink, error)
}

type SlotRequester struct {
	src      SlotSource
	maxBatch int
	log      *slog.Logger
}

// NewSlotRequester returns a requester that refuses batches larger than
// maxBatch. maxBatch <= 0 means no limit.
func NewSlotRequester(src SlotSource, maxBatch int, log *slog.Logger) *SlotRequester {
	if log == nil {
		log = slog.Default()
	}
	return &SlotRequester{src: src, maxBatch: maxBatch, log: log}
}

// RequestSlots returns exactly n slots, slot i belonging to file i.
func (r *SlotRequester) RequestSlots(ctx context.Context, n int) ([]models.UploadSlot, error) {
	if n < 1 {
		return nil, ErrNoFiles
	}
	if r.maxBatch > 0 && n > r.maxBatch {
		return nil, fmt.Errorf("%w: %d files, limit %d", ErrBatchTooLarge, n, r.maxBatch)
	}

	links, err := r.src.GetUploadURLs(ctx, n)
	if err != nil {
		return nil, err
	}

	if len(links) != n {
		r.log.Error("Slot count mismatch", "requested", n, "received", len(links))
		return nil, fmt.Errorf("%w: requested %d, received %d", ErrProtocolMismatch, n, len(links))
	}

	slots := make([]models.UploadSlot, n)
	for i, link := range links {
		if link.Url == "" {
			return nil, fmt.Errorf("%w: slot %d has no url", ErrProtocolMismatch, i)
		}
		slots[i] = models.UploadSlot{Index: i, URL: link.Url, Key: link.Key}
	}

	r.log.Debug("Upload slots allocated", "count", n)
	return slots, nil
}
