// Package processor drains the reference backend queue one file at a time.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"upqueue/internal/blobstore"
	"upqueue/internal/models"
	"upqueue/internal/storage"
)

const idleDelay = 500 * time.Millisecond

var ErrNotUploaded = errors.New("object was never uploaded")

// Notifier tells clients their state changed.
type Notifier interface {
	Notify(userID string)
	BroadcastUpdate()
}

type Processor struct {
	store         *storage.Storage
	hub           Notifier
	blobs         blobstore.Allocator
	delay         time.Duration
	outdatedAfter time.Duration
	log           *slog.Logger
}

func New(store *storage.Storage, hub Notifier, blobs blobstore.Allocator, delay, outdatedAfter time.Duration, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:         store,
		hub:           hub,
		blobs:         blobs,
		delay:         delay,
		outdatedAfter: outdatedAfter,
		log:           log,
	}
}

func (p *Processor) Start(ctx context.Context) {
	go p.worker(ctx)
}

func (p *Processor) worker(ctx context.Context) {
	for {
		p.ExpireOutdated()

		if !p.ProcessNext(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleDelay):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// ProcessNext handles the oldest pending file. It reports false when the
// queue was empty or ctx ended before the file was handled.
func (p *Processor) ProcessNext(ctx context.Context) bool {
	item, ok := p.store.NextPending()
	if !ok {
		return false
	}

	p.log.Info("Processing", "id", item.Id, "name", item.FileName, "user", item.UserID)

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.delay):
		}
	}

	exists, err := p.blobs.Exists(ctx, item.SrcKey)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.fail(item, err)
		return true
	}
	if !exists {
		p.fail(item, ErrNotUploaded)
		return true
	}

	link, err := p.blobs.DownloadURL(ctx, item.SrcKey)
	if err != nil {
		p.fail(item, err)
		return true
	}

	p.store.MarkProcessed(item.Id, link)
	// every pending file moved up one position
	p.hub.BroadcastUpdate()
	p.log.Info("Processing complete", "id", item.Id)
	return true
}

// ExpireOutdated marks files processed longer than outdatedAfter ago.
func (p *Processor) ExpireOutdated() {
	if p.outdatedAfter <= 0 {
		return
	}
	for _, userID := range p.store.MarkOutdated(time.Now().Add(-p.outdatedAfter)) {
		p.hub.Notify(userID)
	}
}

func (p *Processor) fail(item models.UserFile, err error) {
	p.store.MarkFailed(item.Id, err.Error())
	p.hub.BroadcastUpdate()
	p.log.Error("Processing failed", "id", item.Id, "error", err)
}
