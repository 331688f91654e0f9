// Package upload runs a presigned upload batch: allocate slots, PUT every
// file concurrently, then report the uploaded objects to the backend.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"upqueue/internal/models"
	"upqueue/internal/utils"
)

// Surface is the input the user drops files on. It is disabled while a batch
// is in flight.
type Surface interface {
	SetBusy(busy bool)
}

// Refresher is told to re-pull the processing state once a batch has been
// reported.
type Refresher interface {
	Refresh()
}

type BatchResult struct {
	ID       string
	Outcomes []models.FileUploadOutcome
	Reported int
}

func (r *BatchResult) Failed() []models.FileUploadOutcome {
	var failed []models.FileUploadOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o)
		}
	}
	return failed
}

type Batch struct {
	slots      *SlotRequester
	dispatcher *Dispatcher
	reporter   *Reporter
	refresher  Refresher
	log        *slog.Logger
}

func NewBatch(slots *SlotRequester, dispatcher *Dispatcher, reporter *Reporter, refresher Refresher, log *slog.Logger) *Batch {
	if log == nil {
		log = slog.Default()
	}
	return &Batch{
		slots:      slots,
		dispatcher: dispatcher,
		reporter:   reporter,
		refresher:  refresher,
		log:        log,
	}
}

// Submit uploads files as one batch. surface is busy from the first network
// call until Submit returns. When some uploads fail the successes are still
// reported and a *PartialUploadError names the rest.
func (b *Batch) Submit(ctx context.Context, surface Surface, files []utils.File) (*BatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	id := uuid.NewString()[:8]
	log := b.log.With("batch", id)

	if surface != nil {
		surface.SetBusy(true)
		defer surface.SetBusy(false)
	}

	log.Info("Batch started", "files", len(files))

	slots, err := b.slots.RequestSlots(ctx, len(files))
	if err != nil {
		log.Error("Slot request failed", "error", err)
		return nil, err
	}

	outcomes, err := b.dispatcher.Dispatch(ctx, files, slots)
	if err != nil {
		log.Error("Uploads not started", "error", err)
		return nil, err
	}

	result := &BatchResult{ID: id, Outcomes: outcomes}
	failed := result.Failed()

	reported, err := b.reporter.Report(ctx, outcomes)
	result.Reported = reported
	if !errors.Is(err, ErrNothingToReport) && b.refresher != nil {
		b.refresher.Refresh()
	}

	var partial error
	if len(failed) > 0 {
		partial = &PartialUploadError{Failed: failed, Total: len(outcomes)}
	}

	switch {
	case errors.Is(err, ErrNothingToReport):
		log.Error("Batch failed, no file uploaded", "files", len(files))
		return result, fmt.Errorf("%w: %w", ErrNothingToReport, partial)
	case err != nil:
		return result, err
	case partial != nil:
		log.Warn("Batch partially failed", "failed", len(failed), "files", len(files))
		return result, partial
	}

	log.Info("Batch complete", "files", len(files), "reported", reported)
	return result, nil
}
