package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"upqueue/internal/models"
	"upqueue/internal/utils"
)

// ObjectPutter transmits raw bytes to a presigned destination.
type ObjectPutter interface {
	PutObject(ctx context.Context, url, contentType string, body []byte) error
}

type Dispatcher struct {
	putter ObjectPutter
	limit  int
	log    *slog.Logger
}

// NewDispatcher returns a dispatcher running at most limit uploads at once.
// limit <= 0 launches every upload immediately.
func NewDispatcher(putter ObjectPutter, limit int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{putter: putter, limit: limit, log: log}
}

// Dispatch uploads files[i] to slots[i] concurrently and waits for all of
// them. A failed upload only marks its own outcome; the returned error is set
// only when the uploads could not be started at all.
func (d *Dispatcher) Dispatch(ctx context.Context, files []utils.File, slots []models.UploadSlot) ([]models.FileUploadOutcome, error) {
	if err := validateSlots(files, slots); err != nil {
		return nil, err
	}

	outcomes := make([]models.FileUploadOutcome, len(slots))

	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}

	for i := range slots {
		i := i
		g.Go(func() error {
			outcomes[i] = d.upload(ctx, files[i], slots[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (d *Dispatcher) upload(ctx context.Context, file utils.File, slot models.UploadSlot) models.FileUploadOutcome {
	outcome := models.FileUploadOutcome{Slot: slot, FileName: file.Name}
	start := time.Now()

	data, err := file.ReadAll()
	if err != nil {
		outcome.ErrorDetail = fmt.Sprintf("read %s: %v", file.Name, err)
		d.log.Error("Upload failed", "file", file.Name, "error", err)
		return outcome
	}

	if err := d.putter.PutObject(ctx, slot.URL, file.ContentType, data); err != nil {
		outcome.ErrorDetail = err.Error()
		d.log.Error("Upload failed", "file", file.Name, "key", slot.Key, "error", err)
		return outcome
	}

	outcome.Succeeded = true
	d.log.Info("Upload complete", "file", file.Name, "key", slot.Key,
		"size", humanize.Bytes(uint64(len(data))), "took", time.Since(start).Round(time.Millisecond))
	return outcome
}

func validateSlots(files []utils.File, slots []models.UploadSlot) error {
	if len(slots) == 0 {
		return fmt.Errorf("%w: no slots", ErrAggregateTransport)
	}
	if len(files) != len(slots) {
		return fmt.Errorf("%w: %d files for %d slots", ErrAggregateTransport, len(files), len(slots))
	}
	for i, s := range slots {
		if s.Index != i {
			return fmt.Errorf("%w: slot %d out of order (index %d)", ErrAggregateTransport, i, s.Index)
		}
		if s.URL == "" {
			return fmt.Errorf("%w: slot %d has no url", ErrAggregateTransport, i)
		}
	}
	return nil
}
