package upload

import (
	"context"
	"fmt"
	"log/slog"

	"upqueue/internal/config"
	"upqueue/internal/models"
)

// ManifestSink receives the manifest of uploaded objects.
type ManifestSink interface {
	CompleteFilesUpload(ctx context.Context, entries []models.ManifestEntry) error
}

type ManifestPolicy int

const (
	// ManifestSuccesses reports only the files that reached object storage.
	ManifestSuccesses ManifestPolicy = iota
	// ManifestAllSlots reports every slot of the batch, failed uploads
	// included. Kept for backends that expect the full slot list.
	ManifestAllSlots
)

func (p ManifestPolicy) String() string {
	switch p {
	case ManifestSuccesses:
		return config.ManifestSuccesses
	case ManifestAllSlots:
		return config.ManifestAllSlots
	}
	return fmt.Sprintf("ManifestPolicy(%d)", int(p))
}

func ParseManifestPolicy(s string) (ManifestPolicy, error) {
	switch s {
	case "", config.ManifestSuccesses:
		return ManifestSuccesses, nil
	case config.ManifestAllSlots:
		return ManifestAllSlots, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

type Reporter struct {
	sink   ManifestSink
	policy ManifestPolicy
	log    *slog.Logger
}

func NewReporter(sink ManifestSink, policy ManifestPolicy, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{sink: sink, policy: policy, log: log}
}

// Report submits the manifest built from outcomes and returns how many
// entries were sent. Without a single successful upload nothing is sent and
// ErrNothingToReport is returned.
func (r *Reporter) Report(ctx context.Context, outcomes []models.FileUploadOutcome) (int, error) {
	if countSucceeded(outcomes) == 0 {
		return 0, ErrNothingToReport
	}

	entries := BuildManifest(outcomes, r.policy)
	if err := r.sink.CompleteFilesUpload(ctx, entries); err != nil {
		r.log.Error("Completion report failed", "entries", len(entries), "error", err)
		return 0, err
	}

	r.log.Info("Completion reported", "entries", len(entries), "policy", r.policy)
	return len(entries), nil
}

func BuildManifest(outcomes []models.FileUploadOutcome, policy ManifestPolicy) []models.ManifestEntry {
	entries := make([]models.ManifestEntry, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Succeeded && policy != ManifestAllSlots {
			continue
		}
		entries = append(entries, models.ManifestEntry{
			URL:  o.Slot.URL,
			Key:  o.Slot.Key,
			Name: o.FileName,
		})
	}
	return entries
}

func countSucceeded(outcomes []models.FileUploadOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Succeeded {
			n++
		}
	}
	return n
}
