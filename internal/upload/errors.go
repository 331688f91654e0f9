package upload

import (
	"errors"
	"fmt"
	"strings"

	"upqueue/internal/models"
)

var (
	ErrNoFiles            = errors.New("upload: no files to upload")
	ErrBatchTooLarge      = errors.New("upload: batch too large")
	ErrProtocolMismatch   = errors.New("upload: slot count does not match file count")
	ErrAggregateTransport = errors.New("upload: cannot start uploads")
	ErrNothingToReport    = errors.New("upload: no successful uploads to report")
	ErrUnknownPolicy      = errors.New("upload: unknown manifest policy")
)

// PartialUploadError lists the files whose upload failed. The user has to
// submit them again.
type PartialUploadError struct {
	Failed []models.FileUploadOutcome
	Total  int
}

func (e *PartialUploadError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		names = append(names, o.FileName)
	}
	return fmt.Sprintf("upload: %d of %d uploads failed: %s", len(e.Failed), e.Total, strings.Join(names, ", "))
}

// FailedNames returns the names of the files that must be retried.
func (e *PartialUploadError) FailedNames() []string {
	names := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		names = append(names, o.FileName)
	}
	return names
}
