package api

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoBaseURL = errors.New("api: base url missing")
)

// TransportError is returned when a backend or object storage request could
// not complete: the connection failed, the response status was not 2xx, or the
// body could not be decoded.
type TransportError struct {
	Op         string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("api: %s: unexpected status %s", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err carries a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func checkResponse(resp *req.Response, requestErr error, op string) error {
	if requestErr != nil {
		return &TransportError{Op: op, Err: requestErr}
	}

	if !resp.IsSuccessState() {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return nil
}
