package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrGalleryLoad is the single user-facing failure of a crawl. Any page or
// detail-page fetch failure is wrapped in it and no partial gallery is kept.
var ErrGalleryLoad = errors.New("failed to load gallery")

// Failure sentinels. A *FetchError matches the one for its Failure through
// errors.Is.
var (
	ErrTimeout     = errors.New("timed out")
	ErrConnection  = errors.New("connection failed")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrBadStatus   = errors.New("unexpected status")
)

// Phase names the step of a crawl a fetch belongs to.
type Phase string

const (
	PhaseOrigin  Phase = "origin"
	PhaseListing Phase = "listing"
	PhaseDetail  Phase = "detail"
	PhaseImage   Phase = "image"
)

// Failure says why a fetch failed. It doubles as the metrics label.
type Failure string

const (
	FailureTimeout     Failure = "timeout"
	FailureConnection  Failure = "connection"
	FailureForbidden   Failure = "forbidden"
	FailureNotFound    Failure = "not_found"
	FailureRateLimited Failure = "rate_limited"
	FailureStatus      Failure = "status"
	FailureCanceled    Failure = "canceled"
	FailureOther       Failure = "other"
)

var failureSentinels = map[Failure]error{
	FailureTimeout:     ErrTimeout,
	FailureConnection:  ErrConnection,
	FailureForbidden:   ErrForbidden,
	FailureNotFound:    ErrNotFound,
	FailureRateLimited: ErrRateLimited,
	FailureStatus:      ErrBadStatus,
}

// FetchError records which URL failed, in which phase and why.
// Phase is empty until the crawler tags the error.
type FetchError struct {
	URL     string
	Phase   Phase
	Status  int
	Failure Failure
	Err     error
}

// NewFetchError classifies err and status into a FetchError.
func NewFetchError(url string, status int, err error) *FetchError {
	return &FetchError{
		URL:     url,
		Status:  status,
		Failure: classifyFailure(err, status),
		Err:     err,
	}
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch ")
	if e.Phase != "" {
		b.WriteString(string(e.Phase))
		b.WriteByte(' ')
	}
	b.WriteString(e.URL)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	fmt.Fprintf(&b, " (%s)", e.Failure)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's failure.
func (e *FetchError) Is(target error) bool {
	sentinel, ok := failureSentinels[e.Failure]
	return ok && sentinel == target
}

// inPhase returns a copy of e tagged with phase. Fetchers may hand the same
// error to several callers, so the original is left untouched.
func (e *FetchError) inPhase(phase Phase) *FetchError {
	tagged := *e
	if tagged.Phase == "" {
		tagged.Phase = phase
	}
	return &tagged
}

func classifyFailure(err error, status int) Failure {
	switch {
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnection
	}

	switch status {
	case 0, http.StatusOK:
		return FailureOther
	case http.StatusForbidden:
		return FailureForbidden
	case http.StatusNotFound:
		return FailureNotFound
	case http.StatusTooManyRequests:
		return FailureRateLimited
	}
	return FailureStatus
}
