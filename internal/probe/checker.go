package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Checker reports whether a remote resource exists without fetching it.
type Checker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context, url string) (bool, error)

func (f CheckerFunc) Exists(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// StatusError is returned for responses outside the success class that are
// not a plain "not found".
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Failure reasons used in logs and run reports.
const (
	ReasonNotFound  = "not_found"
	ReasonStatus    = "status"
	ReasonTimeout   = "timeout"
	ReasonTransport = "transport"
)

// Classify maps the outcome of a failed check to a reason label.
// A nil error means the remote answered "not found".
func Classify(err error) string {
	if err == nil {
		return ReasonNotFound
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ReasonStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonTransport
}
