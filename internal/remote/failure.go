package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a failed remote operation.
type Kind string

const (
	// KindTimeout means the request did not complete within its deadline.
	KindTimeout Kind = "timeout"
	// KindRejected means the platform answered with an error status.
	KindRejected Kind = "rejected"
	// KindUnreachable means no HTTP response was received at all.
	KindUnreachable Kind = "unreachable"
)

// Failure is the single error type returned by every Client operation.
type Failure struct {
	Kind       Kind
	Op         string
	StatusCode int    // set for KindRejected; 0 when a 2xx body was unusable
	Body       string // response body for KindRejected, truncated
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindRejected:
		if f.Err != nil {
			return fmt.Sprintf("remote %s returned an unusable response: %v", f.Op, f.Err)
		}
		if f.Body != "" {
			return fmt.Sprintf("remote %s rejected with HTTP %d: %s", f.Op, f.StatusCode, f.Body)
		}
		return fmt.Sprintf("remote %s rejected with HTTP %d", f.Op, f.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("remote %s timed out: %v", f.Op, f.Err)
	default:
		return fmt.Sprintf("remote %s unreachable: %v", f.Op, f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == kind
}

const maxBodyInError = 512

func rejected(op string, status int, body []byte) *Failure {
	b := string(body)
	if len(b) > maxBodyInError {
		b = b[:maxBodyInError] + "..."
	}
	return &Failure{Kind: KindRejected, Op: op, StatusCode: status, Body: b}
}

// transportFailure classifies an error returned by http.Client.Do.
func transportFailure(op string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Failure{Kind: KindTimeout, Op: op, Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return &Failure{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Failure{Kind: KindUnreachable, Op: op, Err: err}
}

// malformed reports a 2xx response whose body lacks what the operation needs.
func malformed(op string, body []byte, err error) *Failure {
	f := rejected(op, 0, body)
	f.Err = err
	return f
}
