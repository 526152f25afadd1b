// Package upstream classifies failures of calls to external HTTP services.
package upstream

import (
	"errors"
	"fmt"
)

// Kind says where an upstream call broke down.
type Kind string

const (
	// no response object came back (dial, TLS, reset, client timeout)
	KindNoResponse Kind = "no_response"
	// the upstream answered with a non-2xx status
	KindHTTPStatus Kind = "http_status"
	// the request could not be built or encoded locally
	KindRequestSetup Kind = "request_setup"
)

type Error struct {
	Provider string
	Op       string
	Kind     Kind
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		msg := fmt.Sprintf("%s %s: upstream returned HTTP %d", e.Provider, e.Op, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	case KindNoResponse:
		return fmt.Sprintf("%s %s: no response from upstream: %v", e.Provider, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s: request setup failed: %v", e.Provider, e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func NoResponse(provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Kind: KindNoResponse, Err: err}
}

func RequestSetup(provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Kind: KindRequestSetup, Err: err}
}

func HTTPStatus(provider, op string, status int, body string) *Error {
	const maxBody = 300
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return &Error{Provider: provider, Op: op, Kind: KindHTTPStatus, Status: status, Body: body}
}

// KindOf returns the classification of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}
