package probe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avolkov/webtracker/internal/domain"
)

// UnknownTypeError reports a probe type outside the closed set.
type UnknownTypeError struct {
	Type domain.ProbeType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown resource type: %s", e.Type)
}

// ContentError reports an unexpected content type or an unparsable body.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string { return e.Reason }

// TransportError wraps a network/timeout failure on an outbound probe
// request. Description holds the structured description field from a
// partial response body, when one was received.
type TransportError struct {
	URL         string
	Err         error
	StatusCode  int
	Description string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MailerStepError tags a failed mailer sub-step with its endpoint name.
type MailerStepError struct {
	Step string // "verify" or "sendadmin"
	Err  error
}

func (e *MailerStepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *MailerStepError) Unwrap() error { return e.Err }

// ErrorText extracts the message to log and alert with for a probe
// error, preferring a structured description over the raw error text.
func ErrorText(err error) string {
	var te *TransportError
	if errors.As(err, &te) && te.Description != "" {
		return te.Description
	}
	return err.Error()
}

// ErrorStatusCode returns the HTTP status carried by a probe error,
// or 0 when no response was received.
func ErrorStatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// description pulls the conventional {"description": "..."} field out
// of an error response body, if the body is shaped that way.
func description(body []byte) string {
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Description
}
