package domain

import (
	"errors"
	"time"
)

// ProbeType selects which verification probe runs against a resource.
// The set is closed; dispatch is a single switch in the probe package.
type ProbeType string

const (
	ProbeStatic   ProbeType = "static"
	ProbeMailer   ProbeType = "mailer"
	ProbeTelegram ProbeType = "telegram"
)

func (t ProbeType) Valid() bool {
	switch t {
	case ProbeStatic, ProbeMailer, ProbeTelegram:
		return true
	}
	return false
}

// Sentinel errors surfaced synchronously by lifecycle operations.
var (
	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrNotFoundOrForbidden = errors.New("resource not found or access denied")
)

// Resource is a monitored target. Name is unique across all resources
// and doubles as the lookup key in the operator-facing front-ends.
type Resource struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Type      ProbeType         `json:"type"`
	Interval  int               `json:"interval"` // whole minutes, >= 1
	UserID    string            `json:"user_id"`
	Headers   map[string]string `json:"headers,omitempty"`
	Frequency *int              `json:"frequency,omitempty"`
	Period    string            `json:"period,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Log is the immutable record of one probe execution. Never mutated
// after creation; deleted only as a cascade of resource deletion.
type Log struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	Status     string    `json:"status"` // "success" or "error"
	Response   string    `json:"response"`
	Endpoint   string    `json:"endpoint"`
	DurationMS int64     `json:"duration_ms"`
	Result     bool      `json:"result"`
	CreatedAt  time.Time `json:"created_at"`
}
