package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a domain error. Handlers map kinds onto HTTP codes;
// ledgers never expose raw gorm errors.
type Kind string

const (
	NotFound      Kind = "not_found"
	Conflict      Kind = "conflict"
	Integrity     Kind = "integrity"
	Invalid       Kind = "invalid"
	Locked        Kind = "locked"
	HasDependents Kind = "has_dependents"
	Anomaly       Kind = "anomaly"
	Unauthorized  Kind = "unauthorized"
	Unavailable   Kind = "unavailable"
)

// Error carries the entity, the key and the invariant that failed.
type Error struct {
	Kind    Kind
	Entity  string // e.g. "meter", "charge"
	Key     string // e.g. meter_no, "tenant 3 / 2024-03"
	Field   string // set for Invalid
	Message string
	Err     error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Entity != "" {
		s += " " + e.Entity
	}
	if e.Key != "" {
		s += " " + e.Key
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, entity, key, message string) *Error {
	return &Error{Kind: kind, Entity: entity, Key: key, Message: message}
}

// Newf builds an error with a formatted message.
func Newf(kind Kind, entity, key, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Entity: entity, Key: key, Message: fmt.Sprintf(format, args...)}
}

// InvalidField builds a validation error carrying the failing field.
func InvalidField(entity, field, message string) *Error {
	return &Error{Kind: Invalid, Entity: entity, Field: field, Message: message}
}

// Wrap attaches kind and context to an underlying store error.
func Wrap(kind Kind, entity, key string, err error) *Error {
	return &Error{Kind: kind, Entity: entity, Key: key, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: Locked}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// UsageAnomaly is the structured payload of an Anomaly error: the new
// usage against the mean of recent readings and the configured threshold.
// The caller decides whether to retry with force.
type UsageAnomaly struct {
	Usage     decimal.Decimal
	Mean      decimal.Decimal
	Threshold decimal.Decimal
	Samples   int
}

// AnomalyError wraps a UsageAnomaly as a domain error.
type AnomalyError struct {
	Base   Error
	Detail UsageAnomaly
}

func (e *AnomalyError) Error() string { return e.Base.Error() }

// Unwrap exposes the underlying Error so KindOf and errors.As keep
// working on the wrapped form.
func (e *AnomalyError) Unwrap() error { return &e.Base }

// NewAnomaly builds an Anomaly error for a meter reading.
func NewAnomaly(key string, detail UsageAnomaly) *AnomalyError {
	return &AnomalyError{
		Base: Error{
			Kind:   Anomaly,
			Entity: "meter_reading",
			Key:    key,
			Message: fmt.Sprintf("usage %s deviates from mean %s of last %d readings (threshold %s)",
				detail.Usage.String(), detail.Mean.String(), detail.Samples, detail.Threshold.String()),
		},
		Detail: detail,
	}
}

// AnomalyDetail extracts the anomaly payload, if err carries one.
func AnomalyDetail(err error) (UsageAnomaly, bool) {
	var e *AnomalyError
	if errors.As(err, &e) {
		return e.Detail, true
	}
	return UsageAnomaly{}, false
}
