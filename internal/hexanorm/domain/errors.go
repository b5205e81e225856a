package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them with errors.Is so callers can branch on
// the category without type assertions.
var (
	ErrIngest         = errors.New("ingest error")
	ErrMalformed      = errors.New("malformed descriptor")
	ErrDuplicateName  = errors.New("duplicate unit name")
	ErrConfiguration  = errors.New("configuration error")
	ErrDuplicateLayer = errors.New("duplicate layer")
	ErrUnknownLayer   = errors.New("unknown layer")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrInvalidLayer   = errors.New("invalid layer")
	ErrInvalidValue   = errors.New("invalid value")
	ErrRule           = errors.New("rule error")
)

type IngestErrorKind string

const (
	IngestMalformed     IngestErrorKind = "Malformed"
	IngestDuplicateName IngestErrorKind = "DuplicateName"
)

// IngestError aborts a run before any rule executes.
type IngestError struct {
	Kind   IngestErrorKind
	Name   string
	Index  int // position of the offending descriptor in the input
	Reason string
}

func (e *IngestError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("IngestError::%s: descriptor #%d: %s", e.Kind, e.Index, e.Reason)
	}
	return fmt.Sprintf("IngestError::%s: %s (descriptor #%d): %s", e.Kind, e.Name, e.Index, e.Reason)
}

func (e *IngestError) Is(target error) bool {
	switch target {
	case ErrIngest:
		return true
	case ErrMalformed:
		return e.Kind == IngestMalformed
	case ErrDuplicateName:
		return e.Kind == IngestDuplicateName
	}
	return false
}

type ConfigErrorKind string

const (
	ConfigDuplicateLayer ConfigErrorKind = "DuplicateLayer"
	ConfigUnknownLayer   ConfigErrorKind = "UnknownLayer"
	ConfigInvalidPattern ConfigErrorKind = "InvalidPattern"
	ConfigInvalidLayer   ConfigErrorKind = "InvalidLayer"
	ConfigInvalidValue   ConfigErrorKind = "InvalidValue"
)

// ConfigurationError describes a broken layer or rule declaration.
type ConfigurationError struct {
	Kind    ConfigErrorKind
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("ConfigurationError::%s: %q", e.Kind, e.Subject)
	}
	return fmt.Sprintf("ConfigurationError::%s: %q: %s", e.Kind, e.Subject, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return true
	case ErrDuplicateLayer:
		return e.Kind == ConfigDuplicateLayer
	case ErrUnknownLayer:
		return e.Kind == ConfigUnknownLayer
	case ErrInvalidPattern:
		return e.Kind == ConfigInvalidPattern
	case ErrInvalidLayer:
		return e.Kind == ConfigInvalidLayer
	case ErrInvalidValue:
		return e.Kind == ConfigInvalidValue
	}
	return false
}

func UnknownLayer(name string) *ConfigurationError {
	return &ConfigurationError{Kind: ConfigUnknownLayer, Subject: name, Reason: "layer is not registered"}
}

// RuleError records that a single rule could not be evaluated. Sibling rules are unaffected.
type RuleError struct {
	Rule  string
	Cause error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

func (e *RuleError) Is(target error) bool { return target == ErrRule }

// IsFatal reports whether err belongs to the categories that abort a run (ingest or configuration).
// A RuleError never is, even when its cause is a configuration problem.
func IsFatal(err error) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return false
	}
	return errors.Is(err, ErrIngest) || errors.Is(err, ErrConfiguration)
}
