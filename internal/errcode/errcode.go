// Package errcode defines the stable error codes raised by the allocation
// engine. Every fatal condition of a generation run maps to exactly one Code,
// so callers and tests can match failures with errors.Is regardless of the
// human-readable message.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier. It is a string newtype, comparable, and
// implements error so it can be used directly as a sentinel.
type Code string

func (c Code) Error() string { return string(c) }

const (
	UnknownResource        Code = "unknown_resource"
	WrongResourceType      Code = "wrong_resource_type"
	MalformedRequirement   Code = "malformed_requirement"
	StructuralValidation   Code = "structural_validation"
	ResourceConflict       Code = "resource_conflict"
	InvalidDeviceID        Code = "invalid_device_id"
	DuplicateDeviceID      Code = "duplicate_device_id"
	ConflictingExtiLine    Code = "conflicting_exti_line"
	UnsupportedDevice      Code = "unsupported_device"
	UnknownMCU             Code = "unknown_mcu"
	DuplicateVocabularyKey Code = "duplicate_vocabulary_key"

	Error Code = "error" // generic fallback
)

// E carries a Code together with the offending device and an optional cause.
type E struct {
	C      Code
	Device string
	Msg    string
	Err    error
}

func (e *E) Error() string {
	switch {
	case e.Device != "" && e.Msg != "":
		return fmt.Sprintf("%s: device %s: %s", e.C, e.Device, e.Msg)
	case e.Msg != "":
		return string(e.C) + ": " + e.Msg
	case e.Device != "":
		return fmt.Sprintf("%s: device %s", e.C, e.Device)
	}
	return string(e.C)
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.ResourceConflict) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for a device with a formatted message.
func New(c Code, device, format string, args ...any) *E {
	return &E{C: c, Device: device, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and device to an underlying error.
func Wrap(c Code, device string, err error) *E {
	return &E{C: c, Device: device, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
