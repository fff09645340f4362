// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"github.com/pkg/errors"
)

var (
	// ErrBindFailure indicates the actuators for a device could not be
	// acquired or initialised.
	ErrBindFailure = errors.New("bind failed")

	// ErrUnbound indicates the device has been unbound.
	ErrUnbound = errors.New("device not bound")

	// ErrUnknownDevice indicates a board has no device with the requested name.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnknownAttribute indicates the device does not expose the named
	// attribute.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrNotReadable indicates the attribute is write-only.
	ErrNotReadable = errors.New("attribute not readable")

	// ErrNotWritable indicates the attribute is read-only.
	ErrNotWritable = errors.New("attribute not writable")

	// ErrInvalidValue indicates a malformed attribute payload.
	ErrInvalidValue = errors.New("invalid value")

	// ErrOutOfRange indicates a well formed value that exceeds the bounds
	// of the attribute.
	//
	// It is also an ErrInvalidValue.
	ErrOutOfRange error = &kindError{kind: ErrInvalidValue, err: errors.New("out of range")}

	// ErrActuatorRead indicates a failed read from the underlying actuator.
	ErrActuatorRead = errors.New("actuator read failed")

	// ErrActuatorWrite indicates a failed write to the underlying actuator.
	ErrActuatorWrite = errors.New("actuator write failed")

	// ErrActuatorTimeout indicates the actuator did not complete the
	// operation within the device timeout.
	ErrActuatorTimeout = errors.New("actuator timed out")

	// ErrPinControl indicates a pin configuration could not be selected.
	ErrPinControl = errors.New("pin control failed")

	// ErrPinStateNotFound is returned by a PinController when the requested
	// state is not defined.
	//
	// Devices treat this as success.
	ErrPinStateNotFound = errors.New("pin state not found")
)

// kindError attaches one of the error kinds to an underlying cause so both
// can be matched with errors.Is.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.err
}

// wrapKind returns err classified as kind.
//
// Errors already of that kind are returned unchanged.
func wrapKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}
