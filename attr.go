// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AttrMode indicates the access permitted to an attribute.
type AttrMode int

const (
	// AttrRead permits reads.
	AttrRead AttrMode = 1 << iota

	// AttrWrite permits writes.
	AttrWrite

	// AttrReadWrite permits both reads and writes.
	AttrReadWrite = AttrRead | AttrWrite
)

// Attribute describes an attribute exposed by a device.
type Attribute struct {
	Name string
	Mode AttrMode

	// Reads access the actuator, rather than returning shadow state.
	Live bool
}

// Readable returns true if the attribute can be read.
func (a Attribute) Readable() bool {
	return a.Mode&AttrRead != 0
}

// Writable returns true if the attribute can be written.
func (a Attribute) Writable() bool {
	return a.Mode&AttrWrite != 0
}

// Event reports a change to an attribute.
type Event struct {
	// The name of the device.
	Device string

	// The name of the attribute.
	Attribute string

	// The new value, formatted as it would be read.
	Value string

	// Orders events from the same device.
	//
	// Observers may receive events from concurrent writers out of order,
	// and should discard events older than the last seen.
	Seq uint64
}

// payload strips the whitespace a shell adds to attribute writes.
func payload(raw string) string {
	return strings.TrimSpace(raw)
}

// parseHexByte parses a byte written as two hex digits, with an optional
// 0x prefix.
func parseHexByte(raw string) (uint8, error) {
	s := payload(raw)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != 2 {
		return 0, errors.Wrapf(ErrInvalidValue, "'%s' is not a hex byte", payload(raw))
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "'%s' is not a hex byte", payload(raw))
	}
	return uint8(v), nil
}

func formatHexByte(v uint8) string {
	return fmt.Sprintf("%02x", v)
}

// parseDecimal parses a signed decimal integer.
func parseDecimal(raw string) (int, error) {
	s := payload(raw)
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidValue, "'%s' is not a decimal integer", s)
	}
	return int(v), nil
}

// parseLevel parses a GPIO level, "0" or "1".
func parseLevel(raw string) (int, error) {
	switch payload(raw) {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, errors.Wrapf(ErrInvalidValue, "'%s' is not a level", payload(raw))
}
