// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"bytes"
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// uinput ioctls and event codes, from linux/uinput.h and
// linux/input-event-codes.h.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busVirtual = 0x06
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// uinputSink is a virtual input device reporting a single key.
type uinputSink struct {
	f    *os.File
	code int
}

func openUinput(p, name string, code int) (*uinputSink, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	fd := int(f.Fd())
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "set event bit")
	}
	if err := unix.IoctlSetInt(fd, uiSetKeyBit, code); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "set key bit %d", code)
	}
	setup := uinputSetup{ID: inputID{Bustype: busVirtual}}
	copy(setup.Name[:len(setup.Name)-1], name)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup)))
	if errno != 0 {
		f.Close()
		return nil, errors.Wrap(errno, "setup device")
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "create device")
	}
	return &uinputSink{f: f, code: code}, nil
}

// Emit reports the key state, followed by a sync.
func (s *uinputSink) Emit(code int, pressed bool) error {
	if code != s.code {
		return errors.Errorf("key %d not supported", code)
	}
	var v int32
	if pressed {
		v = 1
	}
	var buf bytes.Buffer
	for _, ev := range []inputEvent{
		{Type: evKey, Code: uint16(code), Value: v},
		{Type: evSyn, Code: synReport},
	} {
		if err := binary.Write(&buf, binary.NativeEndian, ev); err != nil {
			return err
		}
	}
	_, err := s.f.Write(buf.Bytes())
	return err
}

func (s *uinputSink) Close() error {
	err := unix.IoctlSetInt(int(s.f.Fd()), uiDevDestroy, 0)
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
