// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// Board is a collection of devices bound to the same hardware.
//
// Devices are available through Devices, in the order the bindings were
// added to NewBoard.
type Board struct {
	// The bound devices.
	Devices []*Device

	log *slog.Logger
}

// NewBoard binds the devices described by the provided options.
//
// The available options are [WithHardware], [WithBinding], [WithConfig],
// [WithLogger] and [WithTimeout].
//
// A WithHardware option and at least one binding must be provided.
// If any device fails to bind then the devices already bound are unbound
// and the error returned.
func NewBoard(options ...NewBoardOption) (*Board, error) {
	b := builder{timeout: DefaultTimeout}
	for _, o := range options {
		o.applyBoardOption(&b)
	}
	return b.live()
}

// builder contains all the information required to build a board.
type builder struct {
	hw       Hardware
	log      *slog.Logger
	timeout  time.Duration
	bindings []Binding
}

// live binds each of the devices in order.
func (b *builder) live() (*Board, error) {
	if b.hw == nil {
		return nil, errors.New("no hardware defined")
	}
	if len(b.bindings) == 0 {
		return nil, errors.New("no devices defined")
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	names := make(map[string]bool)
	for _, k := range b.bindings {
		if names[k.Name] {
			return nil, errors.Errorf("device with name '%s' already exists", k.Name)
		}
		names[k.Name] = true
	}
	bd := Board{log: b.log}
	for _, k := range b.bindings {
		d, err := Bind(b.hw, k, WithLogger(b.log), WithTimeout(b.timeout))
		if err != nil {
			bd.Close()
			return nil, err
		}
		bd.Devices = append(bd.Devices, d)
	}
	return &bd, nil
}

// Device returns the device with the given name.
func (b *Board) Device(name string) (*Device, error) {
	for _, d := range b.Devices {
		if d.name == name {
			return d, nil
		}
	}
	return nil, errors.Wrap(ErrUnknownDevice, name)
}

// Suspend applies the suspend transition to each device, in the reverse of
// bind order.
//
// If a device fails to suspend then the devices already suspended are
// resumed and the error returned.
func (b *Board) Suspend(t Transition) error {
	if t == Resume {
		return errors.New("resume is not a suspend transition")
	}
	for i := len(b.Devices) - 1; i >= 0; i-- {
		if err := b.Devices[i].PowerTransition(t); err != nil {
			for _, d := range b.Devices[i+1:] {
				if rerr := d.PowerTransition(Resume); rerr != nil {
					b.log.Warn("resume after failed suspend", "device", d.name, "error", rerr)
				}
			}
			return err
		}
	}
	return nil
}

// Resume resumes each device, in bind order.
//
// All devices are resumed, even if some fail, and the first error is
// returned.
func (b *Board) Resume() error {
	var firstErr error
	for _, d := range b.Devices {
		if err := d.PowerTransition(Resume); err != nil {
			b.log.Error("resume failed", "device", d.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close unbinds all the devices, in the reverse of bind order.
func (b *Board) Close() {
	for i := len(b.Devices) - 1; i >= 0; i-- {
		b.Devices[i].Unbind()
	}
	b.Devices = nil
}
