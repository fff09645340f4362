// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"github.com/pkg/errors"
)

// inputController simulates a single key.
//
// Writing mi_event reports the key as pressed, for non-zero values, or
// released.
type inputController struct {
	d    *Device
	sink InputSink
	code int
}

func newInputController(d *Device, hw Hardware, b Binding) (*inputController, error) {
	code := b.KeyCode
	if code == 0 {
		code = DefaultKeyCode
	}
	sink, err := hw.OpenInput(b.Name, code)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	return &inputController{d: d, sink: sink, code: code}, nil
}

func (c *inputController) attributes() []Attribute {
	return []Attribute{{Name: "mi_event", Mode: AttrWrite}}
}

func (c *inputController) start() error {
	return nil
}

func (c *inputController) show(string) (string, error) {
	return "", ErrNotReadable
}

func (c *inputController) store(_, raw string) (string, error) {
	v, err := parseDecimal(raw)
	if err != nil {
		return "", err
	}
	pressed := v != 0
	if err := c.d.write(func() error { return c.sink.Emit(c.code, pressed) }); err != nil {
		return "", err
	}
	c.d.log.Debug("key event", "code", c.code, "pressed", pressed)
	if pressed {
		return "1", nil
	}
	return "0", nil
}

func (c *inputController) suspend() error {
	return nil
}

func (c *inputController) resume() error {
	return nil
}

func (c *inputController) release() {
	c.d.close(c.sink, "input")
}

// KeyCode returns the key reported by an input device.
func (d *Device) KeyCode() (int, error) {
	c, ok := d.ctl.(*inputController)
	if !ok {
		return 0, errors.Errorf("%s: not an input device", d.name)
	}
	return c.code, nil
}
