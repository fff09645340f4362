// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"strconv"

	"github.com/pkg/errors"
)

// thermalController simulates a temperature sensor.
//
// The reading is set by writing the attribute, and every change is
// broadcast to the device observers.
type thermalController struct {
	d    *Device
	attr string

	// millidegrees Celsius
	temp int
}

func newThermalController(d *Device, b Binding) *thermalController {
	c := &thermalController{d: d, attr: "temp", temp: DefaultTemp}
	if b.Emulation {
		c.attr = "emul_temp"
	}
	if b.InitialTemp != nil {
		c.temp = *b.InitialTemp
	}
	return c
}

func (c *thermalController) attributes() []Attribute {
	return []Attribute{{Name: c.attr, Mode: AttrReadWrite}}
}

func (c *thermalController) start() error {
	return nil
}

func (c *thermalController) show(string) (string, error) {
	return strconv.Itoa(c.temp), nil
}

func (c *thermalController) store(_, raw string) (string, error) {
	t, err := parseDecimal(raw)
	if err != nil {
		return "", err
	}
	c.temp = t
	return strconv.Itoa(t), nil
}

func (c *thermalController) suspend() error {
	return nil
}

func (c *thermalController) resume() error {
	return nil
}

func (c *thermalController) release() {}

// Temperature returns the reading of a thermal device, in millidegrees
// Celsius.
func (d *Device) Temperature() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.ctl.(*thermalController)
	if !ok {
		return 0, errors.Errorf("%s: not a thermal device", d.name)
	}
	if !d.bound {
		return 0, errors.Wrap(ErrUnbound, d.name)
	}
	return c.temp, nil
}
