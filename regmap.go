// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// regmapController provides access to a register map through a cursor.
//
// The register to access is selected by writing reg_addr, and it is then
// read or written through reg_value.
type regmapController struct {
	d  *Device
	rm RegisterMap

	// the register selected by reg_addr
	addr uint8

	// the last value read from, or written to, the register map
	value uint8

	probeLength int
}

func newRegmapController(d *Device, hw Hardware, b Binding) (*regmapController, error) {
	rm, err := hw.OpenRegisterMap(b.Bus, b.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "open register map %s:0x%02x", b.Bus, b.Address)
	}
	return &regmapController{d: d, rm: rm, probeLength: b.ProbeLength}, nil
}

func (c *regmapController) attributes() []Attribute {
	return []Attribute{
		{Name: "reg_addr", Mode: AttrReadWrite},
		{Name: "reg_value", Mode: AttrReadWrite, Live: true},
	}
}

// start probes the head of the register map.
//
// The probe only confirms the device is responding, so failures are logged
// and do not fail the bind.
func (c *regmapController) start() error {
	if c.probeLength == 0 {
		return nil
	}
	data := make([]string, 0, c.probeLength)
	for a := 0; a < c.probeLength; a++ {
		var v uint8
		err := c.d.call(func() (err error) {
			v, err = c.rm.ReadReg(uint8(a))
			return err
		})
		if err != nil {
			c.d.log.Error("failed to transfer data", "error", err)
			return nil
		}
		data = append(data, fmt.Sprintf("0x%02x", v))
	}
	c.d.log.Info("received data", "data", strings.Join(data, ","))
	return nil
}

func (c *regmapController) show(name string) (string, error) {
	if name == "reg_addr" {
		return formatHexByte(c.addr), nil
	}
	var v uint8
	addr := c.addr
	err := c.d.call(func() (err error) {
		v, err = c.rm.ReadReg(addr)
		return err
	})
	if err != nil {
		return formatHexByte(c.value), errors.Wrapf(wrapKind(ErrActuatorRead, err), "register 0x%02x", addr)
	}
	c.value = v
	return formatHexByte(v), nil
}

func (c *regmapController) store(name, raw string) (string, error) {
	v, err := parseHexByte(raw)
	if err != nil {
		return "", err
	}
	if name == "reg_addr" {
		c.addr = v
		c.d.log.Debug("register selected", "addr", formatHexByte(v))
		return formatHexByte(v), nil
	}
	addr := c.addr
	if err := c.d.write(func() error { return c.rm.WriteReg(addr, v) }); err != nil {
		return "", errors.Wrapf(err, "register 0x%02x", addr)
	}
	c.value = v
	c.d.log.Debug("register written", "addr", formatHexByte(addr), "value", formatHexByte(v))
	return formatHexByte(v), nil
}

func (c *regmapController) suspend() error {
	return nil
}

func (c *regmapController) resume() error {
	return nil
}

func (c *regmapController) release() {
	c.d.close(c.rm, "register map")
}
