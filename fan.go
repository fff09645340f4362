// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"strconv"

	"github.com/pkg/errors"
)

// pwmFanController drives a fan speed through the duty cycle of a PWM
// channel, and optionally the fan power through a GPIO.
type pwmFanController struct {
	d    *Device
	pwm  PWM
	line Line // optional

	period int

	// the commanded duty cycle, in the range [0, period]
	duty int

	// the commanded level of line
	level int
}

func newPWMFanController(d *Device, hw Hardware, b Binding) (*pwmFanController, error) {
	pwm, err := hw.RequestPWM(*b.PWM)
	if err != nil {
		return nil, errors.Wrapf(err, "request pwm %s:%d", b.PWM.Chip, b.PWM.Channel)
	}
	c := &pwmFanController{d: d, pwm: pwm, period: b.PWM.Period, duty: b.PWM.Period}
	if b.GPIO != nil {
		// the fan is powered from bind
		c.level = 1
		c.line, err = hw.RequestLine(*b.GPIO, c.level)
		if err != nil {
			pwm.Close()
			return nil, errors.Wrapf(err, "request gpio %s:%d", b.GPIO.Chip, b.GPIO.Offset)
		}
	}
	return c, nil
}

func (c *pwmFanController) attributes() []Attribute {
	aa := []Attribute{
		{Name: "fan1_input", Mode: AttrReadWrite},
		{Name: "fan1_min", Mode: AttrRead},
		{Name: "fan1_max", Mode: AttrRead},
	}
	if c.line != nil {
		aa = append([]Attribute{{Name: "fan_gpio_value", Mode: AttrReadWrite}}, aa...)
	}
	return aa
}

// start runs the fan at full speed.
func (c *pwmFanController) start() error {
	c.d.log.Info("pwm configured", "period", c.period)
	return c.apply()
}

// apply drives the PWM to the shadow duty cycle and enables it.
func (c *pwmFanController) apply() error {
	if err := c.d.write(func() error { return c.pwm.Configure(c.duty, c.period) }); err != nil {
		return errors.Wrap(err, "configure pwm")
	}
	if err := c.d.write(c.pwm.Enable); err != nil {
		return errors.Wrap(err, "enable pwm")
	}
	return nil
}

func (c *pwmFanController) show(name string) (string, error) {
	switch name {
	case "fan_gpio_value":
		return strconv.Itoa(c.level), nil
	case "fan1_input":
		return strconv.Itoa(c.duty), nil
	case "fan1_min":
		return "0", nil
	}
	return strconv.Itoa(c.period), nil
}

func (c *pwmFanController) store(name, raw string) (string, error) {
	if name == "fan_gpio_value" {
		v, err := parseLevel(raw)
		if err != nil {
			return "", err
		}
		if err := c.d.write(func() error { return c.line.SetValue(v) }); err != nil {
			return "", err
		}
		c.level = v
		return strconv.Itoa(v), nil
	}
	duty, err := parseDecimal(raw)
	if err != nil {
		return "", err
	}
	if duty < 0 || duty > c.period {
		c.d.log.Info("duty cycle out of range", "duty", duty, "max", c.period)
		return "", errors.Wrapf(ErrOutOfRange, "duty %d not in [0, %d]", duty, c.period)
	}
	if err := c.d.write(func() error { return c.pwm.Configure(duty, c.period) }); err != nil {
		return "", err
	}
	c.duty = duty
	c.d.log.Info("new duty cycle", "duty", duty)
	return strconv.Itoa(duty), nil
}

// suspend stops the fan, leaving the shadow state for resume.
func (c *pwmFanController) suspend() error {
	if err := c.d.write(func() error { return c.pwm.Configure(0, c.period) }); err != nil {
		return errors.Wrap(err, "configure pwm")
	}
	if err := c.d.write(c.pwm.Disable); err != nil {
		return errors.Wrap(err, "disable pwm")
	}
	return nil
}

func (c *pwmFanController) resume() error {
	if err := c.apply(); err != nil {
		return err
	}
	if c.line != nil {
		if err := c.d.write(func() error { return c.line.SetValue(c.level) }); err != nil {
			return errors.Wrap(err, "restore gpio")
		}
	}
	return nil
}

func (c *pwmFanController) release() {
	if err := c.d.call(c.pwm.Disable); err != nil {
		c.d.log.Warn("disabling pwm failed", "error", err)
	}
	c.d.close(c.pwm, "pwm")
	if c.line != nil {
		releaseLine(c.d, c.line)
	}
}

// gpioFanController switches a fan on and off through a GPIO.
type gpioFanController struct {
	d     *Device
	line  Line
	level int
}

func newGPIOFanController(d *Device, hw Hardware, b Binding) (*gpioFanController, error) {
	level := 0
	if b.GPIO.Initial != 0 {
		level = 1
	}
	line, err := hw.RequestLine(*b.GPIO, level)
	if err != nil {
		return nil, errors.Wrapf(err, "request gpio %s:%d", b.GPIO.Chip, b.GPIO.Offset)
	}
	return &gpioFanController{d: d, line: line, level: level}, nil
}

func (c *gpioFanController) attributes() []Attribute {
	return []Attribute{{Name: "fan_gpio_value", Mode: AttrReadWrite}}
}

func (c *gpioFanController) start() error {
	return nil
}

func (c *gpioFanController) show(string) (string, error) {
	return strconv.Itoa(c.level), nil
}

func (c *gpioFanController) store(_, raw string) (string, error) {
	v, err := parseLevel(raw)
	if err != nil {
		return "", err
	}
	if err := c.d.write(func() error { return c.line.SetValue(v) }); err != nil {
		return "", err
	}
	c.level = v
	return strconv.Itoa(v), nil
}

func (c *gpioFanController) suspend() error {
	return c.d.write(func() error { return c.line.SetValue(0) })
}

func (c *gpioFanController) resume() error {
	return c.d.write(func() error { return c.line.SetValue(c.level) })
}

func (c *gpioFanController) release() {
	releaseLine(c.d, c.line)
}

// releaseLine deselects the line and releases it.
func releaseLine(d *Device, l Line) {
	if err := d.call(func() error { return l.SetValue(0) }); err != nil {
		d.log.Warn("deselecting gpio failed", "error", err)
	}
	d.close(l, "gpio")
}
