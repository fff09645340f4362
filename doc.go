// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package devctl is a library for binding simple devices to their actuators
and controlling them through a set of named, textual attributes, in the
manner of the sysfs attributes exposed by Linux drivers.

A [Binding] describes a device: its [Kind], and the register map, GPIO
line, PWM channel, pin group or wake source it owns. [Bind] acquires those
actuators from a [Hardware] and commits their initial configuration,
returning a [Device].

The Device keeps a shadow of its actuator state, which is read and written
through [Device.ReadAttribute] and [Device.WriteAttribute]. Writes are
applied to the actuator before the shadow is updated, so a failed write
leaves the device unchanged. Observers registered with [Device.Watch] are
notified of every committed change.

The kinds of device are:

  - regmap: an I2C style register map, accessed by selecting a register
    with reg_addr then reading or writing reg_value.
  - pwm-fan: a fan with speed set by the PWM duty cycle, through fan1_input,
    and optionally powered through a GPIO, via fan_gpio_value.
  - gpio-fan: a fan switched through a GPIO, via fan_gpio_value.
  - thermal: a simulated temperature sensor, set through temp or emul_temp.
  - input: a simulated key, pressed and released through mi_event.

System power transitions are applied with [Device.PowerTransition].
Suspending to RAM quiesces the actuators and selects the sleep pin
configuration, and resuming selects the default configuration and restores
the actuators from the shadow state.

A [Board] binds a set of devices, typically loaded from a YAML [Config],
and applies power transitions across them in kernel order.

[LinuxHardware] provides actuators through the GPIO character device,
i2c-dev, the PWM sysfs class and uinput, so root permissions are typically
required to bind to real hardware. The simhw package provides simulated
hardware for testing.

# Example Usage

Bind a PWM fan and slow it to half speed:

	d, err := devctl.Bind(&devctl.LinuxHardware{}, devctl.Binding{
		Name: "fan0",
		Kind: devctl.KindPWMFan,
		PWM:  &devctl.PWMRef{Chip: "pwmchip0", Channel: 0, Period: 40000},
	})
	defer d.Unbind()
	_, err = d.WriteAttribute("fan1_input", []byte("20000"))

Bind the devices described in a configuration file:

	cfg, err := devctl.LoadConfig("/etc/devctl.yaml")
	b, err := devctl.NewBoard(
		devctl.WithHardware(&devctl.LinuxHardware{}),
		devctl.WithConfig(cfg),
	)
	defer b.Close()
	d, err := b.Device("sensor")
	temp, err := d.ReadAttribute("temp")
*/
package devctl
