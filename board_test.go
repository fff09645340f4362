// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-devctl"
	"github.com/warthog618/go-devctl/simhw"
)

func sensor(name string) devctl.Binding {
	return devctl.Binding{Name: name, Kind: devctl.KindThermal}
}

func TestNewBoard(t *testing.T) {
	hw := simhw.New()
	hw.AddRegisterMap("/dev/i2c-3", 0x50)
	b, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(devctl.Binding{Name: "eeprom", Kind: devctl.KindRegisterMap, Bus: "/dev/i2c-3", Address: 0x50}),
		devctl.WithBinding(pwmFan("fan0")),
		devctl.WithBinding(sensor("sensor")),
	)
	require.Nil(t, err)
	require.NotNil(t, b)
	defer b.Close()

	require.Len(t, b.Devices, 3)
	assert.Equal(t, "eeprom", b.Devices[0].Name())
	assert.Equal(t, "fan0", b.Devices[1].Name())
	assert.Equal(t, "sensor", b.Devices[2].Name())

	d, err := b.Device("fan0")
	assert.Nil(t, err)
	assert.Equal(t, b.Devices[1], d)
	d, err = b.Device("fan9")
	assert.ErrorIs(t, err, devctl.ErrUnknownDevice)
	assert.Nil(t, d)
}

func TestNewBoardErrors(t *testing.T) {
	hw := simhw.New()

	// no hardware
	b, err := devctl.NewBoard(devctl.WithBinding(sensor("sensor")))
	assert.NotNil(t, err)
	assert.Nil(t, b)

	// no devices
	b, err = devctl.NewBoard(devctl.WithHardware(hw))
	assert.NotNil(t, err)
	assert.Nil(t, b)

	// non-unique name
	b, err = devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(sensor("sensor")),
		devctl.WithBinding(sensor("sensor")),
	)
	assert.NotNil(t, err)
	assert.Nil(t, b)

	// bind failure releases the devices already bound
	b, err = devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(pwmFan("fan0")),
		devctl.WithBinding(devctl.Binding{Name: "eeprom", Kind: devctl.KindRegisterMap, Bus: "/dev/i2c-7", Address: 0x50}),
	)
	assert.ErrorIs(t, err, devctl.ErrBindFailure)
	assert.Nil(t, b)
	assert.False(t, hw.PWM("pwmchip0", 0).Claimed())
	assert.False(t, hw.PWM("pwmchip0", 0).Enabled())
}

func TestBoardSuspendResume(t *testing.T) {
	hw := simhw.New()
	fan1 := devctl.Binding{
		Name: "fan1",
		Kind: devctl.KindGPIOFan,
		GPIO: &devctl.LineRef{Chip: "gpiochip0", Offset: 2, Initial: 1},
	}
	fan0 := pwmFan("fan0")
	fan0.Pins = fanPins()
	b, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(fan0),
		devctl.WithBinding(fan1),
	)
	require.Nil(t, err)
	defer b.Close()

	err = b.Suspend(devctl.SuspendToRAM)
	assert.Nil(t, err)
	for _, d := range b.Devices {
		assert.Equal(t, devctl.ModeSleep, d.Mode())
	}
	assert.False(t, hw.PWM("pwmchip0", 0).Enabled())
	assert.Equal(t, 0, hw.Line("gpiochip0", 2).Value())

	err = b.Resume()
	assert.Nil(t, err)
	for _, d := range b.Devices {
		assert.Equal(t, devctl.ModeActive, d.Mode())
	}
	assert.True(t, hw.PWM("pwmchip0", 0).Enabled())
	assert.Equal(t, 1, hw.Line("gpiochip0", 2).Value())

	err = b.Suspend(devctl.Resume)
	assert.NotNil(t, err)
}

func TestBoardSuspendRollback(t *testing.T) {
	hw := simhw.New()
	fan0 := pwmFan("fan0")
	fan0.Pins = fanPins()
	fan1 := devctl.Binding{
		Name: "fan1",
		Kind: devctl.KindGPIOFan,
		GPIO: &devctl.LineRef{Chip: "gpiochip0", Offset: 2, Initial: 1},
	}
	b, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(fan0),
		devctl.WithBinding(fan1),
	)
	require.Nil(t, err)
	defer b.Close()

	// fan1 suspends first, then fan0 fails and fan1 is resumed
	hw.Pins("gpiochip1", 4, 5).SetError(errors.New("pinmux busy"))
	err = b.Suspend(devctl.SuspendToRAM)
	assert.ErrorIs(t, err, devctl.ErrPinControl)
	assert.Equal(t, devctl.ModeActive, b.Devices[1].Mode())
	assert.Equal(t, 1, hw.Line("gpiochip0", 2).Value())
	// fan0 is restored by its own failed suspend
	assert.Equal(t, devctl.ModeActive, b.Devices[0].Mode())
	assert.True(t, hw.PWM("pwmchip0", 0).Enabled())
	assert.Equal(t, 1000, hw.PWM("pwmchip0", 0).Duty())
}

func TestBoardResumeContinues(t *testing.T) {
	hw := simhw.New()
	fan0 := pwmFan("fan0")
	fan1 := devctl.Binding{
		Name: "fan1",
		Kind: devctl.KindGPIOFan,
		GPIO: &devctl.LineRef{Chip: "gpiochip0", Offset: 2, Initial: 1},
	}
	b, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(fan0),
		devctl.WithBinding(fan1),
	)
	require.Nil(t, err)
	defer b.Close()

	require.Nil(t, b.Suspend(devctl.SuspendToRAM))
	fault := errors.New("i/o error")
	hw.PWM("pwmchip0", 0).SetError(fault)
	err = b.Resume()
	assert.ErrorIs(t, err, fault)
	// fan1 is resumed despite fan0 failing
	assert.Equal(t, 1, hw.Line("gpiochip0", 2).Value())
	assert.Equal(t, devctl.ModeActive, b.Devices[1].Mode())
	hw.PWM("pwmchip0", 0).SetError(nil)
}

func TestBoardClose(t *testing.T) {
	hw := simhw.New()
	fan0 := pwmFan("fan0")
	fan0.GPIO = &devctl.LineRef{Chip: "gpiochip0", Offset: 7}
	b, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithBinding(fan0),
		devctl.WithBinding(sensor("sensor")),
	)
	require.Nil(t, err)
	dd := b.Devices
	b.Close()
	assert.Empty(t, b.Devices)
	checkQuiescent(t, hw)
	for _, d := range dd {
		_, err := d.ReadAttribute(d.Attributes()[0].Name)
		assert.ErrorIs(t, err, devctl.ErrUnbound)
	}
	// idempotent
	b.Close()
}

func TestBoardFromConfig(t *testing.T) {
	cfg, err := devctl.ParseConfig([]byte(`
timeout: 250ms
devices:
  - name: eeprom
    kind: regmap
    bus: /dev/i2c-3
    address: 0x50
    wakeup: /sys/bus/i2c/devices/3-0050/power
  - name: fan0
    kind: pwm-fan
    pwm: {chip: pwmchip0, channel: 0, period: 40000}
    gpio: {chip: gpiochip0, offset: 7}
  - name: sensor
    kind: thermal
    emulation: true
`))
	require.Nil(t, err)
	hw := simhw.FromBindings(cfg.Devices)
	b, err := devctl.NewBoard(devctl.WithHardware(hw), devctl.WithConfig(cfg))
	require.Nil(t, err)
	defer b.Close()

	require.Len(t, b.Devices, 3)
	d, err := b.Device("fan0")
	require.Nil(t, err)
	checkRead(t, d, "fan1_max", "40000")
	checkRead(t, d, "fan1_input", "40000")

	require.Nil(t, b.Suspend(devctl.SuspendStandby))
	ws := hw.AddWakeSource("/sys/bus/i2c/devices/3-0050/power")
	assert.True(t, ws.Armed())
	require.Nil(t, b.Resume())
	assert.False(t, ws.Armed())

	d, err = b.Device("sensor")
	require.Nil(t, err)
	checkRead(t, d, "emul_temp", "30000")
}
