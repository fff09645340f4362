// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-devctl"
)

const boardConfig = `
logging:
  level: debug
  format: json
mqtt:
  broker: tcp://localhost:1883
  qos: 1
timeout: 500ms
devices:
  - name: eeprom
    kind: regmap
    bus: /dev/i2c-3
    address: 0x50
    probe_length: 8
  - name: fan0
    kind: pwm-fan
    pwm:
      chip: pwmchip0
      channel: 1
      period: 40000
    pinctrl:
      chip: gpiochip1
      offsets: [4, 5]
      states:
        default: {direction: output, value: 1}
        sleep: {direction: input, bias: pull-up}
  - name: fan1
    kind: gpio-fan
    gpio: {chip: gpiochip0, offset: 3, active_low: true, initial: 1}
  - name: sensor
    kind: thermal
    initial_temp: 25000
  - name: key0
    kind: input
    key_code: 28
`

func TestParseConfig(t *testing.T) {
	cfg, err := devctl.ParseConfig([]byte(boardConfig))
	require.Nil(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, devctl.LoggingConfig{Level: "debug", Format: "json"}, cfg.Logging)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "devctl", cfg.MQTT.ClientID)
	assert.Equal(t, "devctl", cfg.MQTT.Prefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)

	require.Len(t, cfg.Devices, 5)
	rm := cfg.Devices[0]
	assert.Equal(t, devctl.KindRegisterMap, rm.Kind)
	assert.Equal(t, "/dev/i2c-3", rm.Bus)
	assert.Equal(t, uint16(0x50), rm.Address)
	assert.Equal(t, 8, rm.ProbeLength)

	fan := cfg.Devices[1]
	require.NotNil(t, fan.PWM)
	assert.Equal(t, devctl.PWMRef{Chip: "pwmchip0", Channel: 1, Period: 40000}, *fan.PWM)
	require.NotNil(t, fan.Pins)
	assert.Equal(t, []int{4, 5}, fan.Pins.Offsets)
	assert.Equal(t, devctl.PinConfig{Direction: "output", Value: 1}, fan.Pins.States["default"])
	assert.Equal(t, devctl.PinConfig{Direction: "input", Bias: "pull-up"}, fan.Pins.States["sleep"])

	gf := cfg.Devices[2]
	require.NotNil(t, gf.GPIO)
	assert.Equal(t, devctl.LineRef{Chip: "gpiochip0", Offset: 3, ActiveLow: true, Initial: 1}, *gf.GPIO)

	th := cfg.Devices[3]
	require.NotNil(t, th.InitialTemp)
	assert.Equal(t, 25000, *th.InitialTemp)
	assert.False(t, th.Emulation)

	assert.Equal(t, 28, cfg.Devices[4].KeyCode)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := devctl.ParseConfig([]byte("devices:\n  - {name: sensor, kind: thermal}\n"))
	require.Nil(t, err)
	assert.Equal(t, devctl.LoggingConfig{Level: "info", Format: "text"}, cfg.Logging)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, "devctl", cfg.MQTT.Prefix)
	assert.Equal(t, devctl.DefaultTimeout, cfg.Timeout)
	require.Len(t, cfg.Devices, 1)
	assert.Nil(t, cfg.Devices[0].InitialTemp)
}

func TestParseConfigErrors(t *testing.T) {
	patterns := []struct {
		name string
		yaml string
	}{
		{"malformed", "devices: [\n"},
		{"unnamed", "devices:\n  - {kind: thermal}\n"},
		{"unknown kind", "devices:\n  - {name: x, kind: toaster}\n"},
		{"duplicate", "devices:\n  - {name: x, kind: thermal}\n  - {name: x, kind: input}\n"},
		{"regmap bus", "devices:\n  - {name: x, kind: regmap, address: 0x50}\n"},
		{"regmap probe", "devices:\n  - {name: x, kind: regmap, bus: /dev/i2c-1, probe_length: 300}\n"},
		{"pwm missing", "devices:\n  - {name: x, kind: pwm-fan}\n"},
		{"pwm period", "devices:\n  - {name: x, kind: pwm-fan, pwm: {chip: pwmchip0, period: 0}}\n"},
		{"pwm chip", "devices:\n  - {name: x, kind: pwm-fan, pwm: {period: 100}}\n"},
		{"gpio missing", "devices:\n  - {name: x, kind: gpio-fan}\n"},
		{"gpio chip", "devices:\n  - {name: x, kind: gpio-fan, gpio: {offset: 3}}\n"},
		{"pins chip", "devices:\n  - {name: x, kind: thermal, pinctrl: {offsets: [1]}}\n"},
		{"pins offsets", "devices:\n  - {name: x, kind: thermal, pinctrl: {chip: gpiochip0}}\n"},
		{"pins direction", "devices:\n  - {name: x, kind: thermal, pinctrl: {chip: gpiochip0, offsets: [1], states: {sleep: {direction: sideways}}}}\n"},
		{"pins overlap", "devices:\n  - {name: x, kind: gpio-fan, gpio: {chip: gpiochip0, offset: 3}, pinctrl: {chip: /dev/gpiochip0, offsets: [2, 3]}}\n"},
		{"pins bias", "devices:\n  - {name: x, kind: thermal, pinctrl: {chip: gpiochip0, offsets: [1], states: {sleep: {direction: input, bias: weak}}}}\n"},
		{"timeout", "timeout: -1s\n"},
		{"qos", "mqtt: {qos: 3}\n"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			cfg, err := devctl.ParseConfig([]byte(p.yaml))
			assert.NotNil(t, err)
			assert.Nil(t, cfg)
		}
		t.Run(p.name, tf)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devctl.yaml")
	err := os.WriteFile(path, []byte(boardConfig), 0644)
	require.Nil(t, err)

	cfg, err := devctl.LoadConfig(path)
	require.Nil(t, err)
	assert.Len(t, cfg.Devices, 5)

	cfg, err = devctl.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.NotNil(t, err)
	assert.Nil(t, cfg)

	err = os.WriteFile(path, []byte("devices:\n  - {name: x}\n"), 0644)
	require.Nil(t, err)
	cfg, err = devctl.LoadConfig(path)
	assert.ErrorContains(t, err, path)
	assert.Nil(t, cfg)
}

func TestBindingValidate(t *testing.T) {
	b := devctl.Binding{Name: "fan0", Kind: devctl.KindGPIOFan, GPIO: &devctl.LineRef{Chip: "gpiochip0"}}
	assert.Nil(t, b.Validate())
	b.Kind = devctl.KindPWMFan
	assert.NotNil(t, b.Validate())
	b.PWM = &devctl.PWMRef{Chip: "pwmchip0", Period: 1000}
	assert.Nil(t, b.Validate())

	// the gpio line cannot also be a pin
	b.Kind = devctl.KindGPIOFan
	b.GPIO.Offset = 5
	b.Pins = &devctl.PinsConfig{Chip: "gpiochip0", Offsets: []int{4, 5}}
	assert.ErrorContains(t, b.Validate(), "gpio 5 is also in pinctrl")
	b.Pins.Chip = "gpiochip1"
	assert.Nil(t, b.Validate())
	b.Pins.Chip = "gpiochip0"
	b.Pins.Offsets = []int{4, 6}
	assert.Nil(t, b.Validate())
}
