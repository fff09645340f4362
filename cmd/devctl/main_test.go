// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-devctl"
	"github.com/warthog618/go-devctl/simhw"
)

func TestParseLevel(t *testing.T) {
	patterns := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for name, xl := range patterns {
		assert.Equal(t, xl, parseLevel(name), name)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(devctl.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	l.Info("hidden")
	l.Warn("shown", "device", "fan0")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"device":"fan0"`)

	buf.Reset()
	l = newLogger(devctl.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	l.Debug("probe", "device", "eeprom")
	assert.Contains(t, buf.String(), "msg=probe device=eeprom")
}

func newTestBoard(t *testing.T) (*devctl.Board, *simhw.Hardware) {
	t.Helper()
	cfg, err := devctl.ParseConfig([]byte(`
devices:
  - name: fan0
    kind: pwm-fan
    pwm: {chip: pwmchip0, channel: 0, period: 1000}
  - name: sensor
    kind: thermal
`))
	require.Nil(t, err)
	hw := simhw.FromBindings(cfg.Devices)
	b, err := devctl.NewBoard(devctl.WithHardware(hw), devctl.WithConfig(cfg))
	require.Nil(t, err)
	t.Cleanup(b.Close)
	return b, hw
}

func run1(t *testing.T, b *devctl.Board, line string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := execute(&buf, b, strings.Fields(line))
	return buf.String(), err
}

func TestExecute(t *testing.T) {
	b, hw := newTestBoard(t)

	out, err := run1(t, b, "list")
	assert.Nil(t, err)
	assert.Contains(t, out, "fan0 (pwm-fan, active)")
	assert.Contains(t, out, "fan1_input")
	assert.Contains(t, out, "sensor (thermal, active)")

	out, err = run1(t, b, "get sensor temp")
	assert.Nil(t, err)
	assert.Equal(t, "30000\n", out)

	_, err = run1(t, b, "set fan0 fan1_input 400")
	assert.Nil(t, err)
	assert.Equal(t, 400, hw.PWM("pwmchip0", 0).Duty())

	_, err = run1(t, b, "set fan0 fan1_input 4000")
	assert.ErrorIs(t, err, devctl.ErrOutOfRange)

	_, err = run1(t, b, "suspend")
	assert.Nil(t, err)
	assert.False(t, hw.PWM("pwmchip0", 0).Enabled())
	out, err = run1(t, b, "list")
	assert.Nil(t, err)
	assert.Contains(t, out, "fan0 (pwm-fan, sleep)")

	_, err = run1(t, b, "resume")
	assert.Nil(t, err)
	assert.Equal(t, 400, hw.PWM("pwmchip0", 0).Duty())

	_, err = run1(t, b, "suspend standby")
	assert.Nil(t, err)
	_, err = run1(t, b, "suspend hibernate")
	assert.NotNil(t, err)

	_, err = run1(t, b, "get fan9 temp")
	assert.ErrorIs(t, err, devctl.ErrUnknownDevice)
	_, err = run1(t, b, "get sensor")
	assert.EqualError(t, err, "usage: get <device> <attr>")
	_, err = run1(t, b, "set sensor temp")
	assert.EqualError(t, err, "usage: set <device> <attr> <value>")
	_, err = run1(t, b, "frobnicate")
	assert.EqualError(t, err, "unknown command: frobnicate")

	out, err = run1(t, b, "help")
	assert.Nil(t, err)
	assert.Contains(t, out, "Commands:")
}
