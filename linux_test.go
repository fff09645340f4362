// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiosim"
)

// newSimpleton creates a simulated gpiochip, skipping the test if gpio-sim
// is not available.
func newSimpleton(t *testing.T, lines int) *gpiosim.Simpleton {
	t.Helper()
	s, err := gpiosim.NewSimpleton(lines)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func checkSimLevel(t *testing.T, s *gpiosim.Simpleton, offset, xv int) {
	t.Helper()
	v, err := s.Level(offset)
	assert.Nil(t, err)
	assert.Equal(t, xv, v)
}

func TestLinuxRequestLine(t *testing.T) {
	s := newSimpleton(t, 8)
	hw := &LinuxHardware{Consumer: "devctl-test"}

	l, err := hw.RequestLine(LineRef{Chip: s.DevPath(), Offset: 3}, 1)
	require.Nil(t, err)
	checkSimLevel(t, s, 3, 1)
	assert.Nil(t, l.SetValue(0))
	checkSimLevel(t, s, 3, 0)

	// held
	l2, err := hw.RequestLine(LineRef{Chip: s.DevPath(), Offset: 3}, 1)
	assert.NotNil(t, err)
	assert.Nil(t, l2)
	assert.Nil(t, l.Close())

	// active low
	l, err = hw.RequestLine(LineRef{Chip: s.DevPath(), Offset: 4, ActiveLow: true}, 1)
	require.Nil(t, err)
	checkSimLevel(t, s, 4, 0)
	assert.Nil(t, l.SetValue(0))
	checkSimLevel(t, s, 4, 1)
	assert.Nil(t, l.Close())

	l, err = hw.RequestLine(LineRef{Chip: s.DevPath(), Offset: 9}, 1)
	assert.NotNil(t, err)
	assert.Nil(t, l)
}

func TestLinuxRequestPins(t *testing.T) {
	s := newSimpleton(t, 8)
	hw := &LinuxHardware{}
	cfg := PinsConfig{
		Chip:    s.DevPath(),
		Offsets: []int{1, 2},
		States: map[string]PinConfig{
			"default": {Direction: "output", Value: 1},
			"sleep":   {Direction: "output", Value: 0},
		},
	}

	p, err := hw.RequestPins(cfg)
	require.Nil(t, err)
	checkSimLevel(t, s, 1, 1)
	checkSimLevel(t, s, 2, 1)

	assert.Nil(t, p.Select(PinStateSleep))
	checkSimLevel(t, s, 1, 0)
	checkSimLevel(t, s, 2, 0)

	assert.Nil(t, p.Select(PinStateDefault))
	checkSimLevel(t, s, 1, 1)
	checkSimLevel(t, s, 2, 1)
	assert.Nil(t, p.Close())

	delete(cfg.States, "sleep")
	p, err = hw.RequestPins(cfg)
	require.Nil(t, err)
	assert.ErrorIs(t, p.Select(PinStateSleep), ErrPinStateNotFound)
	checkSimLevel(t, s, 1, 1)
	assert.Nil(t, p.Close())
}

func TestLinuxGPIOFan(t *testing.T) {
	s := newSimpleton(t, 8)
	hw := &LinuxHardware{}
	b := Binding{
		Name: "fan1",
		Kind: KindGPIOFan,
		GPIO: &LineRef{Chip: s.DevPath(), Offset: 5, Initial: 1},
		Pins: &PinsConfig{
			Chip:    s.DevPath(),
			Offsets: []int{6},
			States: map[string]PinConfig{
				"default": {Direction: "output", Value: 1},
				"sleep":   {Direction: "output", Value: 0},
			},
		},
	}

	d, err := Bind(hw, b)
	require.Nil(t, err)
	checkSimLevel(t, s, 5, 1)
	checkSimLevel(t, s, 6, 1)

	require.Nil(t, d.PowerTransition(SuspendToRAM))
	checkSimLevel(t, s, 5, 0)
	checkSimLevel(t, s, 6, 0)

	require.Nil(t, d.PowerTransition(Resume))
	checkSimLevel(t, s, 5, 1)
	checkSimLevel(t, s, 6, 1)

	_, err = d.WriteAttribute("fan_gpio_value", []byte("0"))
	assert.Nil(t, err)
	checkSimLevel(t, s, 5, 0)

	d.Unbind()
	// released, so can be requested again
	d, err = Bind(hw, b)
	require.Nil(t, err)
	d.Unbind()
}
