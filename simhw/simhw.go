// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package simhw provides simulated hardware for devctl devices.
//
// The [Hardware] hands out register maps, GPIO lines, PWM channels, pin
// groups, wake sources and input devices that exist only in memory. Each
// records the state it has been driven to, so tests can check what a
// device did to its actuators, and each can be made to fail or stall.
//
// Register maps and wake sources must be added before they can be
// requested, mirroring hardware that is either present or not. Lines, PWM
// channels, pin groups and input devices are created on first use.
//
// A resource may only be held by one device at a time.
package simhw

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-devctl"
)

var (
	// ErrBusy indicates the resource is already held.
	ErrBusy = errors.New("resource busy")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("no such device")
)

// Hardware is a simulated set of actuators.
//
// The zero value is not usable, use New.
type Hardware struct {
	mu      sync.Mutex
	regmaps map[string]*RegisterMap
	lines   map[string]*Line
	pwms    map[string]*PWM
	pins    map[string]*Pins
	wakes   map[string]*WakeSource
	inputs  map[string]*Input
}

// New creates an empty simulation.
func New() *Hardware {
	return &Hardware{
		regmaps: make(map[string]*RegisterMap),
		lines:   make(map[string]*Line),
		pwms:    make(map[string]*PWM),
		pins:    make(map[string]*Pins),
		wakes:   make(map[string]*WakeSource),
		inputs:  make(map[string]*Input),
	}
}

// FromBindings creates a simulation containing the register maps and wake
// sources required by the bindings.
func FromBindings(bb []devctl.Binding) *Hardware {
	h := New()
	for _, b := range bb {
		if b.Kind == devctl.KindRegisterMap {
			h.AddRegisterMap(b.Bus, b.Address)
		}
		if b.Wakeup != "" {
			h.AddWakeSource(b.Wakeup)
		}
	}
	return h
}

func regmapKey(bus string, addr uint16) string {
	return fmt.Sprintf("%s:0x%02x", bus, addr)
}

func lineKey(chip string, offset int) string {
	return fmt.Sprintf("%s:%d", chip, offset)
}

func pinsKey(chip string, offsets []int) string {
	return fmt.Sprintf("%s:%v", chip, offsets)
}

// AddRegisterMap adds a device with a register map at the address on the
// bus, or returns the existing one.
func (h *Hardware) AddRegisterMap(bus string, addr uint16) *RegisterMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := regmapKey(bus, addr)
	m, ok := h.regmaps[k]
	if !ok {
		m = &RegisterMap{}
		h.regmaps[k] = m
	}
	return m
}

// RegisterMap returns the register map at the address on the bus, or nil if
// there is none.
func (h *Hardware) RegisterMap(bus string, addr uint16) *RegisterMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.regmaps[regmapKey(bus, addr)]
}

// AddWakeSource adds a wake source at the given path, or returns the
// existing one.
func (h *Hardware) AddWakeSource(path string) *WakeSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.wakes[path]
	if !ok {
		w = &WakeSource{}
		h.wakes[path] = w
	}
	return w
}

// Line returns the line, creating it if necessary.
func (h *Hardware) Line(chip string, offset int) *Line {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.line(chip, offset)
}

func (h *Hardware) line(chip string, offset int) *Line {
	k := lineKey(chip, offset)
	l, ok := h.lines[k]
	if !ok {
		l = &Line{}
		h.lines[k] = l
	}
	return l
}

// PWM returns the PWM channel, creating it if necessary.
func (h *Hardware) PWM(chip string, channel int) *PWM {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pwm(chip, channel)
}

func (h *Hardware) pwm(chip string, channel int) *PWM {
	k := lineKey(chip, channel)
	p, ok := h.pwms[k]
	if !ok {
		p = &PWM{}
		h.pwms[k] = p
	}
	return p
}

// Pins returns the pin group, creating it if necessary.
func (h *Hardware) Pins(chip string, offsets ...int) *Pins {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := pinsKey(chip, offsets)
	p, ok := h.pins[k]
	if !ok {
		p = &Pins{}
		h.pins[k] = p
	}
	return p
}

// Input returns the named input device, creating it if necessary.
func (h *Hardware) Input(name string) *Input {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, ok := h.inputs[name]
	if !ok {
		i = &Input{}
		h.inputs[name] = i
	}
	return i
}

// OpenRegisterMap claims a register map previously added with
// AddRegisterMap.
func (h *Hardware) OpenRegisterMap(bus string, addr uint16) (devctl.RegisterMap, error) {
	h.mu.Lock()
	m, ok := h.regmaps[regmapKey(bus, addr)]
	h.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, regmapKey(bus, addr))
	}
	if err := m.claim(); err != nil {
		return nil, errors.Wrap(err, regmapKey(bus, addr))
	}
	return m, nil
}

// RequestLine claims the line and drives it to the initial level.
func (h *Hardware) RequestLine(ref devctl.LineRef, initial int) (devctl.Line, error) {
	l := h.Line(ref.Chip, ref.Offset)
	if err := l.request(ref.ActiveLow, initial); err != nil {
		return nil, errors.Wrap(err, lineKey(ref.Chip, ref.Offset))
	}
	return l, nil
}

// RequestPWM claims the PWM channel.
func (h *Hardware) RequestPWM(ref devctl.PWMRef) (devctl.PWM, error) {
	p := h.PWM(ref.Chip, ref.Channel)
	if err := p.claim(); err != nil {
		return nil, errors.Wrap(err, lineKey(ref.Chip, ref.Channel))
	}
	return p, nil
}

// RequestPins claims the pin group, with the states defined by cfg.
func (h *Hardware) RequestPins(cfg devctl.PinsConfig) (devctl.PinController, error) {
	p := h.Pins(cfg.Chip, cfg.Offsets...)
	if err := p.request(cfg.States); err != nil {
		return nil, errors.Wrap(err, pinsKey(cfg.Chip, cfg.Offsets))
	}
	return p, nil
}

// WakeSource returns a wake source previously added with AddWakeSource.
func (h *Hardware) WakeSource(path string) (devctl.WakeSource, error) {
	h.mu.Lock()
	w, ok := h.wakes[path]
	h.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, path)
	}
	return w, nil
}

// OpenInput claims the named input device.
func (h *Hardware) OpenInput(name string, code int) (devctl.InputSink, error) {
	i := h.Input(name)
	if err := i.open(code); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return i, nil
}

// base provides the claim and fault injection common to all resources.
type base struct {
	mu      sync.Mutex
	claimed bool
	err     error
	delay   time.Duration
}

// SetError sets the error returned by subsequent operations on the
// resource.
//
// A nil err clears the fault.
func (b *base) SetError(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// SetDelay sets the time each subsequent operation on the resource takes.
func (b *base) SetDelay(d time.Duration) {
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// Claimed returns true if the resource is held by a device.
func (b *base) Claimed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claimed
}

func (b *base) claim() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claimed {
		return ErrBusy
	}
	b.claimed = true
	return nil
}

// Hog makes the resource appear held by some other consumer.
func (b *base) Hog() {
	b.mu.Lock()
	b.claimed = true
	b.mu.Unlock()
}

// stall waits out the configured delay.
//
// It must be called without the lock held.
func (b *base) stall() {
	b.mu.Lock()
	d := b.delay
	b.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// Close releases the resource.
func (b *base) Close() error {
	b.mu.Lock()
	b.claimed = false
	b.mu.Unlock()
	return nil
}
