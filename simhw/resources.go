// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package simhw

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-devctl"
)

// RegisterMap is a simulated device with 256 byte registers.
type RegisterMap struct {
	base
	readErr error
	regs    [256]uint8
}

// Reg returns the value of the register.
func (m *RegisterMap) Reg(addr uint8) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// SetReg sets the value of the register, as if changed by the device.
func (m *RegisterMap) SetReg(addr, value uint8) {
	m.mu.Lock()
	m.regs[addr] = value
	m.mu.Unlock()
}

// SetReadError sets the error returned by subsequent reads.
//
// Writes are controlled by SetError.
func (m *RegisterMap) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

func (m *RegisterMap) ReadReg(addr uint8) (uint8, error) {
	m.stall()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.regs[addr], nil
}

func (m *RegisterMap) WriteReg(addr, value uint8) error {
	m.stall()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.regs[addr] = value
	return nil
}

// Line is a simulated GPIO line.
type Line struct {
	base
	activeLow bool
	value     int
}

func (l *Line) request(activeLow bool, initial int) error {
	if err := l.claim(); err != nil {
		return err
	}
	l.mu.Lock()
	l.activeLow = activeLow
	l.value = initial
	l.mu.Unlock()
	return nil
}

// Value returns the logical value the line was last driven to.
func (l *Line) Value() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Level returns the physical level of the line, accounting for active low.
func (l *Line) Level() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeLow {
		return l.value ^ 1
	}
	return l.value
}

func (l *Line) SetValue(value int) error {
	l.stall()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.value = value
	return nil
}

// PWM is a simulated PWM channel.
type PWM struct {
	base
	duty    int
	period  int
	enabled bool
}

// Duty returns the configured duty cycle.
func (p *PWM) Duty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Period returns the configured period.
func (p *PWM) Period() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Enabled returns true if the output is enabled.
func (p *PWM) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *PWM) Configure(duty, period int) error {
	p.stall()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if duty < 0 || duty > period {
		return errors.Errorf("invalid duty %d for period %d", duty, period)
	}
	p.duty = duty
	p.period = period
	return nil
}

func (p *PWM) Enable() error {
	return p.setEnabled(true)
}

func (p *PWM) Disable() error {
	return p.setEnabled(false)
}

func (p *PWM) setEnabled(enabled bool) error {
	p.stall()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.enabled = enabled
	return nil
}

// Pins is a simulated pin group.
type Pins struct {
	base
	states  map[string]devctl.PinConfig
	current string
	history []string
}

func (p *Pins) request(states map[string]devctl.PinConfig) error {
	if err := p.claim(); err != nil {
		return err
	}
	p.mu.Lock()
	p.states = states
	p.mu.Unlock()
	return nil
}

// Current returns the name of the selected state, or "" if none has been
// selected.
func (p *Pins) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// History returns the names of the states selected, in order.
func (p *Pins) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.history...)
}

func (p *Pins) Select(s devctl.PinState) error {
	p.stall()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.states[s.String()]; !ok {
		return devctl.ErrPinStateNotFound
	}
	if p.err != nil {
		return p.err
	}
	p.current = s.String()
	p.history = append(p.history, p.current)
	return nil
}

// WakeSource is a simulated wake source.
type WakeSource struct {
	base
	armed bool
}

// Armed returns true if the wake source is armed.
func (w *WakeSource) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *WakeSource) Arm() error {
	return w.setArmed(true)
}

func (w *WakeSource) Disarm() error {
	return w.setArmed(false)
}

func (w *WakeSource) setArmed(armed bool) error {
	w.stall()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.armed = armed
	return nil
}

// KeyEvent is a key event reported to an Input.
type KeyEvent struct {
	Code    int
	Pressed bool
}

// Input is a simulated input device.
type Input struct {
	base
	code   int
	events []KeyEvent
}

func (i *Input) open(code int) error {
	if err := i.claim(); err != nil {
		return err
	}
	i.mu.Lock()
	i.code = code
	i.mu.Unlock()
	return nil
}

// Events returns the events reported to the device, in order.
func (i *Input) Events() []KeyEvent {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]KeyEvent(nil), i.events...)
}

func (i *Input) Emit(code int, pressed bool) error {
	i.stall()
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	if code != i.code {
		return errors.Errorf("key %d not supported", code)
	}
	i.events = append(i.events, KeyEvent{Code: code, Pressed: pressed})
	return nil
}
