// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// LinuxHardware provides actuators through the Linux userspace interfaces:
// the GPIO character device, i2c-dev, the PWM sysfs class, device wakeup
// controls and uinput.
//
// The zero value is ready to use.
type LinuxHardware struct {
	// The consumer label applied to requested GPIO lines.
	//
	// Defaults to the name of the running executable.
	Consumer string

	// The root of the PWM class, defaults to "/sys/class/pwm".
	PWMRoot string

	// The uinput device, defaults to "/dev/uinput".
	UinputPath string

	// mu guards claims.
	mu sync.Mutex

	// Resources held by devices bound to this hardware that the kernel
	// does not hold exclusively itself.
	claims map[string]bool
}

// claim marks the resource as held, failing if it already is.
func (h *LinuxHardware) claim(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claims == nil {
		h.claims = make(map[string]bool)
	}
	if h.claims[key] {
		return errors.Errorf("%s already claimed", key)
	}
	h.claims[key] = true
	return nil
}

func (h *LinuxHardware) unclaim(key string) {
	h.mu.Lock()
	delete(h.claims, key)
	h.mu.Unlock()
}

func (h *LinuxHardware) consumer() string {
	if h.Consumer != "" {
		return h.Consumer
	}
	return appName()
}

// OpenRegisterMap opens the device at addr through the i2c-dev bus device.
func (h *LinuxHardware) OpenRegisterMap(bus string, addr uint16) (RegisterMap, error) {
	key := fmt.Sprintf("i2c:%s:0x%02x", bus, addr)
	if err := h.claim(key); err != nil {
		return nil, err
	}
	rm, err := openI2CRegisterMap(bus, addr)
	if err != nil {
		h.unclaim(key)
		return nil, err
	}
	return &claimedRegisterMap{rm, func() { h.unclaim(key) }}, nil
}

// RequestLine requests the line from the GPIO character device.
func (h *LinuxHardware) RequestLine(ref LineRef, initial int) (Line, error) {
	options := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(h.consumer()),
		gpiocdev.AsOutput(initial),
	}
	if ref.ActiveLow {
		options = append(options, gpiocdev.AsActiveLow)
	}
	l, err := gpiocdev.RequestLine(ref.Chip, ref.Offset, options...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// RequestPWM exports the PWM channel, if necessary.
func (h *LinuxHardware) RequestPWM(ref PWMRef) (PWM, error) {
	key := fmt.Sprintf("pwm:%s:%d", ref.Chip, ref.Channel)
	if err := h.claim(key); err != nil {
		return nil, err
	}
	root := h.PWMRoot
	if root == "" {
		root = "/sys/class/pwm"
	}
	p, err := openSysfsPWM(root, ref)
	if err != nil {
		h.unclaim(key)
		return nil, err
	}
	return &claimedPWM{p, func() { h.unclaim(key) }}, nil
}

// RequestPins requests the pin group from the GPIO character device.
//
// The lines are initially configured to the default state, if defined, and
// otherwise left as inputs.
func (h *LinuxHardware) RequestPins(cfg PinsConfig) (PinController, error) {
	options := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(h.consumer()), gpiocdev.AsInput}
	if s, ok := cfg.States[PinStateDefault.String()]; ok {
		for _, o := range pinOptions(s, len(cfg.Offsets)) {
			options = append(options, o)
		}
	}
	ll, err := gpiocdev.RequestLines(cfg.Chip, cfg.Offsets, options...)
	if err != nil {
		return nil, err
	}
	return &linePins{lines: ll, n: len(cfg.Offsets), states: cfg.States}, nil
}

// WakeSource returns the wakeup control in the device power directory.
func (h *LinuxHardware) WakeSource(p string) (WakeSource, error) {
	w, err := openSysfsWakeup(p)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// OpenInput creates a uinput device reporting the key.
func (h *LinuxHardware) OpenInput(name string, code int) (InputSink, error) {
	p := h.UinputPath
	if p == "" {
		p = "/dev/uinput"
	}
	s, err := openUinput(p, name, code)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// linePins is a pin group on a gpiochip, with states applied by
// reconfiguring the lines.
type linePins struct {
	lines  *gpiocdev.Lines
	n      int
	states map[string]PinConfig
}

func (p *linePins) Select(s PinState) error {
	cfg, ok := p.states[s.String()]
	if !ok {
		return ErrPinStateNotFound
	}
	var options []gpiocdev.LineConfigOption
	for _, o := range pinOptions(cfg, p.n) {
		options = append(options, o)
	}
	return p.lines.Reconfigure(options...)
}

func (p *linePins) Close() error {
	return p.lines.Close()
}

// lineOption is an option applicable both when requesting and when
// reconfiguring lines.
type lineOption interface {
	gpiocdev.LineReqOption
	gpiocdev.LineConfigOption
}

// pinOptions converts a pin configuration to the corresponding line
// configuration for n lines.
func pinOptions(cfg PinConfig, n int) []lineOption {
	var options []lineOption
	if cfg.Direction == "output" {
		values := make([]int, n)
		for i := range values {
			values[i] = cfg.Value
		}
		options = append(options, gpiocdev.AsOutput(values...))
	} else {
		options = append(options, gpiocdev.AsInput)
	}
	switch cfg.Bias {
	case "pull-up":
		options = append(options, gpiocdev.WithPullUp)
	case "pull-down":
		options = append(options, gpiocdev.WithPullDown)
	case "disabled":
		options = append(options, gpiocdev.WithBiasDisabled)
	}
	return options
}

// i2c-dev ioctl to set the target address.
const i2cSlave = 0x0703

// i2cRegisterMap accesses 8-bit registers on an i2c-dev device.
type i2cRegisterMap struct {
	f *os.File
}

func openI2CRegisterMap(bus string, addr uint16) (*i2cRegisterMap, error) {
	f, err := os.OpenFile(bus, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	// fails with EBUSY if a kernel driver is bound to the address
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "set address 0x%02x", addr)
	}
	return &i2cRegisterMap{f: f}, nil
}

// ReadReg writes the register address then reads back the value.
func (m *i2cRegisterMap) ReadReg(addr uint8) (uint8, error) {
	if _, err := m.f.Write([]byte{addr}); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := m.f.Read(buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (m *i2cRegisterMap) WriteReg(addr, value uint8) error {
	_, err := m.f.Write([]byte{addr, value})
	return err
}

func (m *i2cRegisterMap) Close() error {
	return m.f.Close()
}

type claimedRegisterMap struct {
	RegisterMap
	unclaim func()
}

func (m *claimedRegisterMap) Close() error {
	defer m.unclaim()
	return m.RegisterMap.Close()
}

type claimedPWM struct {
	PWM
	unclaim func()
}

func (p *claimedPWM) Close() error {
	defer p.unclaim()
	return p.PWM.Close()
}

// appName returns the name of the running executable.
//
// Falls back to "devctl" if that can't be determined for some reason.
func appName() string {
	str, err := os.Executable()
	if err != nil {
		return "devctl"
	}
	return path.Base(str)
}
