// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Mode is the power mode of a device.
type Mode int

const (
	// ModeActive is the mode of a running device.
	ModeActive Mode = iota

	// ModeSleep is the mode of a device suspended to RAM.
	ModeSleep
)

func (m Mode) String() string {
	if m == ModeSleep {
		return "sleep"
	}
	return "active"
}

// Transition is a system power transition.
type Transition int

const (
	// SuspendToRAM suspends the device, selecting its sleep configuration.
	SuspendToRAM Transition = iota

	// SuspendStandby enters standby, leaving the pin configuration unchanged.
	SuspendStandby

	// Resume returns the device to its active configuration.
	Resume
)

func (t Transition) String() string {
	switch t {
	case SuspendToRAM:
		return "mem"
	case SuspendStandby:
		return "standby"
	case Resume:
		return "resume"
	}
	return "unknown"
}

// ParseTransition converts the name of a transition, as returned by
// Transition.String, to a Transition.
func ParseTransition(name string) (Transition, error) {
	switch name {
	case "mem":
		return SuspendToRAM, nil
	case "standby":
		return SuspendStandby, nil
	case "resume":
		return Resume, nil
	}
	return 0, errors.Errorf("unknown transition: %s", name)
}

// controller is implemented by each kind of device.
//
// All methods are called with the device lock held, and show may be called
// with only the read lock held if the attribute is not Live.
type controller interface {
	attributes() []Attribute

	// start commits the initial actuator configuration.
	start() error

	// show returns the value of a readable attribute.
	show(name string) (string, error)

	// store applies a write to the actuator and then commits it to shadow
	// state, returning the committed value.
	store(name, raw string) (string, error)

	// suspend quiesces the actuator before the sleep pins are selected.
	suspend() error

	// resume restores the shadow state to the actuator after the default
	// pins are selected.
	resume() error

	// release drives the actuator to its safe state and closes it.
	release()
}

// Device is a bound device.
//
// A Device owns the shadow state of its actuators and exposes it through
// a set of named attributes. All methods are safe for concurrent use.
type Device struct {
	name string
	kind Kind
	log  *slog.Logger

	// Bounds each actuator operation.
	timeout time.Duration

	// mu guards all fields below.
	mu    sync.RWMutex
	ctl   controller
	attrs []Attribute
	pins  PinController
	wake  WakeSource
	armed bool
	mode  Mode
	bound bool
	seq   uint64

	// An actuator call abandoned after a timeout, which may still be
	// running.
	pending *inflight

	watchMu  sync.Mutex
	watchers []*watcher
}

type watcher struct {
	fn func(Event)
}

type inflight struct {
	done chan struct{}
	err  error
}

// Bind acquires the actuators described by b from hw and commits their
// initial configuration.
//
// The available options are [WithLogger] and [WithTimeout].
//
// Any failure results in an ErrBindFailure, after all the actuators
// already acquired have been released.
func Bind(hw Hardware, b Binding, options ...BindOption) (*Device, error) {
	cfg := bindConfig{timeout: DefaultTimeout}
	for _, o := range options {
		o.applyBindOption(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := b.Validate(); err != nil {
		return nil, wrapKind(ErrBindFailure, err)
	}
	d := &Device{
		name:    b.Name,
		kind:    b.Kind,
		log:     cfg.log.With("device", b.Name, "kind", string(b.Kind)),
		timeout: cfg.timeout,
	}
	// abandoned calls resync under the lock
	d.mu.Lock()
	defer d.mu.Unlock()
	ctl, err := newController(d, hw, b)
	if err != nil {
		return nil, wrapKind(ErrBindFailure, errors.Wrap(err, b.Name))
	}
	d.ctl = ctl
	d.attrs = ctl.attributes()
	if b.Pins != nil {
		if d.pins, err = hw.RequestPins(*b.Pins); err != nil {
			d.teardown()
			return nil, wrapKind(ErrBindFailure, errors.Wrapf(err, "%s: request pins", b.Name))
		}
	}
	if b.Wakeup != "" {
		if d.wake, err = hw.WakeSource(b.Wakeup); err != nil {
			d.teardown()
			return nil, wrapKind(ErrBindFailure, errors.Wrapf(err, "%s: wake source", b.Name))
		}
	}
	if err = ctl.start(); err != nil {
		d.teardown()
		return nil, wrapKind(ErrBindFailure, errors.Wrapf(err, "%s: start", b.Name))
	}
	if err = d.selectPins(PinStateDefault); err != nil {
		d.teardown()
		return nil, wrapKind(ErrBindFailure, errors.Wrap(err, b.Name))
	}
	d.mode = ModeActive
	d.bound = true
	d.log.Info("bound")
	return d, nil
}

func newController(d *Device, hw Hardware, b Binding) (controller, error) {
	switch b.Kind {
	case KindRegisterMap:
		return newRegmapController(d, hw, b)
	case KindPWMFan:
		return newPWMFanController(d, hw, b)
	case KindGPIOFan:
		return newGPIOFanController(d, hw, b)
	case KindThermal:
		return newThermalController(d, b), nil
	case KindInput:
		return newInputController(d, hw, b)
	}
	return nil, errors.Errorf("unknown kind '%s'", b.Kind)
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// Kind returns the kind of controller bound to the device.
func (d *Device) Kind() Kind {
	return d.kind
}

// Mode returns the current power mode of the device.
func (d *Device) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// Attributes returns the attributes exposed by the device.
func (d *Device) Attributes() []Attribute {
	return append([]Attribute(nil), d.attrs...)
}

func (d *Device) attribute(name string) (Attribute, error) {
	for _, a := range d.attrs {
		if a.Name == name {
			return a, nil
		}
	}
	return Attribute{}, errors.Wrapf(ErrUnknownAttribute, "%s: %s", d.name, name)
}

// ReadAttribute returns the current value of the named attribute.
//
// Live attributes are read from the actuator, and if that read fails then
// the last known value is returned along with the error.
func (d *Device) ReadAttribute(name string) (string, error) {
	a, err := d.attribute(name)
	if err != nil {
		return "", err
	}
	if !a.Readable() {
		return "", errors.Wrapf(ErrNotReadable, "%s: %s", d.name, name)
	}
	if a.Live {
		d.mu.Lock()
		defer d.mu.Unlock()
	} else {
		d.mu.RLock()
		defer d.mu.RUnlock()
	}
	if !d.bound {
		return "", errors.Wrap(ErrUnbound, d.name)
	}
	v, err := d.ctl.show(name)
	if err != nil {
		return v, errors.Wrapf(err, "%s: read %s", d.name, name)
	}
	return v, nil
}

// WriteAttribute parses raw and applies it to the named attribute.
//
// On success the full length of raw is reported as consumed.
// Shadow state is only updated once the actuator has accepted the value, so
// a failed write leaves the attribute unchanged.
func (d *Device) WriteAttribute(name string, raw []byte) (int, error) {
	a, err := d.attribute(name)
	if err != nil {
		return 0, err
	}
	if !a.Writable() {
		return 0, errors.Wrapf(ErrNotWritable, "%s: %s", d.name, name)
	}
	d.mu.Lock()
	if !d.bound {
		d.mu.Unlock()
		return 0, errors.Wrap(ErrUnbound, d.name)
	}
	v, err := d.ctl.store(name, string(raw))
	if err != nil {
		d.mu.Unlock()
		return 0, errors.Wrapf(err, "%s: write %s", d.name, name)
	}
	d.seq++
	evt := Event{Device: d.name, Attribute: name, Value: v, Seq: d.seq}
	d.mu.Unlock()
	d.notify(evt)
	return len(raw), nil
}

// PowerTransition applies the system power transition to the device.
//
// SuspendToRAM quiesces the actuator then selects the sleep pin state.
// If either fails the actuator is restored and the device remains active.
// SuspendStandby arms the wake source, if any, and otherwise leaves the
// device untouched.
// Resume disarms the wake source, selects the default pin state and
// restores the actuator to its shadow state.
//
// Pin states that are not defined are ignored.
func (d *Device) PowerTransition(t Transition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.bound {
		return errors.Wrap(ErrUnbound, d.name)
	}
	switch t {
	case SuspendToRAM:
		d.log.Info("suspending to RAM")
		err := d.ctl.suspend()
		if err == nil {
			err = d.selectPins(PinStateSleep)
		}
		if err != nil {
			// remain active, so the actuator must be running
			if rerr := d.ctl.resume(); rerr != nil {
				d.log.Error("restoring after failed suspend", "error", rerr)
			}
			return errors.Wrapf(err, "%s: suspend", d.name)
		}
		d.mode = ModeSleep
	case SuspendStandby:
		d.log.Info("suspending, standby")
		if d.wake == nil {
			d.log.Debug("device cannot wakeup")
			return nil
		}
		if err := d.call(d.wake.Arm); err != nil {
			return errors.Wrapf(wrapKind(ErrActuatorWrite, err), "%s: arm wake source", d.name)
		}
		d.armed = true
		d.log.Info("device can wakeup")
	case Resume:
		d.log.Info("resuming")
		var firstErr error
		if d.armed {
			if err := d.call(d.wake.Disarm); err != nil {
				firstErr = errors.Wrapf(wrapKind(ErrActuatorWrite, err), "%s: disarm wake source", d.name)
			}
			d.armed = false
		}
		if err := d.selectPins(PinStateDefault); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "%s: resume", d.name)
		}
		if err := d.ctl.resume(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "%s: resume", d.name)
		}
		d.mode = ModeActive
		return firstErr
	default:
		return errors.Errorf("%s: unknown transition %d", d.name, t)
	}
	return nil
}

// Unbind drives the actuators to their safe state and releases them.
//
// Errors are logged rather than returned.
// Subsequent operations on the device fail with ErrUnbound.
func (d *Device) Unbind() {
	d.mu.Lock()
	if !d.bound {
		d.mu.Unlock()
		return
	}
	d.bound = false
	d.teardown()
	d.watchMu.Lock()
	d.watchers = nil
	d.watchMu.Unlock()
	d.mu.Unlock()
	d.log.Info("unbound")
}

// teardown releases everything acquired by Bind.
func (d *Device) teardown() {
	if d.armed {
		if err := d.call(d.wake.Disarm); err != nil {
			d.log.Warn("disarming wake source failed", "error", err)
		}
		d.armed = false
	}
	if d.pins != nil {
		d.close(d.pins, "pins")
		d.pins = nil
	}
	d.ctl.release()
}

// close releases a hardware handle.
//
// If an abandoned call is still running then the handle may be in use, so
// it is closed once the call returns.
func (d *Device) close(h io.Closer, what string) {
	c := d.pending
	if c == nil {
		if err := h.Close(); err != nil {
			d.log.Warn("releasing "+what+" failed", "error", err)
		}
		return
	}
	d.log.Warn("actuator busy, deferring release of " + what)
	go func() {
		<-c.done
		if err := h.Close(); err != nil {
			d.log.Warn("releasing "+what+" failed", "error", err)
		}
	}()
}

// Watch registers fn to be called with each change to the device
// attributes.
//
// Observers are called in registration order, after the change has been
// committed and outside the device lock, so they may read the device.
// The returned function cancels the registration.
//
// Registrations on an unbound device are ignored.
func (d *Device) Watch(fn func(Event)) (cancel func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.bound {
		return func() {}
	}
	w := &watcher{fn: fn}
	d.watchMu.Lock()
	d.watchers = append(d.watchers, w)
	d.watchMu.Unlock()
	return func() {
		d.watchMu.Lock()
		defer d.watchMu.Unlock()
		for i, x := range d.watchers {
			if x == w {
				d.watchers = append(d.watchers[:i:i], d.watchers[i+1:]...)
				return
			}
		}
	}
}

func (d *Device) notify(evt Event) {
	d.watchMu.Lock()
	ww := append([]*watcher(nil), d.watchers...)
	d.watchMu.Unlock()
	for _, w := range ww {
		w.fn(evt)
	}
}

// selectPins selects the pin state, ignoring states that are not defined.
func (d *Device) selectPins(s PinState) error {
	if d.pins == nil {
		return nil
	}
	err := d.call(func() error { return d.pins.Select(s) })
	if errors.Is(err, ErrPinStateNotFound) {
		d.log.Debug("pin state not defined", "state", s.String())
		return nil
	}
	if err != nil {
		return errors.Wrapf(wrapKind(ErrPinControl, err), "select %s", s)
	}
	return nil
}

// call runs fn, bounded by the device timeout.
//
// An fn that exceeds the timeout is abandoned and ErrActuatorTimeout
// returned. Only one fn touches the actuator at a time, so while an
// abandoned fn is running subsequent calls wait for it, and fail with
// ErrActuatorTimeout if it does not return within the timeout.
// When the abandoned fn does return the actuator is restored to the shadow
// state.
//
// Must be called with the device lock held.
func (d *Device) call(fn func() error) error {
	if err := d.settle(); err != nil {
		return err
	}
	if d.timeout <= 0 {
		return fn()
	}
	c := &inflight{done: make(chan struct{})}
	go func() {
		c.err = fn()
		close(c.done)
	}()
	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case <-c.done:
		return c.err
	case <-t.C:
		d.pending = c
		go d.resync(c)
		return errors.Wrapf(ErrActuatorTimeout, "after %s", d.timeout)
	}
}

// settle waits, bounded by the device timeout, for an abandoned call to
// return.
func (d *Device) settle() error {
	if d.pending == nil {
		return nil
	}
	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case <-d.pending.done:
	case <-t.C:
		return errors.Wrap(ErrActuatorTimeout, "previous call still in progress")
	}
	d.reap()
	if d.pending != nil {
		return errors.Wrap(ErrActuatorTimeout, "resync still in progress")
	}
	return nil
}

// resync reaps the abandoned call c once it returns, unless a later call has
// already done so.
func (d *Device) resync(c *inflight) {
	<-c.done
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == c {
		d.reap()
	}
}

// reap clears the returned abandoned call and, as it may have overwritten
// the actuator, restores the actuator to the shadow state.
func (d *Device) reap() {
	if err := d.pending.err; err != nil {
		d.log.Warn("abandoned actuator call failed", "error", err)
	}
	d.pending = nil
	if !d.bound {
		return
	}
	var err error
	if d.mode == ModeSleep {
		if err = d.ctl.suspend(); err == nil {
			err = d.selectPins(PinStateSleep)
		}
	} else {
		if err = d.selectPins(PinStateDefault); err == nil {
			err = d.ctl.resume()
		}
	}
	if err != nil {
		d.log.Warn("resync failed", "error", err)
	}
}

// write applies fn to the actuator, classifying any failure as an
// ErrActuatorWrite.
func (d *Device) write(fn func() error) error {
	return wrapKind(ErrActuatorWrite, d.call(fn))
}
