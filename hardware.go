// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

// Hardware provides the actuators a device binds to.
//
// Each handle returned is exclusively owned by the caller until closed.
// A handle that is already owned elsewhere must not be handed out again.
type Hardware interface {
	// OpenRegisterMap opens the 8-bit register map of the device at addr on
	// the named bus.
	OpenRegisterMap(bus string, addr uint16) (RegisterMap, error)

	// RequestLine requests the line as an output driven to the initial
	// logical level.
	RequestLine(ref LineRef, initial int) (Line, error)

	// RequestPWM requests the PWM channel.
	RequestPWM(ref PWMRef) (PWM, error)

	// RequestPins requests the pin group and its named configurations.
	RequestPins(cfg PinsConfig) (PinController, error)

	// WakeSource returns the wake source at the given path.
	WakeSource(path string) (WakeSource, error)

	// OpenInput creates an input device able to report the key code.
	OpenInput(name string, code int) (InputSink, error)
}

// RegisterMap provides byte addressed access to a device's registers.
type RegisterMap interface {
	ReadReg(addr uint8) (uint8, error)
	WriteReg(addr, value uint8) error
	Close() error
}

// Line is a GPIO line requested as an output.
//
// Values are logical, so an active-low line driven to 1 is physically low.
type Line interface {
	SetValue(value int) error
	Close() error
}

// PWM is a PWM channel.
//
// Duty and period are in nanoseconds.
type PWM interface {
	Configure(duty, period int) error
	Enable() error
	Disable() error
	Close() error
}

// PinState identifies a named pin configuration.
type PinState int

const (
	// PinStateDefault is the configuration used while the device is active.
	PinStateDefault PinState = iota

	// PinStateSleep is the configuration used while the device is suspended.
	PinStateSleep
)

func (s PinState) String() string {
	if s == PinStateSleep {
		return "sleep"
	}
	return "default"
}

// PinController switches a pin group between its named configurations.
//
// Select returns ErrPinStateNotFound if the state is not defined for the group.
type PinController interface {
	Select(state PinState) error
	Close() error
}

// WakeSource is an event source able to wake the system from standby.
type WakeSource interface {
	Arm() error
	Disarm() error
}

// InputSink reports key events to the input subsystem.
type InputSink interface {
	Emit(code int, pressed bool) error
	Close() error
}
