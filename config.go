// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"os"
	"path"
	"slices"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind identifies the type of controller bound to a device.
type Kind string

const (
	// KindRegisterMap is an I2C style device with byte addressed registers.
	KindRegisterMap Kind = "regmap"

	// KindPWMFan is a fan driven by a PWM channel, with an optional power
	// GPIO.
	KindPWMFan Kind = "pwm-fan"

	// KindGPIOFan is a fan switched by a single GPIO.
	KindGPIOFan Kind = "gpio-fan"

	// KindThermal is a simulated temperature sensor.
	KindThermal Kind = "thermal"

	// KindInput is a simulated single key input device.
	KindInput Kind = "input"
)

const (
	// DefaultTemp is the initial reading of a thermal device, in millidegrees
	// Celsius.
	DefaultTemp = 30000

	// DefaultKeyCode is the key reported by input devices if none is
	// configured (KEY_POWER).
	DefaultKeyCode = 116

	// DefaultTimeout bounds each actuator operation.
	DefaultTimeout = time.Second
)

// Binding describes a device and the actuators it owns.
//
// It is the userspace equivalent of a devicetree node.
type Binding struct {
	// The name of the device.
	//
	// Names must be unique within a board.
	Name string `yaml:"name"`

	// The type of controller to bind.
	Kind Kind `yaml:"kind"`

	// The I2C bus device, e.g. "/dev/i2c-3".
	Bus string `yaml:"bus,omitempty"`

	// The address of the device on the I2C bus.
	Address uint16 `yaml:"address,omitempty"`

	// The number of registers to read, starting at 0x00, when the device
	// is bound.
	//
	// The read is informational only.
	ProbeLength int `yaml:"probe_length,omitempty"`

	// The path to the wakeup control of the device, e.g.
	// "/sys/bus/i2c/devices/3-0050/power".
	//
	// If set then the wake source is armed when entering standby.
	Wakeup string `yaml:"wakeup,omitempty"`

	// The GPIO line driven by the device.
	GPIO *LineRef `yaml:"gpio,omitempty"`

	// The PWM channel driven by the device.
	PWM *PWMRef `yaml:"pwm,omitempty"`

	// The pin configurations selected on suspend and resume.
	//
	// The lines are requested exclusively, so must not include the GPIO
	// line.
	Pins *PinsConfig `yaml:"pinctrl,omitempty"`

	// The initial temperature of a thermal device, in millidegrees Celsius.
	//
	// Defaults to DefaultTemp.
	InitialTemp *int `yaml:"initial_temp,omitempty"`

	// Expose the thermal reading as emul_temp rather than temp.
	Emulation bool `yaml:"emulation,omitempty"`

	// The key reported by an input device.
	//
	// Defaults to DefaultKeyCode.
	KeyCode int `yaml:"key_code,omitempty"`
}

// LineRef identifies a GPIO line.
type LineRef struct {
	// The name or path of the gpiochip, e.g. "gpiochip0".
	Chip string `yaml:"chip"`

	// The offset of the line on the chip.
	Offset int `yaml:"offset"`

	// The line is active low.
	ActiveLow bool `yaml:"active_low,omitempty"`

	// The level a gpio-fan is driven to when bound.
	Initial int `yaml:"initial,omitempty"`
}

// PWMRef identifies a PWM channel.
type PWMRef struct {
	// The name of the PWM chip, e.g. "pwmchip0".
	Chip string `yaml:"chip"`

	// The channel on the chip.
	Channel int `yaml:"channel"`

	// The period of the PWM signal in nanoseconds.
	Period int `yaml:"period"`
}

// PinsConfig describes a group of pins and its named configurations.
type PinsConfig struct {
	// The name or path of the gpiochip providing the pins.
	Chip string `yaml:"chip"`

	// The offsets of the pins in the group.
	Offsets []int `yaml:"offsets"`

	// The configurations, keyed by state name ("default" and "sleep").
	States map[string]PinConfig `yaml:"states"`
}

// PinConfig is the configuration applied to every pin in a group.
type PinConfig struct {
	// "input" or "output".
	Direction string `yaml:"direction"`

	// "pull-up", "pull-down" or "disabled".
	//
	// Empty leaves the bias as is.
	Bias string `yaml:"bias,omitempty"`

	// The level driven by outputs.
	Value int `yaml:"value,omitempty"`
}

// Validate checks the binding is complete for its kind.
func (b *Binding) Validate() error {
	if b.Name == "" {
		return errors.New("binding has no name")
	}
	switch b.Kind {
	case KindRegisterMap:
		if b.Bus == "" {
			return errors.Errorf("%s: regmap requires a bus", b.Name)
		}
		if b.Address > 0x3ff {
			return errors.Errorf("%s: invalid address 0x%x", b.Name, b.Address)
		}
		if b.ProbeLength < 0 || b.ProbeLength > 256 {
			return errors.Errorf("%s: invalid probe_length %d", b.Name, b.ProbeLength)
		}
	case KindPWMFan:
		if b.PWM == nil {
			return errors.Errorf("%s: pwm-fan requires a pwm", b.Name)
		}
		if b.PWM.Period <= 0 {
			return errors.Errorf("%s: invalid pwm period %d", b.Name, b.PWM.Period)
		}
	case KindGPIOFan:
		if b.GPIO == nil {
			return errors.Errorf("%s: gpio-fan requires a gpio", b.Name)
		}
	case KindThermal, KindInput:
	default:
		return errors.Errorf("%s: unknown kind '%s'", b.Name, b.Kind)
	}
	if b.GPIO != nil && b.GPIO.Chip == "" {
		return errors.Errorf("%s: gpio requires a chip", b.Name)
	}
	if b.PWM != nil && b.PWM.Chip == "" {
		return errors.Errorf("%s: pwm requires a chip", b.Name)
	}
	if b.Pins != nil {
		if err := b.Pins.validate(); err != nil {
			return errors.Wrap(err, b.Name)
		}
		if b.GPIO != nil &&
			path.Base(b.GPIO.Chip) == path.Base(b.Pins.Chip) &&
			slices.Contains(b.Pins.Offsets, b.GPIO.Offset) {
			return errors.Errorf("%s: gpio %d is also in pinctrl", b.Name, b.GPIO.Offset)
		}
	}
	return nil
}

func (p *PinsConfig) validate() error {
	if p.Chip == "" {
		return errors.New("pinctrl requires a chip")
	}
	if len(p.Offsets) == 0 {
		return errors.New("pinctrl requires offsets")
	}
	for name, s := range p.States {
		switch s.Direction {
		case "input", "output":
		default:
			return errors.Errorf("pinctrl state %s: invalid direction '%s'", name, s.Direction)
		}
		switch s.Bias {
		case "", "pull-up", "pull-down", "disabled":
		default:
			return errors.Errorf("pinctrl state %s: invalid bias '%s'", name, s.Bias)
		}
	}
	return nil
}

// Config is the configuration of a board and the services around it.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	MQTT    MQTTConfig    `yaml:"mqtt"`

	// Bounds each actuator operation.
	//
	// Defaults to DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`

	// The devices on the board, in bind order.
	Devices []Binding `yaml:"devices"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	// "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// "text" or "json".
	Format string `yaml:"format"`
}

// MQTTConfig controls the MQTT attribute surface.
//
// The surface is disabled if Broker is empty.
type MQTTConfig struct {
	// The broker URL, e.g. "tcp://localhost:1883".
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// The topic prefix, defaults to "devctl".
	Prefix string `yaml:"prefix"`
	QoS    byte   `yaml:"qos"`
}

// LoadConfig reads and validates the configuration in the named file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// ParseConfig parses and validates a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		MQTT:    MQTTConfig{ClientID: "devctl", Prefix: "devctl"},
		Timeout: DefaultTimeout,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if cfg.Timeout < 0 {
		return nil, errors.Errorf("invalid timeout %s", cfg.Timeout)
	}
	if cfg.MQTT.QoS > 2 {
		return nil, errors.Errorf("invalid mqtt qos %d", cfg.MQTT.QoS)
	}
	names := make(map[string]bool)
	for i := range cfg.Devices {
		b := &cfg.Devices[i]
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if names[b.Name] {
			return nil, errors.Errorf("duplicate device name '%s'", b.Name)
		}
		names[b.Name] = true
	}
	return &cfg, nil
}
