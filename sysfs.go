// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// readAttr reads the named attribute in directory p.
func readAttr(p, attr string) (string, error) {
	data, err := os.ReadFile(path.Join(p, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// writeAttr writes the named attribute in directory p.
func writeAttr(p, attr, value string) error {
	return os.WriteFile(path.Join(p, attr), []byte(value), 0666)
}

// sysfsPWM is a PWM channel exported through /sys/class/pwm.
type sysfsPWM struct {
	// The path to the pwmchip, e.g. /sys/class/pwm/pwmchip0
	chipPath string

	// The path to the exported channel, e.g. /sys/class/pwm/pwmchip0/pwm0
	path string

	channel  int
	exported bool

	// mu guards the values below, which shadow the sysfs attributes
	mu     sync.Mutex
	duty   int
	period int
}

func openSysfsPWM(root string, ref PWMRef) (*sysfsPWM, error) {
	chipPath := path.Join(root, ref.Chip)
	if _, err := os.Stat(chipPath); err != nil {
		return nil, err
	}
	p := &sysfsPWM{
		chipPath: chipPath,
		path:     path.Join(chipPath, "pwm"+strconv.Itoa(ref.Channel)),
		channel:  ref.Channel,
	}
	if _, err := os.Stat(p.path); err != nil {
		if err := writeAttr(chipPath, "export", strconv.Itoa(ref.Channel)); err != nil {
			return nil, errors.Wrap(err, "export")
		}
		if _, err := os.Stat(p.path); err != nil {
			return nil, err
		}
		p.exported = true
	}
	var err error
	if p.period, err = p.attrInt("period"); err != nil {
		p.Close()
		return nil, err
	}
	if p.duty, err = p.attrInt("duty_cycle"); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *sysfsPWM) attrInt(name string) (int, error) {
	v, err := readAttr(p.path, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Errorf("unexpected %s value: %s", name, v)
	}
	return n, nil
}

// Configure sets the duty cycle and period.
//
// The kernel rejects a duty cycle greater than the period, so the
// attributes are written in the order that keeps that true throughout.
func (p *sysfsPWM) Configure(duty, period int) error {
	if duty > period {
		return errors.Errorf("duty %d exceeds period %d", duty, period)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if period != p.period && duty <= p.period {
		if err := writeAttr(p.path, "duty_cycle", strconv.Itoa(duty)); err != nil {
			return err
		}
		p.duty = duty
	}
	if period != p.period {
		if err := writeAttr(p.path, "period", strconv.Itoa(period)); err != nil {
			return err
		}
		p.period = period
	}
	if duty != p.duty {
		if err := writeAttr(p.path, "duty_cycle", strconv.Itoa(duty)); err != nil {
			return err
		}
		p.duty = duty
	}
	return nil
}

func (p *sysfsPWM) Enable() error {
	return writeAttr(p.path, "enable", "1")
}

func (p *sysfsPWM) Disable() error {
	return writeAttr(p.path, "enable", "0")
}

// Close unexports the channel, if it was exported by openSysfsPWM.
func (p *sysfsPWM) Close() error {
	if !p.exported {
		return nil
	}
	p.exported = false
	return writeAttr(p.chipPath, "unexport", strconv.Itoa(p.channel))
}

// sysfsWakeup controls the wakeup attribute of a device power directory.
type sysfsWakeup struct {
	path string
}

func openSysfsWakeup(p string) (*sysfsWakeup, error) {
	v, err := readAttr(p, "wakeup")
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, errors.Errorf("%s does not support wakeup", p)
	}
	return &sysfsWakeup{path: p}, nil
}

func (w *sysfsWakeup) Arm() error {
	return writeAttr(w.path, "wakeup", "enabled")
}

func (w *sysfsWakeup) Disarm() error {
	return writeAttr(w.path, "wakeup", "disabled")
}
