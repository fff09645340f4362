// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package devctl

import (
	"log/slog"
	"time"
)

// BindOption defines the interface required to provide an option to Bind.
type BindOption interface {
	applyBindOption(*bindConfig)
}

// NewBoardOption defines the interface required to provide an option to
// NewBoard.
type NewBoardOption interface {
	applyBoardOption(*builder)
}

type bindConfig struct {
	log     *slog.Logger
	timeout time.Duration
}

// LoggerOption sets the logger used by devices.
type LoggerOption struct {
	*slog.Logger
}

// WithLogger returns an option that sets the logger for devices.
//
// Devices log nothing by default.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyBindOption(c *bindConfig) {
	c.log = o.Logger
}

func (o LoggerOption) applyBoardOption(b *builder) {
	b.log = o.Logger
}

// TimeoutOption bounds the time allowed for each actuator operation.
type TimeoutOption time.Duration

// WithTimeout returns an option that bounds each actuator operation.
//
// A zero or negative timeout disables the bound.
// The default is DefaultTimeout.
func WithTimeout(d time.Duration) TimeoutOption {
	return TimeoutOption(d)
}

func (o TimeoutOption) applyBindOption(c *bindConfig) {
	c.timeout = time.Duration(o)
}

func (o TimeoutOption) applyBoardOption(b *builder) {
	b.timeout = time.Duration(o)
}

// WithBinding returns an option that adds a device to the Board.
//
// Devices are bound in the order they are added.
func WithBinding(b Binding) Binding {
	return b
}

func (o Binding) applyBoardOption(b *builder) {
	b.bindings = append(b.bindings, o)
}

// HardwareOption sets the hardware a Board binds its devices to.
type HardwareOption struct {
	Hardware
}

// WithHardware returns an option that sets the hardware for the Board.
func WithHardware(hw Hardware) HardwareOption {
	return HardwareOption{hw}
}

func (o HardwareOption) applyBoardOption(b *builder) {
	b.hw = o.Hardware
}

// ConfigOption adds the devices and timeout from a Config to a Board.
type ConfigOption struct {
	*Config
}

// WithConfig returns an option that adds the devices described by cfg to
// the Board, and applies the configured timeout.
func WithConfig(cfg *Config) ConfigOption {
	return ConfigOption{cfg}
}

func (o ConfigOption) applyBoardOption(b *builder) {
	b.bindings = append(b.bindings, o.Devices...)
	b.timeout = o.Timeout
}
