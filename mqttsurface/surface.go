// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mqttsurface exposes the attributes of devctl devices over MQTT.
//
// Each readable attribute is published, retained, to
//
//	<prefix>/<device>/<attr>
//
// when the surface starts and whenever the attribute changes.
// Writing an attribute is requested by publishing the raw value to
//
//	<prefix>/<device>/<attr>/set
//
// and a fresh read, including a live read of the actuator, by publishing
// anything to
//
//	<prefix>/<device>/<attr>/get
//
// Failed requests are reported on <prefix>/<device>/<attr>/error.
package mqttsurface

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/warthog618/go-devctl"
)

// Client is the subset of the paho client used by the surface.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}

// Surface bridges a set of devices to an MQTT broker.
type Surface struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	log     *slog.Logger
	devices map[string]*devctl.Device

	mu      sync.Mutex
	cancels []func()
}

// Option configures a Surface.
type Option func(*Surface)

// WithPrefix sets the topic prefix, which defaults to "devctl".
func WithPrefix(prefix string) Option {
	return func(s *Surface) {
		s.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithQoS sets the QoS used for subscriptions and publications.
func WithQoS(qos byte) Option {
	return func(s *Surface) {
		s.qos = qos
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Surface) {
		s.log = l
	}
}

// New creates a surface for the devices.
func New(client Client, devices []*devctl.Device, options ...Option) *Surface {
	s := &Surface{
		client:  client,
		prefix:  "devctl",
		timeout: 5 * time.Second,
		devices: make(map[string]*devctl.Device),
	}
	for _, d := range devices {
		s.devices[d.Name()] = d
	}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Surface) stateTopic(device, attr string) string {
	return s.prefix + "/" + device + "/" + attr
}

// Start subscribes to the command topics and publishes the current state
// of every readable attribute.
func (s *Surface) Start() error {
	tok := s.client.Subscribe(s.prefix+"/+/+/+", s.qos, s.handle)
	if err := s.wait(tok); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	s.mu.Lock()
	for _, d := range s.devices {
		s.cancels = append(s.cancels, d.Watch(s.publishEvent))
	}
	s.mu.Unlock()
	for _, d := range s.devices {
		for _, a := range d.Attributes() {
			// live reads are only made on request
			if a.Readable() && !a.Live {
				s.publishAttr(d, a.Name)
			}
		}
	}
	return nil
}

// Stop unsubscribes and stops publishing changes.
func (s *Surface) Stop() error {
	s.mu.Lock()
	for _, c := range s.cancels {
		c()
	}
	s.cancels = nil
	s.mu.Unlock()
	return s.wait(s.client.Unsubscribe(s.prefix + "/+/+/+"))
}

func (s *Surface) wait(tok pahomqtt.Token) error {
	if !tok.WaitTimeout(s.timeout) {
		return errors.Errorf("timeout after %s", s.timeout)
	}
	return tok.Error()
}

// handle dispatches a message received on a command topic.
func (s *Surface) handle(_ pahomqtt.Client, msg pahomqtt.Message) {
	rest := strings.TrimPrefix(msg.Topic(), s.prefix+"/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return
	}
	name, attr, cmd := parts[0], parts[1], parts[2]
	d, ok := s.devices[name]
	if !ok {
		s.log.Debug("command for unknown device", "topic", msg.Topic())
		return
	}
	switch cmd {
	case "set":
		if _, err := d.WriteAttribute(attr, msg.Payload()); err != nil {
			s.publishError(name, attr, err)
		}
	case "get":
		s.publishAttr(d, attr)
	}
}

func (s *Surface) publishAttr(d *devctl.Device, attr string) {
	v, err := d.ReadAttribute(attr)
	if err != nil {
		s.publishError(d.Name(), attr, err)
		if v == "" {
			return
		}
	}
	s.publish(s.stateTopic(d.Name(), attr), v)
}

func (s *Surface) publishEvent(evt devctl.Event) {
	s.publish(s.stateTopic(evt.Device, evt.Attribute), evt.Value)
}

func (s *Surface) publishError(device, attr string, err error) {
	s.log.Warn("attribute request failed", "device", device, "attr", attr, "error", err)
	tok := s.client.Publish(s.stateTopic(device, attr)+"/error", s.qos, false, err.Error())
	if err := s.wait(tok); err != nil {
		s.log.Error("publish failed", "device", device, "attr", attr, "error", err)
	}
}

func (s *Surface) publish(topic, value string) {
	if err := s.wait(s.client.Publish(topic, s.qos, true, value)); err != nil {
		s.log.Error("publish failed", "topic", topic, "error", err)
	}
}

// Dial connects to the broker described by cfg.
func Dial(cfg devctl.MQTTConfig) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		// handlers publish, and so must not block the router
		SetOrderMatters(false).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	c := pahomqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, errors.Errorf("connect to %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrapf(err, "connect to %s", cfg.Broker)
	}
	return c, nil
}
