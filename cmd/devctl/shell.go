// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/warthog618/go-devctl"
)

// shellSession is an interactive command line for a board.
type shellSession struct {
	rl *readline.Instance
}

func newShell() (*shellSession, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "devctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, errors.Wrap(err, "create readline")
	}
	return &shellSession{rl: rl}, nil
}

// Stderr returns a writer that coordinates with the prompt.
func (s *shellSession) Stderr() io.Writer {
	return s.rl.Stderr()
}

func (s *shellSession) Close() error {
	return s.rl.Close()
}

// Run reads and executes commands until the input ends or ctx is done.
func (s *shellSession) Run(ctx context.Context, cancel context.CancelFunc, b *devctl.Board) {
	out := s.rl.Stdout()
	printHelp(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			cancel()
			return
		}
		if err := execute(out, b, fields); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list                        list devices and their attributes")
	fmt.Fprintln(w, "  get <device> <attr>         read an attribute")
	fmt.Fprintln(w, "  set <device> <attr> <value> write an attribute")
	fmt.Fprintln(w, "  suspend [mem|standby]       suspend the board")
	fmt.Fprintln(w, "  resume                      resume the board")
	fmt.Fprintln(w, "  quit                        unbind and exit")
}

// execute runs a single shell command.
func execute(w io.Writer, b *devctl.Board, fields []string) error {
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help", "?":
		printHelp(w)
	case "list", "ls":
		for _, d := range b.Devices {
			fmt.Fprintf(w, "%s (%s, %s)\n", d.Name(), d.Kind(), d.Mode())
			for _, a := range d.Attributes() {
				mode := ""
				if a.Readable() {
					mode += "r"
				}
				if a.Writable() {
					mode += "w"
				}
				fmt.Fprintf(w, "  %-16s %s\n", a.Name, mode)
			}
		}
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <device> <attr>")
		}
		d, err := b.Device(args[0])
		if err != nil {
			return err
		}
		v, err := d.ReadAttribute(args[1])
		if err != nil {
			if v != "" {
				fmt.Fprintf(w, "%s (last known)\n", v)
			}
			return err
		}
		fmt.Fprintln(w, v)
	case "set":
		if len(args) != 3 {
			return errors.New("usage: set <device> <attr> <value>")
		}
		d, err := b.Device(args[0])
		if err != nil {
			return err
		}
		_, err = d.WriteAttribute(args[1], []byte(args[2]))
		return err
	case "suspend":
		t := devctl.SuspendToRAM
		if len(args) > 0 {
			var err error
			if t, err = devctl.ParseTransition(args[0]); err != nil {
				return err
			}
		}
		return b.Suspend(t)
	case "resume":
		return b.Resume()
	default:
		return errors.Errorf("unknown command: %s", cmd)
	}
	return nil
}
