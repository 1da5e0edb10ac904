// Package console is a line-oriented diagnostic console: dumps of the task,
// semaphore, mutex and timer tables, and direct control of the timers.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/shlex"

	"trt/trtos/diag"
	"trt/trtos/kernel"
	"trt/trtos/mutex"
	"trt/trtos/timer"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	// ErrQuit is returned by Exec for the quit command.
	ErrQuit = errors.New("quit")
)

// Config wires the console to the system it inspects.
type Config struct {
	Kernel  *kernel.Kernel
	Mutexes *mutex.Table
	Timers  *timer.Bank
	// Tick, when set, lets the console drive the tick interrupt itself
	// with the "tick" command.
	Tick func()
	// Echo prints every command before running it.
	Echo bool
}

type Service struct {
	k    *kernel.Kernel
	mt   *mutex.Table
	tb   *timer.Bank
	dump *diag.Dumper
	tick func()
	echo bool
	reg  *registry
}

func New(cfg Config) *Service {
	s := &Service{
		k:    cfg.Kernel,
		mt:   cfg.Mutexes,
		tb:   cfg.Timers,
		tick: cfg.Tick,
		echo: cfg.Echo,
		reg:  newRegistry(),
	}
	s.dump = &diag.Dumper{}
	if s.k != nil {
		s.dump.Kernel = s.k
	}
	if s.mt != nil {
		s.dump.Locks = s.mt
	}
	if s.tb != nil {
		s.dump.Bank = s.tb
	}
	for _, cmd := range builtins() {
		if cmd.Name == "tick" && s.tick == nil {
			continue
		}
		if err := s.reg.register(cmd); err != nil {
			panic(err)
		}
	}
	return s
}

// Run executes lines from in until EOF, a "quit" command or ctx is done.
// Command errors are printed to out and do not stop the console.
func (s *Service) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			err := s.Exec(out, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

// Exec runs one command line. Blank lines and # comments do nothing.
func (s *Service) Exec(out io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}
	if s.echo {
		fmt.Fprintf(out, "> %s\n", strings.Join(args, " "))
	}

	cmd, ok := s.reg.resolve(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	if err := cmd.Run(s, out, args[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w: %s", ErrUsage, cmd.Usage)
		}
		return err
	}
	return nil
}
