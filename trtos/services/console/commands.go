package console

import (
	"fmt"
	"io"
	"strconv"

	"trt/internal/buildinfo"
	"trt/trtos/diag"
	"trt/trtos/kernel"
	"trt/trtos/timer"
)

func builtins() []command {
	return []command{
		{Name: "help", Aliases: []string{"?"}, Usage: "help", Desc: "List commands.", Run: cmdHelp},
		{Name: "tasks", Usage: "tasks [id] [-f]", Desc: "Dump the task table.", Run: cmdTasks},
		{Name: "sems", Aliases: []string{"semaphores"}, Usage: "sems [id] [-f]", Desc: "Dump semaphore values.", Run: cmdSems},
		{Name: "mutex", Aliases: []string{"mutexes"}, Usage: "mutex [id] [-f]", Desc: "Dump mutex owners and states.", Run: cmdMutex},
		{Name: "timers", Usage: "timers [id] [-f]", Desc: "Dump the timer bank.", Run: cmdTimers},
		{Name: "dump", Usage: "dump [-f]", Desc: "Dump every table from one snapshot.", Run: cmdDump},
		{
			Name:  "timer",
			Usage: "timer set <id> <period> periodic|oneshot [sem] | timer start|stop|disable|status|periods <id>",
			Desc:  "Configure and control a timer.",
			Run:   cmdTimer,
		},
		{Name: "sem", Usage: "sem signal|value <id>", Desc: "Signal or read a semaphore.", Run: cmdSem},
		{Name: "tick", Usage: "tick [n]", Desc: "Deliver n tick interrupts (default 1).", Run: cmdTick},
		{Name: "version", Usage: "version", Desc: "Print the build identity.", Run: cmdVersion},
		{Name: "quit", Aliases: []string{"exit"}, Usage: "quit", Desc: "Leave the console.", Run: cmdQuit},
	}
}

// splitFreeze removes -f/--freeze from args.
func splitFreeze(args []string) ([]string, diag.Freeze) {
	f := diag.RunTimers
	out := args[:0:0]
	for _, a := range args {
		if a == "-f" || a == "--freeze" {
			f = diag.FreezeTimers
			continue
		}
		out = append(out, a)
	}
	return out, f
}

func parseUint(s string, bits int, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, s, err)
	}
	return v, nil
}

// optIndex parses an optional single index argument; 0 means "all".
func optIndex(args []string, what string) (uint64, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		return parseUint(args[0], 8, what)
	default:
		return 0, ErrUsage
	}
}

func parseSem(s string) (kernel.SemID, error) {
	v, err := parseUint(s, 8, "semaphore")
	if err != nil {
		return 0, err
	}
	id := kernel.SemID(v)
	if !id.Valid() {
		return 0, fmt.Errorf("semaphore %d out of range [1, %d]", v, kernel.MaxSemaphores)
	}
	return id, nil
}

func parseTimer(s string) (timer.ID, error) {
	v, err := parseUint(s, 8, "timer")
	if err != nil {
		return 0, err
	}
	id := timer.ID(v)
	if !id.Valid() {
		return 0, fmt.Errorf("timer %d out of range [1, %d]", v, timer.MaxTimers)
	}
	return id, nil
}

func cmdHelp(s *Service, out io.Writer, _ []string) error {
	for _, name := range s.reg.names() {
		cmd, _ := s.reg.resolve(name)
		fmt.Fprintf(out, "%-7s %s\n", cmd.Name, cmd.Desc)
		fmt.Fprintf(out, "        %s\n", cmd.Usage)
	}
	return nil
}

func cmdTasks(s *Service, out io.Writer, args []string) error {
	args, f := splitFreeze(args)
	id, err := optIndex(args, "task")
	if err != nil {
		return err
	}
	return s.dump.Tasks(out, kernel.TaskID(id), f)
}

func cmdSems(s *Service, out io.Writer, args []string) error {
	args, f := splitFreeze(args)
	id, err := optIndex(args, "semaphore")
	if err != nil {
		return err
	}
	return s.dump.Semaphores(out, kernel.SemID(id), f)
}

func cmdMutex(s *Service, out io.Writer, args []string) error {
	args, f := splitFreeze(args)
	id, err := optIndex(args, "mutex")
	if err != nil {
		return err
	}
	return s.dump.Mutexes(out, kernel.SemID(id), f)
}

func cmdTimers(s *Service, out io.Writer, args []string) error {
	args, f := splitFreeze(args)
	id, err := optIndex(args, "timer")
	if err != nil {
		return err
	}
	return s.dump.Timers(out, timer.ID(id), f)
}

func cmdDump(s *Service, out io.Writer, args []string) error {
	args, f := splitFreeze(args)
	if len(args) != 0 {
		return ErrUsage
	}
	return s.dump.All(out, f)
}

func cmdTimer(s *Service, out io.Writer, args []string) error {
	if s.tb == nil {
		return fmt.Errorf("no timer bank")
	}
	if len(args) < 2 {
		return ErrUsage
	}
	id, err := parseTimer(args[1])
	if err != nil {
		return err
	}

	switch args[0] {
	case "set":
		if len(args) < 4 || len(args) > 5 {
			return ErrUsage
		}
		period, err := parseUint(args[2], 16, "period")
		if err != nil {
			return err
		}
		var mode timer.Mode
		switch args[3] {
		case "periodic":
			mode = timer.Periodic
		case "oneshot":
			mode = timer.OneShot
		default:
			return fmt.Errorf("bad mode %q (want periodic or oneshot)", args[3])
		}
		target := kernel.NoSem
		if len(args) == 5 {
			if target, err = parseSem(args[4]); err != nil {
				return err
			}
		}
		if err := s.tb.Configure(id, uint16(period), mode, target); err != nil {
			return err
		}
	case "start":
		s.tb.Start(id)
	case "stop":
		s.tb.Stop(id)
	case "disable":
		s.tb.Disable(id)
	case "status":
		st := s.tb.Status(id)
		fmt.Fprintf(out, "timer %d: %#02x %s\n", id, uint8(st), st)
		return nil
	case "periods":
		fmt.Fprintf(out, "timer %d: %d\n", id, s.tb.ElapsedPeriods(id))
		return nil
	default:
		return ErrUsage
	}
	fmt.Fprintf(out, "timer %d: %s\n", id, s.tb.Status(id))
	return nil
}

func cmdSem(s *Service, out io.Writer, args []string) error {
	if s.k == nil {
		return fmt.Errorf("no kernel")
	}
	if len(args) != 2 {
		return ErrUsage
	}
	id, err := parseSem(args[1])
	if err != nil {
		return err
	}
	switch args[0] {
	case "signal":
		s.k.Signal(id)
	case "value":
	default:
		return ErrUsage
	}
	fmt.Fprintf(out, "sem %d: %d\n", id, s.k.SemValue(id))
	return nil
}

func cmdTick(s *Service, out io.Writer, args []string) error {
	n := uint64(1)
	switch len(args) {
	case 0:
	case 1:
		v, err := parseUint(args[0], 32, "tick count")
		if err != nil {
			return err
		}
		n = v
	default:
		return ErrUsage
	}
	for i := uint64(0); i < n; i++ {
		s.tick()
	}
	if s.k != nil {
		fmt.Fprintf(out, "now %d\n", s.k.Now())
	}
	return nil
}

func cmdVersion(_ *Service, out io.Writer, _ []string) error {
	fmt.Fprintln(out, buildinfo.Long())
	return nil
}

func cmdQuit(*Service, io.Writer, []string) error {
	return ErrQuit
}
