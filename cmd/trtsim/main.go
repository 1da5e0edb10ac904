// Command trtsim replays console scripts against a fresh kernel, mutex
// table and timer bank whose tick is driven by the script itself.
//
//	trtsim -in script.txt
//	echo 'timer set 1 3 periodic 4; timer start 1; tick 9; timers 1' | trtsim
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"trt/trtos/kernel"
	"trt/trtos/mutex"
	"trt/trtos/services/console"
	"trt/trtos/timer"
)

type options struct {
	granularity timer.Granularity
	echo        bool
	strict      bool
	verbose     bool
}

func main() {
	var (
		inPath  = flag.String("in", "", "Script file (default stdin).")
		gran    = flag.String("tick", "10ms", "Tick granularity: 100us|1ms|10ms.")
		echo    = flag.Bool("echo", false, "Print every command before its output.")
		strict  = flag.Bool("strict", false, "Stop at the first failing command.")
		verbose = flag.Bool("v", false, "Log kernel events to stderr.")
	)
	flag.Parse()

	g, err := timer.ParseGranularity(*gran)
	if err != nil {
		fatalf("%v", err)
	}

	in := io.Reader(os.Stdin)
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		in = f
	}

	opts := options{granularity: g, echo: *echo, strict: *strict, verbose: *verbose}
	if err := run(in, os.Stdout, opts); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "trtsim: "+format+"\n", args...)
	os.Exit(1)
}

type stderrLogger struct{}

func (stderrLogger) WriteLineString(s string) { fmt.Fprintln(os.Stderr, s) }

func run(in io.Reader, out io.Writer, opts options) error {
	var log kernel.Logger
	if opts.verbose {
		log = stderrLogger{}
	}
	k := kernel.New(log)
	tb := timer.New(k, opts.granularity)
	con := console.New(console.Config{
		Kernel:  k,
		Mutexes: mutex.New(k),
		Timers:  tb,
		Tick: func() {
			k.Tick()
			tb.Tick()
		},
		Echo: opts.echo,
	})

	src := splitStatements(in)
	defer src.Close()

	if !opts.strict {
		return con.Run(context.Background(), src, out)
	}

	sc := bufio.NewScanner(src)
	for n := 1; sc.Scan(); n++ {
		err := con.Exec(out, sc.Text())
		if errors.Is(err, console.ErrQuit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("statement %d: %w", n, err)
		}
	}
	return sc.Err()
}

// splitStatements lets a script put several commands on one line separated
// by ';'.
func splitStatements(in io.Reader) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			var b strings.Builder
			for _, stmt := range strings.Split(line, ";") {
				b.WriteString(strings.TrimSpace(stmt))
				b.WriteByte('\n')
			}
			if _, err := io.WriteString(pw, b.String()); err != nil {
				return
			}
		}
		pw.CloseWithError(sc.Err())
	}()
	return pr
}
