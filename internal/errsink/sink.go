// Package errsink appends recoverable failures to errors.log and fatal ones
// to crash.log inside the application data directory.
package errsink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"k8s.io/utils/clock"
)

const (
	ErrorsFile = "errors.log"
	CrashFile  = "crash.log"

	timestampFormat = "2006-01-02T15:04:05.000000Z"
)

// Sink is a process-wide append-only error log. The zero value is not usable;
// construct it with New.
type Sink struct {
	mu     sync.Mutex
	dir    string
	clock  clock.PassiveClock
	logger *slog.Logger
	exit   func(code int)
}

// Option configures a Sink.
type Option func(*Sink)

// WithClock overrides the clock used for line timestamps.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Sink) { s.clock = c }
}

// WithLogger sets the logger that receives write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// WithExit replaces os.Exit on the fatal path.
func WithExit(fn func(code int)) Option {
	return func(s *Sink) { s.exit = fn }
}

// New creates a sink writing into dir.
func New(dir string, opts ...Option) *Sink {
	s := &Sink{
		dir:    dir,
		clock:  clock.RealClock{},
		logger: slog.Default(),
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends "[timestamp] where: err" to errors.log. It never panics and
// only reports its own write failures to the logger.
func (s *Sink) Record(where string, err error) {
	if s == nil || err == nil {
		return
	}
	msg := err.Error()
	if where != "" {
		msg = where + ": " + msg
	}
	s.logger.Warn("recoverable error", "where", where, "err", err)
	if werr := s.append(ErrorsFile, msg); werr != nil {
		s.logger.Error("write error log", "err", werr)
	}
}

// RecordFatal writes type, message and stack of err to crash.log, then exits
// with status 1.
func (s *Sink) RecordFatal(err error) {
	s.recordFatal(err, debug.Stack())
}

// Recover is meant to be deferred at the top of main and of long-running
// goroutines. A panic is routed to RecordFatal.
func (s *Sink) Recover() {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	s.recordFatal(err, debug.Stack())
}

func (s *Sink) recordFatal(err error, stack []byte) {
	if err == nil {
		err = fmt.Errorf("unknown fatal error")
	}
	lines := []string{
		fmt.Sprintf("type: %T", err),
		"exception: " + err.Error(),
		"traceback: " + strings.TrimSpace(string(stack)),
	}
	fmt.Fprintln(os.Stderr, strings.Join(lines, "\n"))
	if werr := s.append(CrashFile, lines...); werr != nil {
		s.logger.Error("write crash log", "err", werr)
	}
	s.exit(1)
}

func (s *Sink) append(name string, messages ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	ts := s.clock.Now().UTC().Format(timestampFormat)
	var b strings.Builder
	for _, m := range messages {
		// Multi-line payloads keep the prefix on every line.
		for _, line := range strings.Split(m, "\n") {
			fmt.Fprintf(&b, "[%s] %s\n", ts, line)
		}
	}
	_, err = f.WriteString(b.String())
	return err
}
