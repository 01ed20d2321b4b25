// Package tracepipe relays the probe's bpf_trace_printk output from the
// kernel trace pipe into the daemon log.
package tracepipe

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/pktprobe/internal/probeprog"
	"golang.org/x/time/rate"
)

// Paths are tried in order; tracefs is mounted under debugfs on older systems.
var Paths = []string{
	"/sys/kernel/tracing/trace_pipe",
	"/sys/kernel/debug/tracing/trace_pipe",
}

// Event is one payload value written by the probe.
type Event struct {
	Task      string
	PID       int
	CPU       int
	Timestamp string
	Message   string
	Value     uint64
}

//	<task>-<pid> [(<tgid>)] [<cpu>] <flags> <timestamp>: <event>: pktprobe: payload <value>
var lineRegexp = regexp.MustCompile(
	`^\s*(.+)-(\d+)\s+(?:\(\s*[\d-]+\)\s+)?\[(\d+)\]\s+(?:\S+\s+)?(\d+\.\d+):\s+\S+:\s+` +
		`(` + regexp.QuoteMeta(probeprog.TracePrefix) + `(\d+))\s*$`)

// ParseLine extracts the event from a trace pipe line. Lines written by
// other programs are reported as not ok.
func ParseLine(line string) (Event, bool) {
	m := lineRegexp.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	pid, err := strconv.Atoi(m[2])
	if err != nil {
		return Event{}, false
	}
	cpu, err := strconv.Atoi(m[3])
	if err != nil {
		return Event{}, false
	}
	value, err := strconv.ParseUint(m[6], 10, 64)
	if err != nil {
		return Event{}, false
	}
	return Event{Task: m[1], PID: pid, CPU: cpu, Timestamp: m[4], Message: m[5], Value: value}, true
}

type relayOpts struct {
	paths []string
	limit rate.Limit
	burst int
	log   logrus.FieldLogger
}

type RelayOpt func(*relayOpts)

func WithPaths(paths ...string) RelayOpt {
	return func(o *relayOpts) { o.paths = paths }
}

// WithRate caps logged events per second. Zero or less disables the cap.
func WithRate(perSecond int, burst int) RelayOpt {
	return func(o *relayOpts) {
		if perSecond <= 0 {
			o.limit = rate.Inf
		} else {
			o.limit = rate.Limit(perSecond)
		}
		o.burst = max(burst, 1)
	}
}

func WithLogger(log logrus.FieldLogger) RelayOpt {
	return func(o *relayOpts) { o.log = log }
}

type Relay struct {
	paths   []string
	limiter *rate.Limiter
	log     logrus.FieldLogger
	relayed atomic.Uint64
	dropped atomic.Uint64
}

func NewRelay(opts ...RelayOpt) *Relay {
	o := relayOpts{paths: Paths, limit: 100, burst: 100, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Relay{
		paths:   o.paths,
		limiter: rate.NewLimiter(o.limit, o.burst),
		log:     o.log,
	}
}

// Open returns the first trace pipe that can be opened.
func (r *Relay) Open() (*os.File, error) {
	var err error
	for _, path := range r.paths {
		var f *os.File
		f, err = os.Open(path)
		if err == nil {
			return f, nil
		}
	}
	if err == nil {
		err = os.ErrNotExist
	}
	return nil, errors.Wrap(err, "open trace_pipe")
}

// Run relays the trace pipe until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	f, err := r.Open()
	if err != nil {
		return err
	}
	r.log.WithField("path", f.Name()).Info("Relaying trace pipe")

	// A blocked read is only released by the next line, so the reader is
	// left behind once ctx is done.
	done := make(chan error, 1)
	go func() { done <- r.Relay(ctx, f) }()

	select {
	case <-ctx.Done():
		f.Close()
		return nil
	case err := <-done:
		f.Close()
		return err
	}
}

// Relay logs the probe's events read from rd until EOF or ctx is done.
func (r *Relay) Relay(ctx context.Context, rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if !r.limiter.Allow() {
			r.dropped.Add(1)
			continue
		}
		r.relayed.Add(1)
		r.log.WithFields(logrus.Fields{
			"task":  ev.Task,
			"pid":   ev.PID,
			"cpu":   ev.CPU,
			"value": ev.Value,
		}).Info("Payload")
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return errors.Wrap(err, "read trace_pipe")
	}
	return nil
}

// Stats returns how many events were logged and how many were over the rate.
func (r *Relay) Stats() (relayed, dropped uint64) {
	return r.relayed.Load(), r.dropped.Load()
}
