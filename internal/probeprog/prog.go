// Package probeprog assembles, loads and test-runs the in-kernel packet
// probe for the XDP and tc hooks.
package probeprog

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/rlimit"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/pktprobe/internal/probe"
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

// bpf_trace_printk is gpl_only.
const License = "GPL"

// Kinds lists the hooks a program is assembled for.
var Kinds = []hook.Kind{hook.KindXDP, hook.KindTC}

// Fixed IPv6 header, struct ipv6hdr.
const sizeofIPv6 = 40

// MinRunLen returns the shortest data BPF_PROG_TEST_RUN accepts for kind.
// Every hook needs an Ethernet header. The skb test run also pulls the
// network header of IPv4 and IPv6 frames and fails with EINVAL when it is
// cut short.
func MinRunLen(kind hook.Kind, data []byte) int {
	n := fastpkt.SizeofEthernet
	if kind != hook.KindTC || len(data) < n {
		return n
	}

	switch netutil.Ntohs(fastpkt.DataPtrEthHeader(data, 0).HwProto) {
	case unix.ETH_P_IP:
		return n + fastpkt.SizeofIPv4
	case unix.ETH_P_IPV6:
		return n + sizeofIPv6
	}
	return n
}

var ErrUnknownHook = errors.New("unknown hook")

type programOpts struct {
	trace    bool
	logLevel ebpf.LogLevel
}

type ProgramOpt func(*programOpts)

// WithTrace controls whether the payload subprogram writes each value it
// reads to the trace pipe. Enabled by default.
func WithTrace(enable bool) ProgramOpt {
	return func(o *programOpts) { o.trace = enable }
}

// WithLogLevel sets the verifier log level used when loading.
func WithLogLevel(level ebpf.LogLevel) ProgramOpt {
	return func(o *programOpts) { o.logLevel = level }
}

func newProgramOpts(opts ...ProgramOpt) *programOpts {
	o := &programOpts{trace: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Instructions returns the entry function of the given hook followed by
// the payload subprogram, or nil for an unknown hook.
func Instructions(kind hook.Kind, opts ...ProgramOpt) asm.Instructions {
	l, ok := layouts[kind]
	if !ok {
		return nil
	}
	o := newProgramOpts(opts...)

	insns := asm.Instructions{}
	insns = append(insns, l.entry()...)
	insns = append(insns, l.fetchPayload(o.trace)...)
	return insns
}

func NewProgramSpec(kind hook.Kind, opts ...ProgramOpt) (*ebpf.ProgramSpec, error) {
	l, ok := layouts[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHook, "%d", kind)
	}
	insns := Instructions(kind, opts...)

	return &ebpf.ProgramSpec{
		Name:         l.name,
		Type:         l.progType,
		Instructions: insns,
		License:      License,
	}, nil
}

// Objects holds one loaded program per hook.
type Objects struct {
	XDP *ebpf.Program
	TC  *ebpf.Program

	opts []ProgramOpt
}

// LoadObjects loads the program for every hook. A verifier rejection is
// returned as is, wrapping *ebpf.VerifierError, after the full log has
// been written at error level.
func LoadObjects(opts ...ProgramOpt) (*Objects, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, errors.Wrap(err, "rlimit.RemoveMemlock")
	}

	objs := Objects{opts: opts}
	for _, kind := range Kinds {
		prog, err := loadProgram(kind, opts...)
		if err != nil {
			objs.Close()
			return nil, err
		}
		objs.set(kind, prog)
	}
	return &objs, nil
}

func loadProgram(kind hook.Kind, opts ...ProgramOpt) (*ebpf.Program, error) {
	spec, err := NewProgramSpec(kind, opts...)
	if err != nil {
		return nil, err
	}
	o := newProgramOpts(opts...)

	prog, err := ebpf.NewProgramWithOptions(spec, ebpf.ProgramOptions{LogLevel: o.logLevel})
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			logrus.WithField("hook", kind).Errorf("Verifier rejected program: %+v", ve)
		}
		return nil, errors.Wrapf(err, "ebpf.NewProgram(%s)", spec.Name)
	}
	logrus.WithFields(logrus.Fields{"hook": kind, "name": spec.Name, "insns": len(spec.Instructions)}).Debug("Loaded program")
	return prog, nil
}

func (o *Objects) set(kind hook.Kind, prog *ebpf.Program) {
	switch kind {
	case hook.KindXDP:
		o.XDP = prog
	case hook.KindTC:
		o.TC = prog
	}
}

// Program returns the loaded program for kind, or nil.
func (o *Objects) Program(kind hook.Kind) *ebpf.Program {
	switch kind {
	case hook.KindXDP:
		return o.XDP
	case hook.KindTC:
		return o.TC
	}
	return nil
}

func (o *Objects) Close() error {
	var errs []error
	for _, prog := range []*ebpf.Program{o.XDP, o.TC} {
		if prog == nil {
			continue
		}
		if err := prog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.XDP, o.TC = nil, nil
	if len(errs) > 0 {
		return errors.Errorf("close programs: %v", errs)
	}
	return nil
}

// Run test-runs data through the loaded program for kind.
func (o *Objects) Run(kind hook.Kind, data []byte) (uint32, error) {
	prog := o.Program(kind)
	if prog == nil {
		return 0, errors.Wrapf(ErrUnknownHook, "%d", kind)
	}
	return Run(prog, data)
}

// VerifierLog returns the verifier log of the program for kind, built
// with the options the objects were loaded with.
func (o *Objects) VerifierLog(kind hook.Kind) (string, error) {
	return VerifierLog(kind, o.opts...)
}

// VerifierLog loads the program for kind once more with instruction level
// logging and returns what the verifier printed. The log of a rejected
// program is returned together with the error.
func VerifierLog(kind hook.Kind, opts ...ProgramOpt) (string, error) {
	spec, err := NewProgramSpec(kind, opts...)
	if err != nil {
		return "", err
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		return "", errors.Wrap(err, "rlimit.RemoveMemlock")
	}

	prog, err := ebpf.NewProgramWithOptions(spec, ebpf.ProgramOptions{
		LogLevel: ebpf.LogLevelInstruction | ebpf.LogLevelStats,
	})
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			return fmt.Sprintf("%+v", ve), errors.Wrap(err, "verifier")
		}
		return "", errors.Wrapf(err, "ebpf.NewProgram(%s)", spec.Name)
	}
	defer prog.Close()
	return prog.VerifierLog, nil
}

// Run passes data through prog once with BPF_PROG_TEST_RUN and returns the
// program's return value. See MinRunLen for the lengths the kernel refuses.
func Run(prog *ebpf.Program, data []byte) (uint32, error) {
	ret, err := prog.Run(&ebpf.RunOptions{Data: data})
	if err != nil {
		return 0, errors.Wrap(err, "prog.Run")
	}
	return ret, nil
}

// VerdictString names a return value of the program for kind.
func VerdictString(kind hook.Kind, code uint32) string {
	switch kind {
	case hook.KindXDP:
		switch code {
		case probe.XDPPass:
			return "XDP_PASS"
		case probe.XDPAborted:
			return "XDP_ABORTED"
		}
	case hook.KindTC:
		switch int32(code) {
		case probe.TCActPipe:
			return "TC_ACT_PIPE"
		case probe.TCActShot:
			return "TC_ACT_SHOT"
		}
	}
	return fmt.Sprintf("unknown(%d)", code)
}

// Accepted reports whether code lets the packet continue on the hook.
func Accepted(kind hook.Kind, code uint32) bool {
	l, ok := layouts[kind]
	return ok && int32(code) == l.pass
}
