package probeprog

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/pktprobe/internal/probe"
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/hook"
	"golang.org/x/sys/unix"
)

func TestNewProgramSpec(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			spec, err := NewProgramSpec(kind)
			require.NoError(t, err)
			assert.Equal(t, layouts[kind].progType, spec.Type)
			assert.Equal(t, License, spec.License)
			assert.Equal(t, layouts[kind].name, spec.Instructions[0].Symbol())

			var (
				calls   int
				printks int
				symbols = make(map[string]int)
			)
			for _, ins := range spec.Instructions {
				if sym := ins.Symbol(); sym != "" {
					symbols[sym]++
				}
				if ins.IsFunctionCall() {
					calls++
					assert.Equal(t, FetchPayloadSymbol, ins.Reference())
				}
				if ins.IsBuiltinCall() && asm.BuiltinFunc(ins.Constant) == asm.FnTracePrintk {
					printks++
				}
			}
			assert.Equal(t, 1, calls)
			assert.Equal(t, 2, printks)
			for sym, n := range symbols {
				assert.Equal(t, 1, n, "symbol %s", sym)
			}
			assert.Contains(t, symbols, FetchPayloadSymbol)

			var buf bytes.Buffer
			require.NoError(t, spec.Copy().Instructions.Marshal(&buf, binary.LittleEndian))
		})
	}
}

func TestNewProgramSpecWithoutTrace(t *testing.T) {
	spec, err := NewProgramSpec(hook.KindXDP, WithTrace(false))
	require.NoError(t, err)
	for _, ins := range spec.Instructions {
		assert.False(t, ins.IsBuiltinCall(), "%v", ins)
	}
}

func TestNewProgramSpecUnknownHook(t *testing.T) {
	_, err := NewProgramSpec(hook.KindUnspec)
	assert.ErrorIs(t, err, ErrUnknownHook)
}

func TestContextOffsets(t *testing.T) {
	for kind, want := range map[hook.Kind][2]int16{
		hook.KindXDP: {0, 4},
		hook.KindTC:  {76, 80},
	} {
		spec, err := NewProgramSpec(kind)
		require.NoError(t, err)

		// Entry loads the window once, the subprogram once per read.
		var got []int16
		for _, ins := range spec.Instructions {
			if ins.OpCode.Class().IsLoad() && ins.OpCode.Mode() == asm.MemMode && ins.OpCode.Size() == asm.Word {
				got = append(got, ins.Offset)
			}
		}
		assert.Equal(t, []int16{want[0], want[1], want[0], want[1], want[0], want[1]}, got, kind.String())
	}
}

func TestTraceFormat(t *testing.T) {
	assert.Zero(t, len(traceFormat)%8)
	assert.Equal(t, byte(0), traceFormat[len(traceFormat)-1])
	assert.True(t, bytes.HasPrefix(traceFormat, []byte(TracePrefix)))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "XDP_PASS", VerdictString(hook.KindXDP, probe.XDPPass))
	assert.Equal(t, "XDP_ABORTED", VerdictString(hook.KindXDP, probe.XDPAborted))
	assert.Equal(t, "TC_ACT_PIPE", VerdictString(hook.KindTC, uint32(probe.TCActPipe)))
	assert.Equal(t, "TC_ACT_SHOT", VerdictString(hook.KindTC, uint32(probe.TCActShot)))
	assert.Equal(t, "unknown(7)", VerdictString(hook.KindTC, 7))

	assert.True(t, Accepted(hook.KindXDP, probe.XDPPass))
	assert.False(t, Accepted(hook.KindXDP, probe.XDPAborted))
	assert.True(t, Accepted(hook.KindTC, uint32(probe.TCActPipe)))
	assert.False(t, Accepted(hook.KindTC, uint32(probe.TCActShot)))
	assert.False(t, Accepted(hook.KindUnspec, 0))
}

func TestMinRunLen(t *testing.T) {
	ipv4 := build(unix.IPPROTO_TCP, make([]byte, 16))
	ipv6 := fastpkt.Build(make([]byte, 128), &fastpkt.Layers{EthProto: unix.ETH_P_IPV6, Payload: make([]byte, 40)})
	arp := fastpkt.Build(make([]byte, 128), &fastpkt.Layers{EthProto: unix.ETH_P_ARP})

	testCases := []struct {
		kind hook.Kind
		data []byte
		want int
	}{
		{hook.KindXDP, ipv4, 14},
		{hook.KindXDP, ipv4[:20], 14},
		{hook.KindXDP, nil, 14},
		{hook.KindTC, ipv4, 34},
		{hook.KindTC, ipv4[:20], 34},
		{hook.KindTC, ipv4[:10], 14},
		{hook.KindTC, ipv6[:14], 54},
		{hook.KindTC, arp, 14},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, MinRunLen(tc.kind, tc.data), "%s len %d", tc.kind, len(tc.data))
	}
}

type discard struct{}

func (discard) Infof(string, ...any) {}

// Needs CAP_BPF and CAP_PERFMON, skipped otherwise.
func TestRunMatchesUserspace(t *testing.T) {
	objs, err := LoadObjects(WithTrace(false))
	if err != nil {
		t.Skipf("load programs: %v", err)
	}
	defer objs.Close()

	packets := map[string][]byte{
		"tcp":             build(unix.IPPROTO_TCP, make([]byte, 16)),
		"tcp short":       build(unix.IPPROTO_TCP, make([]byte, 12)),
		"udp":             build(unix.IPPROTO_UDP, make([]byte, 32)),
		"udp empty":       build(unix.IPPROTO_UDP, nil),
		"icmp":            build(unix.IPPROTO_ICMP, make([]byte, 16)),
		"truncated ipv4":  build(unix.IPPROTO_TCP, nil)[:20],
		"arp":             fastpkt.Build(make([]byte, 128), &fastpkt.Layers{EthProto: unix.ETH_P_ARP}),
		"ethernet padded": append(fastpkt.Build(make([]byte, 128), &fastpkt.Layers{EthProto: unix.ETH_P_ARP}), make([]byte, 46)...),
	}

	for name, data := range packets {
		t.Run(name, func(t *testing.T) {
			xdp, err := Run(objs.XDP, data)
			require.NoError(t, err)
			assert.Equal(t, probe.XDP(probe.NewXDPContext(data), discard{}), xdp)

			if len(data) < MinRunLen(hook.KindTC, data) {
				_, err = Run(objs.TC, data)
				assert.ErrorIs(t, err, unix.EINVAL)
				return
			}
			tc, err := Run(objs.TC, data)
			require.NoError(t, err)
			assert.Equal(t, probe.TC(probe.NewSKBContext(data), discard{}), int32(tc))
		})
	}
}

func TestVerifierLog(t *testing.T) {
	objs, err := LoadObjects()
	if err != nil {
		t.Skipf("load programs: %v", err)
	}
	objs.Close()

	log, err := VerifierLog(hook.KindXDP)
	require.NoError(t, err)
	assert.Contains(t, log, "processed")
}

func build(proto uint8, payload []byte) []byte {
	return fastpkt.Build(make([]byte, 256), &fastpkt.Layers{
		EthProto: unix.ETH_P_IP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
		IPProto:  proto,
		SrcPort:  12345,
		DstPort:  80,
		Payload:  payload,
	})
}
