package probeprog

import (
	"encoding/binary"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/zxhio/pktprobe/internal/probe"
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/hook"
	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

// Symbol of the payload subprogram.
const FetchPayloadSymbol = "fetch_payload"

// TracePrefix starts every line the program writes to the trace pipe.
const TracePrefix = "pktprobe: payload "

// traceFormat is NUL terminated and padded to whole stack words.
var traceFormat = padFormat(TracePrefix + "%llu\n")

// layout is what differs between the hooks: where the context keeps the
// packet window and which codes mean continue and drop.
type layout struct {
	name       string
	progType   ebpf.ProgramType
	dataOff    int16
	dataEndOff int16
	pass       int32
	drop       int32
}

var layouts = map[hook.Kind]layout{
	// struct xdp_md { __u32 data; __u32 data_end; ... }
	hook.KindXDP: {
		name:       "xdp_probe",
		progType:   ebpf.XDP,
		dataOff:    0,
		dataEndOff: 4,
		pass:       int32(probe.XDPPass),
		drop:       int32(probe.XDPAborted),
	},
	// struct __sk_buff { ... __u32 data; __u32 data_end; ... } at 76 and 80
	hook.KindTC: {
		name:       "tc_probe",
		progType:   ebpf.SchedCLS,
		dataOff:    76,
		dataEndOff: 80,
		pass:       probe.TCActPipe,
		drop:       probe.TCActShot,
	},
}

var (
	ethHdrLen     = int32(fastpkt.SizeofEthernet)
	ipv4HdrLen    = int32(fastpkt.SizeofIPv4)
	tcpPayloadOff = int32(fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofTCP)
	udpPayloadOff = int32(fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofUDP)
)

// boundsCheck emits the pointer comparison that must directly precede a
// read of size bytes at base+off: tmp = base + off + size; if tmp > end
// goto label. The verifier ties the resulting range to base.
func boundsCheck(tmp, base, end asm.Register, off, size int32, label string) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(tmp, base),
		asm.Add.Imm(tmp, off+size),
		asm.JGT.Reg(tmp, end, label),
	}
}

// loadWindow loads data and data_end from the context in ctx.
func (l layout) loadWindow(data, dataEnd, ctx asm.Register) asm.Instructions {
	return asm.Instructions{
		asm.LoadMem(data, ctx, l.dataOff, asm.Word),
		asm.LoadMem(dataEnd, ctx, l.dataEndOff, asm.Word),
	}
}

// entry emits the hook's main function: the header walk, the call into the
// payload subprogram and the verdict mapping.
//
//	r6 = ctx, r2 = data, r3 = data_end
func (l layout) entry() asm.Instructions {
	insns := asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1).WithSymbol(l.name),
	}
	insns = append(insns, l.loadWindow(asm.R2, asm.R3, asm.R6)...)

	// Ethernet
	insns = append(insns, boundsCheck(asm.R4, asm.R2, asm.R3, 0, ethHdrLen, "reject")...)
	insns = append(insns,
		asm.LoadMem(asm.R5, asm.R2, int16(fastpkt.OffsetofEthProto), asm.Half),
		asm.JNE.Imm(asm.R5, int32(netutil.Htons(unix.ETH_P_IP)), "pass"),
	)

	// IPv4
	insns = append(insns, boundsCheck(asm.R4, asm.R2, asm.R3, ethHdrLen, ipv4HdrLen, "reject")...)
	insns = append(insns,
		asm.LoadMem(asm.R5, asm.R2, int16(ethHdrLen)+int16(fastpkt.OffsetofIPv4Protocol), asm.Byte),
		asm.Mov.Imm(asm.R2, tcpPayloadOff),
		asm.JEq.Imm(asm.R5, unix.IPPROTO_TCP, "probe"),
		asm.Mov.Imm(asm.R2, udpPayloadOff),
		asm.JEq.Imm(asm.R5, unix.IPPROTO_UDP, "probe"),
		asm.Ja.Label("reject"),

		// fetch_payload(ctx, offset)
		asm.Mov.Reg(asm.R1, asm.R6).WithSymbol("probe"),
		asm.Call.Label(FetchPayloadSymbol),
		asm.JNE.Imm(asm.R0, 0, "reject"),

		asm.Mov.Imm(asm.R0, l.pass).WithSymbol("pass"),
		asm.Return(),
		asm.Mov.Imm(asm.R0, l.drop).WithSymbol("reject"),
		asm.Return(),
	)
	return insns
}

// fetchPayload emits the payload subprogram. It takes (ctx, offset) and
// returns 0 once both 8-byte words at offset were read. Each read reloads
// the window from ctx and is checked on its own.
//
//	r6 = ctx, r7 = offset, r8 = data + offset, r9 = data_end
func (l layout) fetchPayload(trace bool) asm.Instructions {
	insns := asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1).WithSymbol(FetchPayloadSymbol),
		asm.Mov.Reg(asm.R7, asm.R2),
	}
	if trace {
		insns = append(insns, storeFormat()...)
	}

	for i := int32(0); i < 2; i++ {
		insns = append(insns, l.loadWindow(asm.R8, asm.R9, asm.R6)...)
		insns = append(insns, asm.Add.Reg(asm.R8, asm.R7))
		insns = append(insns, boundsCheck(asm.R1, asm.R8, asm.R9, 8*i, 8, "fetch_payload_err")...)
		insns = append(insns, asm.LoadMem(asm.R3, asm.R8, int16(8*i), asm.DWord))
		if trace {
			insns = append(insns, tracePrintk()...)
		}
	}

	insns = append(insns,
		asm.Mov.Imm(asm.R0, 0),
		asm.Return(),
		asm.Mov.Imm(asm.R0, 1).WithSymbol("fetch_payload_err"),
		asm.Return(),
	)
	return insns
}

// storeFormat writes traceFormat to the top of the stack frame.
func storeFormat() asm.Instructions {
	var insns asm.Instructions
	base := -int16(len(traceFormat))
	for off := 0; off < len(traceFormat); off += 8 {
		insns = append(insns,
			asm.LoadImm(asm.R1, int64(binary.NativeEndian.Uint64(traceFormat[off:])), asm.DWord),
			asm.StoreMem(asm.RFP, base+int16(off), asm.R1, asm.DWord),
		)
	}
	return insns
}

// tracePrintk emits bpf_trace_printk(fmt, sizeof(fmt), r3).
func tracePrintk() asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, -int32(len(traceFormat))),
		asm.Mov.Imm(asm.R2, int32(len(traceFormat))),
		asm.FnTracePrintk.Call(),
	}
}

func padFormat(s string) []byte {
	b := append([]byte(s), 0)
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}
