package fastpkt

import (
	"unsafe"

	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

// <linux/tcp.h>
//
// struct tcphdr {
// 	__be16	source;
// 	__be16	dest;
// 	__be32	seq;
// 	__be32	ack_seq;
// 	__u16	res1:4, doff:4, fin:1, syn:1, rst:1, psh:1, ack:1, urg:1, ece:1, cwr:1;
// 	__be16	window;
// 	__sum16	check;
// 	__be16	urg_ptr;
// };

type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	AckSeq  uint32
	DataOff uint8    // 4 bits header length, 4 bits reserved
	Flags   TCPFlags // fin, syn, rst, psh, ack, urg, ece, cwr
	Window  uint16
	Check   uint16
	UrgPtr  uint16
}

func (tcp *TCPHeader) HeaderLen() uint8 {
	return (tcp.DataOff >> 4) * 4
}

func (tcp *TCPHeader) SetHeaderLen(headerLen uint8) {
	tcp.DataOff = ((headerLen / 4) << 4) | (tcp.DataOff & 0x0f)
}

// SetChecksum expects the payload to follow the header in memory.
func (tcp *TCPHeader) SetChecksum(ipv4 *IPv4Header, payloadLen uint16) {
	ipPayloadLen := uint16(tcp.HeaderLen()) + payloadLen
	csum := ipv4.PseudoChecksum(unix.IPPROTO_TCP, ipPayloadLen)
	data := unsafe.Slice((*byte)(unsafe.Pointer(tcp)), ipPayloadLen)
	tcp.Check = 0
	tcp.Check = netutil.Htons(tcpipChecksum(data, csum))
}

func tcpipChecksum(data []byte, csum uint32) uint16 {
	// odd lengths: sum pairs up to len-1, then fold in the trailing byte.
	length := len(data) - 1
	for i := 0; i < length; i += 2 {
		csum += uint32(data[i]) << 8
		csum += uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		csum += uint32(data[length]) << 8
	}
	for csum > 0xffff {
		csum = (csum >> 16) + (csum & 0xffff)
	}
	return ^uint16(csum)
}

type TCPFlags uint8

const (
	TCPFlagFIN TCPFlags = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)

func (flags *TCPFlags) Set(flag TCPFlags)      { *flags |= flag }
func (flags *TCPFlags) Has(flag TCPFlags) bool { return *flags&flag != 0 }
