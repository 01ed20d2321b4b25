package fastpkt

import (
	"unsafe"

	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

// <linux/udp.h>
//
// struct udphdr {
//     __be16 source;
//     __be16 dest;
//     __be16 len;
//     __sum16 check;
// };

type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
	Check   uint16
}

// SetChecksum expects the payload to follow the header in memory.
func (udp *UDPHeader) SetChecksum(ipv4 *IPv4Header, payloadLen uint16) {
	udpLen := uint16(SizeofUDP) + payloadLen
	udp.Length = netutil.Htons(udpLen)

	csum := ipv4.PseudoChecksum(unix.IPPROTO_UDP, udpLen)
	data := unsafe.Slice((*byte)(unsafe.Pointer(udp)), udpLen)
	udp.Check = 0
	udp.Check = netutil.Htons(tcpipChecksum(data, csum))
}
