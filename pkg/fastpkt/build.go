package fastpkt

import (
	"net"

	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

// Layers describes a packet for Build. EthProto and IPProto select which
// headers are written: IPv4 only for ETH_P_IP, TCP/UDP only for their
// protocol numbers. Anything else is carried as raw payload.
type Layers struct {
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	EthProto uint16

	SrcIP   net.IP
	DstIP   net.IP
	IPProto uint8
	TTL     uint8

	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Flags   TCPFlags

	Payload []byte
}

// Build writes the packet to the tail of data and returns the written part.
// data must have enough capacity for all headers and the payload.
func Build(data []byte, l *Layers) []byte {
	b := NewBuildBuffer(data)
	copy(b.AllocPayload(len(l.Payload)), l.Payload)

	if l.EthProto == unix.ETH_P_IP {
		var (
			tcp   *TCPHeader
			udp   *UDPHeader
			l4Len = uint16(len(l.Payload))
		)
		switch l.IPProto {
		case unix.IPPROTO_TCP:
			l4Len += uint16(SizeofTCP)
			tcp = b.AllocTCPHeader()
			*tcp = TCPHeader{
				SrcPort: netutil.Htons(l.SrcPort),
				DstPort: netutil.Htons(l.DstPort),
				Seq:     netutil.Htonl(l.Seq),
				Flags:   l.Flags,
				Window:  netutil.Htons(65535),
			}
			tcp.SetHeaderLen(uint8(SizeofTCP))
		case unix.IPPROTO_UDP:
			l4Len += uint16(SizeofUDP)
			udp = b.AllocUDPHeader()
			*udp = UDPHeader{SrcPort: netutil.Htons(l.SrcPort), DstPort: netutil.Htons(l.DstPort)}
		}

		ip := b.AllocIPv4Header()
		*ip = IPv4Header{
			TTL:      valueOr(l.TTL, 64),
			Protocol: l.IPProto,
			SrcIP:    ipv4ToBE(l.SrcIP),
			DstIP:    ipv4ToBE(l.DstIP),
		}
		ip.SetHeaderLen(uint8(SizeofIPv4))
		ip.SetChecksum(l4Len)

		if tcp != nil {
			tcp.SetChecksum(ip, uint16(len(l.Payload)))
		}
		if udp != nil {
			udp.SetChecksum(ip, uint16(len(l.Payload)))
		}
	}

	eth := b.AllocEthHeader()
	copy(eth.HwDest[:], l.DstMAC)
	copy(eth.HwSource[:], l.SrcMAC)
	eth.HwProto = netutil.Htons(l.EthProto)

	return b.Bytes()
}

// ipv4ToBE keeps the address bytes in network order in memory.
func ipv4ToBE(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return netutil.Htonl(uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]))
}

func valueOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
