package fastpkt

import (
	"unsafe"

	"github.com/zxhio/pktprobe/pkg/netutil"
)

// <linux/ip.h>
//
// struct iphdr {
// #if defined(__LITTLE_ENDIAN_BITFIELD)
//     unsigned int ihl : 4, version : 4;
// #elif defined(__BIG_ENDIAN_BITFIELD)
//     unsigned int version : 4, ihl : 4;
// #endif
//     __u8 tos;
//     __be16 tot_len;
//     __be16 id;
//     __be16 frag_off;
//     __u8 ttl;
//     __u8 protocol;
//     __u16 check;
//     __be32 saddr;
//     __be32 daddr;
// };

type IPv4Header struct {
	VerHdrLen uint8  // 4 bits version, 4 bits header length
	TOS       uint8  // type of service
	Len       uint16 // total length
	ID        uint16 // identification
	FragOff   uint16 // fragment offset
	TTL       uint8  // time to live
	Protocol  uint8  // protocol
	Checksum  uint16 // checksum
	SrcIP     uint32 // source ip
	DstIP     uint32 // destination ip
}

// OffsetofIPv4Protocol is the offset of protocol within struct iphdr.
const OffsetofIPv4Protocol = int(unsafe.Offsetof(IPv4Header{}.Protocol))

func (ip *IPv4Header) HeaderLen() uint8 {
	return (ip.VerHdrLen & 0x0f) * 4
}

func (ip *IPv4Header) SetHeaderLen(headerLen uint8) {
	// IPv4 version is 4 in high 4 bit
	ip.VerHdrLen = 0x40 | (headerLen / 4)
}

// SetChecksum must be called after the header is filled
func (ip *IPv4Header) SetChecksum(l3PayloadLen uint16) {
	off := ip.HeaderLen()
	data := unsafe.Slice((*byte)(unsafe.Pointer(ip)), off)

	ip.Len = netutil.Htons(uint16(off) + l3PayloadLen)
	ip.Checksum = 0
	ip.Checksum = netutil.Htons(checksum(data))
}

func checksum(bytes []byte) uint16 {
	var csum uint32
	for i := 0; i+1 < len(bytes); i += 2 {
		csum += uint32(bytes[i]) << 8
		csum += uint32(bytes[i+1])
	}
	for csum > 0xffff {
		csum = (csum >> 16) + (csum & 0xffff)
	}
	return ^uint16(csum)
}

// PseudoChecksum is the checksum of the pseudo header
func (ip *IPv4Header) PseudoChecksum(ipProtocol uint16, ipPayloadLen uint16) uint32 {
	saddr := (*[4]byte)(unsafe.Pointer(&ip.SrcIP))
	daddr := (*[4]byte)(unsafe.Pointer(&ip.DstIP))

	csum := (uint32(saddr[0]) + uint32(saddr[2])) << 8
	csum += uint32(saddr[1]) + uint32(saddr[3])
	csum += (uint32(daddr[0]) + uint32(daddr[2])) << 8
	csum += uint32(daddr[1]) + uint32(daddr[3])

	csum += uint32(ipProtocol)
	csum += uint32(ipPayloadLen)
	return csum
}
