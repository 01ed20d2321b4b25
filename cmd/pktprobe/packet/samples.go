package packet

import (
	"net"

	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"golang.org/x/sys/unix"
)

// Sample is a generated packet and whether the probe lets it through.
type Sample struct {
	Name   string
	Data   []byte
	Accept bool
}

var (
	sampleSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	sampleDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func samplePayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + byte(i%26)
	}
	return b
}

func sample(ethProto uint16, ipProto uint8, payload []byte) []byte {
	return fastpkt.Build(make([]byte, 256), &fastpkt.Layers{
		SrcMAC:   sampleSrcMAC,
		DstMAC:   sampleDstMAC,
		EthProto: ethProto,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(192, 168, 1, 20),
		IPProto:  ipProto,
		TTL:      64,
		SrcPort:  40000,
		DstPort:  8080,
		Seq:      1,
		Flags:    fastpkt.TCPFlagPSH | fastpkt.TCPFlagACK,
		Payload:  payload,
	})
}

// Samples covers every branch of the header walk.
func Samples() []Sample {
	return []Sample{
		{Name: "arp", Data: sample(unix.ETH_P_ARP, 0, samplePayload(28)), Accept: true},
		{Name: "ipv6", Data: sample(unix.ETH_P_IPV6, 0, samplePayload(40)), Accept: true},
		{Name: "ethernet only", Data: sample(unix.ETH_P_ARP, 0, nil), Accept: true},
		{Name: "ipv4 truncated", Data: sample(unix.ETH_P_IP, unix.IPPROTO_TCP, nil)[:fastpkt.SizeofEthernet+10]},
		{Name: "icmp", Data: sample(unix.ETH_P_IP, unix.IPPROTO_ICMP, samplePayload(16))},
		{Name: "tcp no payload", Data: sample(unix.ETH_P_IP, unix.IPPROTO_TCP, nil)},
		{Name: "tcp short payload", Data: sample(unix.ETH_P_IP, unix.IPPROTO_TCP, samplePayload(12))},
		{Name: "tcp payload", Data: sample(unix.ETH_P_IP, unix.IPPROTO_TCP, samplePayload(16)), Accept: true},
		{Name: "udp short payload", Data: sample(unix.ETH_P_IP, unix.IPPROTO_UDP, samplePayload(8))},
		{Name: "udp payload", Data: sample(unix.ETH_P_IP, unix.IPPROTO_UDP, samplePayload(64)), Accept: true},
	}
}
