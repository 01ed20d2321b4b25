package fastpkt

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Summary formats a packet in a tcpdump-like single line, e.g.
//
//	02:42:6d:09:05:c4 > 02:42:ac:11:00:0a, IPv4 172.17.0.1.80 > 172.17.0.10.35912: TCP, length 16
func Summary(data []byte) string {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)

	var b strings.Builder
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return fmt.Sprintf("truncated, length %d", len(data))
	}
	fmt.Fprintf(&b, "%s > %s, ", eth.SrcMAC, eth.DstMAC)

	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		fmt.Fprintf(&b, "ethertype %s (0x%04x), length %d", eth.EthernetType, uint16(eth.EthernetType), len(data))
		return b.String()
	}

	switch l4 := pkt.TransportLayer().(type) {
	case *layers.TCP:
		fmt.Fprintf(&b, "IPv4 %s.%d > %s.%d: TCP, length %d", ip.SrcIP, l4.SrcPort, ip.DstIP, l4.DstPort, len(l4.Payload))
	case *layers.UDP:
		fmt.Fprintf(&b, "IPv4 %s.%d > %s.%d: UDP, length %d", ip.SrcIP, l4.SrcPort, ip.DstIP, l4.DstPort, len(l4.Payload))
	default:
		fmt.Fprintf(&b, "IPv4 %s > %s: %s, length %d", ip.SrcIP, ip.DstIP, ip.Protocol, len(ip.Payload))
	}
	return b.String()
}
