package fastpkt

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

var testLayers = Layers{
	SrcMAC:   net.HardwareAddr{86, 102, 96, 15, 235, 58},
	DstMAC:   net.HardwareAddr{22, 70, 177, 58, 175, 3},
	EthProto: unix.ETH_P_IP,
	SrcIP:    net.IPv4(172, 16, 23, 2),
	DstIP:    net.IPv4(172, 16, 23, 1),
	SrcPort:  54213,
	DstPort:  80,
}

func TestHeaderSizes(t *testing.T) {
	assert.Equal(t, 14, SizeofEthernet)
	assert.Equal(t, 20, SizeofIPv4)
	assert.Equal(t, 20, SizeofTCP)
	assert.Equal(t, 8, SizeofUDP)
	assert.Equal(t, 12, OffsetofEthProto)
	assert.Equal(t, 9, OffsetofIPv4Protocol)
}

func TestBuildTCP(t *testing.T) {
	l := testLayers
	l.IPProto = unix.IPPROTO_TCP
	l.Flags = TCPFlagSYN | TCPFlagACK
	l.Payload = []byte("0123456789abcdef")

	data := Build(make([]byte, 0, 256), &l)
	assert.Equal(t, SizeofEthernet+SizeofIPv4+SizeofTCP+16, len(data))

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	if !assert.Nil(t, pkt.ErrorLayer()) {
		return
	}

	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)
	assert.True(t, ip.SrcIP.Equal(l.SrcIP))
	assert.True(t, ip.DstIP.Equal(l.DstIP))
	assert.Equal(t, uint16(len(data)-SizeofEthernet), ip.Length)

	tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.Equal(t, layers.TCPPort(54213), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(80), tcp.DstPort)
	assert.True(t, tcp.SYN)
	assert.True(t, tcp.ACK)
	assert.Equal(t, l.Payload, []byte(tcp.Payload))

	// Recompute with gopacket and compare checksums
	ip.Checksum, tcp.Checksum = 0, 0
	want := serialize(t, pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet), ip, tcp, gopacket.Payload(l.Payload))
	assert.Equal(t, want, data)
}

func TestBuildUDP(t *testing.T) {
	l := testLayers
	l.IPProto = unix.IPPROTO_UDP
	l.Payload = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}

	data := Build(make([]byte, 0, 256), &l)
	assert.Equal(t, SizeofEthernet+SizeofIPv4+SizeofUDP+9, len(data))

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	if !assert.Nil(t, pkt.ErrorLayer()) {
		return
	}
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, uint16(SizeofUDP+9), udp.Length)
	assert.Equal(t, l.Payload, []byte(udp.Payload))

	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	ip.Checksum, udp.Checksum = 0, 0
	want := serialize(t, pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet), ip, udp, gopacket.Payload(l.Payload))
	// gopacket pads short frames to 60 bytes
	assert.Equal(t, want[:len(data)], data)
}

func TestBuildNonIPv4(t *testing.T) {
	l := testLayers
	l.EthProto = unix.ETH_P_ARP
	l.Payload = []byte{0xde, 0xad}

	data := Build(make([]byte, 0, 64), &l)
	assert.Equal(t, SizeofEthernet+2, len(data))
	assert.Equal(t, []byte{0x08, 0x06}, data[OffsetofEthProto:OffsetofEthProto+2])
	assert.Equal(t, l.Payload, data[SizeofEthernet:])
}

func TestSummary(t *testing.T) {
	l := testLayers
	l.IPProto = unix.IPPROTO_UDP
	l.Payload = []byte{1, 2, 3}

	s := Summary(Build(make([]byte, 0, 128), &l))
	assert.Contains(t, s, "IPv4 172.16.23.2.54213 > 172.16.23.1.80: UDP, length 3")
	assert.Equal(t, "truncated, length 3", Summary([]byte{1, 2, 3}))
}

func serialize(t *testing.T, l ...gopacket.SerializableLayer) []byte {
	if ip, ok := l[1].(*layers.IPv4); ok {
		if tcp, ok := l[2].(*layers.TCP); ok {
			tcp.SetNetworkLayerForChecksum(ip)
		}
		if udp, ok := l[2].(*layers.UDP); ok {
			udp.SetNetworkLayerForChecksum(ip)
		}
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts, l...)
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
