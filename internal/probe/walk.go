package probe

import (
	"github.com/zxhio/pktprobe/pkg/fastpkt"
	"github.com/zxhio/pktprobe/pkg/netutil"
	"golang.org/x/sys/unix"
)

const (
	ethHdrLen  = uintptr(fastpkt.SizeofEthernet)
	ipv4HdrLen = uintptr(fastpkt.SizeofIPv4)
	tcpHdrLen  = uintptr(fastpkt.SizeofTCP)
	udpHdrLen  = uintptr(fastpkt.SizeofUDP)
)

// Walk parses Ethernet, IPv4 and the transport header, then probes the
// payload behind it. Non-IPv4 frames pass without further reads.
func Walk(ctx PacketAccess, log Logger) error {
	eth, err := ptrAt[fastpkt.EthHeader](ctx, 0)
	if err != nil {
		return err
	}
	if netutil.Ntohs(eth.HwProto) != unix.ETH_P_IP {
		return nil
	}

	ip, err := ptrAt[fastpkt.IPv4Header](ctx, ethHdrLen)
	if err != nil {
		return err
	}

	var offset uintptr
	switch ip.Protocol {
	case unix.IPPROTO_TCP:
		offset = ethHdrLen + ipv4HdrLen + tcpHdrLen
	case unix.IPPROTO_UDP:
		offset = ethHdrLen + ipv4HdrLen + udpHdrLen
	default:
		return ErrAccess
	}

	return fetchPayload(ctx, offset, log)
}
