package fastpkt

import "unsafe"

// <linux/if_ether.h>
//
//	struct ethhdr {
//	    unsigned char h_dest[6];
//	    unsigned char h_source[6];
//	    __be16 h_proto;
//	};

type EthHeader struct {
	HwDest   [6]byte
	HwSource [6]byte
	HwProto  uint16
}

// OffsetofEthProto is the offset of h_proto within struct ethhdr.
const OffsetofEthProto = int(unsafe.Offsetof(EthHeader{}.HwProto))
