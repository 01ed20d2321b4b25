package netutil

import "encoding/binary"

// Byte order conversion between host and network order. Packet memory read
// by a BPF program uses host order, so constants compared against raw header
// fields must be converted first.

func Ntohs(v uint16) uint16 { return Htons(v) }
func Htons(v uint16) uint16 {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], v)
	return binary.BigEndian.Uint16(b[:])
}

func Ntohl(v uint32) uint32 { return Htonl(v) }
func Htonl(v uint32) uint32 {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return binary.BigEndian.Uint32(b[:])
}
