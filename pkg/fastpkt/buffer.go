package fastpkt

import "unsafe"

const (
	SizeofEthernet = int(unsafe.Sizeof(EthHeader{}))  // sizeof(struct ethhdr)
	SizeofIPv4     = int(unsafe.Sizeof(IPv4Header{})) // sizeof(struct iphdr), no options
	SizeofTCP      = int(unsafe.Sizeof(TCPHeader{}))  // sizeof(struct tcphdr), no options
	SizeofUDP      = int(unsafe.Sizeof(UDPHeader{}))  // sizeof(struct udphdr)
)

// DataPtr is a helper function to cast a data type to a pointer
func DataPtr[T any](data []byte, off int) *T             { return (*T)(unsafe.Pointer(&data[off])) }
func DataPtrEthHeader(data []byte, off int) *EthHeader   { return DataPtr[EthHeader](data, off) }
func DataPtrIPv4Header(data []byte, off int) *IPv4Header { return DataPtr[IPv4Header](data, off) }
func DataPtrTCPHeader(data []byte, off int) *TCPHeader   { return DataPtr[TCPHeader](data, off) }
func DataPtrUDPHeader(data []byte, off int) *UDPHeader   { return DataPtr[UDPHeader](data, off) }

// Buffer allocates headers from the end of data towards its start, so a
// packet is built payload first and the outer headers last.
type Buffer struct {
	buf   []byte
	start int
}

// NewBuildBuffer
// return value instead of pointer, in order to avoid memory allocation
func NewBuildBuffer(data []byte) Buffer {
	return Buffer{buf: data[:cap(data)], start: cap(data)}
}

func (b *Buffer) alloc(n int) []byte {
	b.start -= n
	return b.buf[b.start:]
}

func (b *Buffer) Bytes() []byte { return b.buf[b.start:] }
func (b *Buffer) Len() int      { return len(b.buf) - b.start }

func (b *Buffer) AllocPayload(n int) []byte    { return b.alloc(n)[:n] }
func (b *Buffer) AllocEthHeader() *EthHeader   { return DataPtr[EthHeader](b.alloc(SizeofEthernet), 0) }
func (b *Buffer) AllocIPv4Header() *IPv4Header { return DataPtr[IPv4Header](b.alloc(SizeofIPv4), 0) }
func (b *Buffer) AllocTCPHeader() *TCPHeader   { return DataPtr[TCPHeader](b.alloc(SizeofTCP), 0) }
func (b *Buffer) AllocUDPHeader() *UDPHeader   { return DataPtr[UDPHeader](b.alloc(SizeofUDP), 0) }
