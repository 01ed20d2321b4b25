package probe

import "unsafe"

// XDP verdicts, <linux/bpf.h> enum xdp_action.
const (
	XDPAborted uint32 = 0
	XDPPass    uint32 = 2
)

// tc verdicts, <linux/pkt_cls.h>.
const (
	TCActShot int32 = 2
	TCActPipe int32 = 3
)

// window is a [data, data_end) view of a packet buffer. data keeps the
// buffer alive; dataEnd is only compared against.
type window struct {
	data    unsafe.Pointer
	dataEnd uintptr
}

func newWindow(buf []byte) window {
	data := unsafe.Pointer(unsafe.SliceData(buf))
	return window{data: data, dataEnd: uintptr(data) + uintptr(len(buf))}
}

func (w *window) Data() unsafe.Pointer { return w.data }
func (w *window) DataEnd() uintptr     { return w.dataEnd }

// XDPContext is the userspace counterpart of struct xdp_md.
type XDPContext struct {
	window
	IngressIfindex uint32
	RxQueueIndex   uint32
}

func NewXDPContext(buf []byte) *XDPContext {
	return &XDPContext{window: newWindow(buf)}
}

// SKBContext is the userspace counterpart of the direct packet access part
// of struct __sk_buff.
type SKBContext struct {
	window
	Ifindex uint32
	Mark    uint32
}

func NewSKBContext(buf []byte) *SKBContext {
	return &SKBContext{window: newWindow(buf)}
}

// XDP runs the walk for the early-receive hook.
func XDP(ctx *XDPContext, log Logger) uint32 {
	if err := walk(ctx, log); err != nil {
		return XDPAborted
	}
	return XDPPass
}

// TC runs the walk for the traffic-classifier hook.
func TC(ctx *SKBContext, log Logger) int32 {
	if err := walk(ctx, log); err != nil {
		return TCActShot
	}
	return TCActPipe
}

func walk(ctx PacketAccess, log Logger) error {
	if ctx.DataEnd() < uintptr(ctx.Data()) {
		Abort("packet window end %#x before start %p", ctx.DataEnd(), ctx.Data())
	}

	err := Walk(ctx, log)
	if err != nil && err != ErrAccess {
		Abort("unexpected walk error: %v", err)
	}
	return err
}
