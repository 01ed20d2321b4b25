package probe

import "unsafe"

// PayloadFormat is the message template for each probed payload word.
const PayloadFormat = "pktprobe: payload %d"

// Logger is the diagnostic sink for payload values. It is best effort and
// cannot fail the walk. logrus.FieldLogger satisfies it.
type Logger interface {
	Infof(format string, args ...any)
}

// fetchPayload reads two 8-byte words at offset and offset+8, each behind its
// own check against the current end of the window. The first word is logged
// before the second one is checked.
//
//go:noinline
func fetchPayload(ctx PacketAccess, offset uintptr, log Logger) error {
	if !inWindow(ctx, offset, 8) {
		return ErrAccess
	}
	v := *(*uint64)(unsafe.Add(ctx.Data(), offset))
	log.Infof(PayloadFormat, v)

	if !inWindow(ctx, offset+8, 8) {
		return ErrAccess
	}
	v = *(*uint64)(unsafe.Add(ctx.Data(), offset+8))
	log.Infof(PayloadFormat, v)

	return nil
}
