package probe

import "github.com/sirupsen/logrus"

var abortLogger = logrus.StandardLogger()

// Abort ends the whole process for a state that must never be reached. It
// does not panic, so nothing can recover from it and deferred calls are
// skipped.
func Abort(format string, args ...any) {
	abortLogger.Fatalf("pktprobe: "+format, args...)
}
