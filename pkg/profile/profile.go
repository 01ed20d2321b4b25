package profile

import (
	"net"
	"net/http"
	"net/http/pprof"
	"path"
)

// DefaultPrefix is the path pprof is served under.
const DefaultPrefix = "/pktprobe-pprof/"

// Handler serves the runtime profiles under prefix.
func Handler(prefix string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(prefix, pprof.Index)
	mux.HandleFunc(path.Join(prefix, "cmdline"), pprof.Cmdline)
	mux.HandleFunc(path.Join(prefix, "profile"), pprof.Profile)
	mux.HandleFunc(path.Join(prefix, "symbol"), pprof.Symbol)
	mux.HandleFunc(path.Join(prefix, "trace"), pprof.Trace)

	for _, name := range []string{"goroutine", "heap", "threadcreate", "block", "mutex", "allocs"} {
		mux.Handle(path.Join(prefix, name), pprof.Handler(name))
	}
	return mux
}

func Serve(lis net.Listener) error {
	return http.Serve(lis, Handler(DefaultPrefix))
}
