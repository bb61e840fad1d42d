// Package observability mounts opt-in runtime introspection on the debug mux.
package observability

import (
	nethttp "net/http"
	"net/http/pprof"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool `toml:"enable_pprof" json:"enable_pprof"`
}

// Register mounts the pprof handlers under /debug/pprof/ when enabled and
// reports whether it did.
func Register(mux *nethttp.ServeMux, cfg Config) bool {
	if mux == nil || !cfg.EnablePprof {
		return false
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return true
}
