package metrics

import (
	"net/http"

	"github.com/fjl/memsize/memsizeui"
)

// memsizeHandler is the process-wide memsizeui.Handler every Add call
// below registers objects into, grounded on api/debug's
// "github.com/fjl/memsize/memsizeui" import -- that package wires its own
// handler into the debug HTTP mux, this one wires it into corenode's.
var memsizeHandler memsizeui.Handler

// AddMemsizeObject registers a live object (a BlockTree, a mempool, ...)
// for on-demand heap-size reporting at /debug/memsize.
func AddMemsizeObject(name string, obj interface{}) {
	memsizeHandler.Add(name, obj)
}

// MemsizeHTTPHandler returns the handler to mount at /debug/memsize.
func MemsizeHTTPHandler() http.Handler {
	return &memsizeHandler
}
