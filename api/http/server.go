// Package http serves a small read-only status API over the node's live
// collaborators -- block/queue/ban inspection -- the slice of the
// teacher's RPC surface that makes sense for an external operator rather
// than a JSON-RPC client library: this package exposes plain HTTP/JSON
// endpoints over julienschmidt/httprouter instead of the teacher's
// networks/rpc JSON-RPC dispatch, since there is no wallet or
// contract-calling surface in this system for a JSON-RPC method set to
// serve.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/log"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/session"
)

var logger = log.NewModuleLogger(log.CLI)

// Server exposes /health, /status, /mining and /banned over the node's
// live BlockTree, PendingTransactions and session.Manager.
type Server struct {
	tree    *blocktree.BlockTree
	mempool *mempool.PendingTransactions
	sess    *session.Manager
	localID chaintypes.MinerID
}

// New builds the handler; call ListenAndServe (or mount Handler()
// yourself) to serve it.
func New(tree *blocktree.BlockTree, mp *mempool.PendingTransactions, sess *session.Manager, localID chaintypes.MinerID) *Server {
	return &Server{tree: tree, mempool: mp, sess: sess, localID: localID}
}

// Handler returns the CORS-wrapped httprouter mux, grounded on the
// teacher's go.mod pulling in both julienschmidt/httprouter and rs/cors
// for exactly this "small JSON API, open to browser-based dashboards"
// shape (neither library has a usage site left in the trimmed example
// pack, only the dependency declarations -- built directly against each
// library's documented public API).
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/mining", s.handleMining)
	r.GET("/banned", s.handleBanned)
	return cors.Default().Handler(r)
}

// ListenAndServe blocks serving Handler() on addr.
func (s *Server) ListenAndServe(addr string) error {
	logger.Info("status api listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("status api: encode failed", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus reports the active branch's head and the mempool's
// pending/executed depth, the cheapest useful liveness signal an
// operator's dashboard can poll.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	branch := s.tree.GetActiveBranch()
	pending, executed := s.mempool.Len()

	resp := struct {
		HeadId       uint32 `json:"headId"`
		HeadDepth    uint32 `json:"headDepth"`
		BranchLength int    `json:"branchLength"`
		Pending      int    `json:"pending"`
		Executed     int    `json:"executed"`
	}{
		BranchLength: len(branch),
		Pending:      pending,
		Executed:     executed,
	}
	if len(branch) > 0 {
		head := branch[len(branch)-1]
		resp.HeadId = head.Header.Id
		resp.HeadDepth = head.Header.Depth
	}
	writeJSON(w, resp)
}

// handleMining answers the self-check named by spec.md §4.10's
// supplemented features: of the next 240 mining-queue slots, how many
// belong to this node's miner id, and at what offsets. A node with zero
// upcoming slots is a useful "am I about to go idle" signal an operator
// can alert on.
func (s *Server) handleMining(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	queue := s.tree.MiningQueue()
	offsets := make([]int, 0, len(queue))
	for i, id := range queue {
		if id == s.localID {
			offsets = append(offsets, i)
		}
	}
	writeJSON(w, struct {
		MinerId    string `json:"minerId"`
		QueueSize  int    `json:"queueSize"`
		SlotCount  int    `json:"slotCount"`
		SlotOffsets []int `json:"slotOffsets"`
	}{
		MinerId:     s.localID.String(),
		QueueSize:   len(queue),
		SlotCount:   len(offsets),
		SlotOffsets: offsets,
	})
}

// handleBanned mirrors the teacher's HasBadBlock inspection concept
// (a node-local blacklist an operator wants visibility into) over
// session.Manager's 60s peer bans (spec.md §4.5).
func (s *Server) handleBanned(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	banned := s.sess.ListBanned()
	now := time.Now()
	type entry struct {
		PeerKey   string `json:"peerKey"`
		ExpiresIn string `json:"expiresIn"`
		Active    bool   `json:"active"`
	}
	out := make([]entry, 0, len(banned))
	for k, until := range banned {
		out = append(out, entry{
			PeerKey:   k,
			ExpiresIn: until.Sub(now).String(),
			Active:    now.Before(until),
		})
	}
	writeJSON(w, out)
}
