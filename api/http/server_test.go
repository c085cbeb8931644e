package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apihttp "github.com/corechain/node/api/http"
	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/session"
	"github.com/corechain/node/store"
)

// harness mirrors session.catchup_integration_test.go's sessionHarness
// shape: a genesis-seeded confirmed store, BlockTree, mempool and
// session.Manager, the minimum live collaborator set Server needs.
type harness struct {
	srv     *apihttp.Server
	localID chaintypes.MinerID
	mgr     *session.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	minerID := chaintypes.MinerIDFromPublicKey(pub)

	genesis := chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         1,
		Depth:      1,
		MinerId:    minerID,
		NextMiners: []chaintypes.MinerID{minerID},
		ChunkSize:  cfg.ChunkSize,
	}, pub, priv)

	confirmed, err := store.OpenConfirmed(t.TempDir(), cfg.ChunkSize, cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	require.NoError(t, err)
	t.Cleanup(func() { confirmed.Close() })
	require.NoError(t, confirmed.WriteBlock(genesis))

	mp := mempool.New(cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	tree := blocktree.New(cfg, mp)
	require.NoError(t, tree.Load([]*chaintypes.Block{genesis}, []chaintypes.MinerID{minerID}))

	events := eventbus.New()
	t.Cleanup(events.Stop)
	mgr := session.NewManager(cfg, tree, mp, confirmed, events, minerID)

	return &harness{
		srv:     apihttp.New(tree, mp, mgr, minerID),
		localID: minerID,
		mgr:     mgr,
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.srv.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusEndpointReportsGenesisHead(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.srv.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		HeadId       uint32 `json:"headId"`
		BranchLength int    `json:"branchLength"`
		Pending      int    `json:"pending"`
		Executed     int    `json:"executed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, uint32(1), body.HeadId)
	require.Equal(t, 1, body.BranchLength)
	require.Zero(t, body.Pending)
	require.Zero(t, body.Executed)
}

func TestMiningEndpointFindsLocalMinerInQueue(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.srv.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mining")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		MinerId     string `json:"minerId"`
		QueueSize   int    `json:"queueSize"`
		SlotCount   int    `json:"slotCount"`
		SlotOffsets []int  `json:"slotOffsets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, h.localID.String(), body.MinerId)
	require.Equal(t, body.QueueSize, body.SlotCount, "single-miner genesis: every queue slot is ours")
	require.NotEmpty(t, body.SlotOffsets)
}

func TestBannedEndpointReflectsManagerBans(t *testing.T) {
	h := newHarness(t)
	h.mgr.Ban("peer-a", time.Minute)

	srv := httptest.NewServer(h.srv.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/banned")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body []struct {
		PeerKey string `json:"peerKey"`
		Active  bool   `json:"active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	require.Equal(t, "peer-a", body[0].PeerKey)
	require.True(t, body[0].Active)
}
