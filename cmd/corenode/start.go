package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	apihttp "github.com/corechain/node/api/http"
	"github.com/corechain/node/blockchainctl"
	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/eventbus"
	kafkaevents "github.com/corechain/node/eventing/kafka"
	indexersql "github.com/corechain/node/indexer/sql"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/metrics"
	"github.com/corechain/node/netutil"
	"github.com/corechain/node/session"
	"github.com/corechain/node/snapshot"
	"github.com/corechain/node/store"
	"github.com/corechain/node/verifier"
)

var startCommand = cli.Command{
	Action:    start,
	Name:      "start",
	Usage:     "Start a corenode",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		configFileFlag,
		dataDirFlag,
		nodeKeyFileFlag,
		listenAddrFlag,
		peersFlag,
		natFlag,
		httpAddrFlag,
		indexerDSNFlag,
		kafkaBrokersFlag,
		kafkaTopicPrefixFlag,
		snapshotS3BucketFlag,
		snapshotS3PrefixFlag,
		snapshotIntervalFlag,
	},
}

// loadOrDefaultConfig loads --config if it exists, otherwise returns the
// spec.md §6.2 defaults -- the genesis and dumpconfig subcommands share
// this so a node can be bootstrapped before any config file exists.
func loadOrDefaultConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String(configFileFlag.Name)
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

// start boots a node: open the confirmed store, replay its tail into a
// fresh BlockTree, wire up the control loop and the peer session
// manager, dial configured peers, and serve inbound connections until an
// OS signal arrives. Grounded on the teacher's cmd/utils/nodecmd's
// "construct services, start them, wait on signal" shape (node/node.go's
// Start/Stop pair), adapted from klaytn's service-registry model to this
// project's small, fixed set of collaborators.
func start(ctx *cli.Context) error {
	cfg, err := loadOrDefaultConfig(ctx)
	if err != nil {
		return err
	}

	identity, err := loadOrCreateNodeKey(ctx.String(nodeKeyFileFlag.Name))
	if err != nil {
		return err
	}

	confirmed, err := store.OpenConfirmed(ctx.String(dataDirFlag.Name), cfg.ChunkSize, cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	if err != nil {
		return err
	}
	defer confirmed.Close()

	blocks, err := loadRecentBlocks(confirmed, cfg.TreeDepth())
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		logger.Crit("no confirmed genesis block found; run the genesis subcommand first")
		return nil
	}

	mp := mempool.New(cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	tree := blocktree.New(cfg, mp)
	if err := tree.Load(blocks, confirmed.GetMinersQueue()); err != nil {
		return err
	}

	v := verifier.New(cfg.VerifierPoolSize)
	unconfirmed := store.NewUnconfirmed(confirmed)
	events := eventbus.New()
	defer events.Stop()

	initTime, err := genesisInitTime(confirmed, cfg.BlockInterval)
	if err != nil {
		return err
	}

	bcIdentity := blockchainctl.Identity{
		MinerID:     identity.minerID,
		MinerPub:    identity.pub,
		MinerPriv:   identity.priv,
		HasOwnerKey: true,
		OwnerPub:    identity.pub,
		OwnerPriv:   identity.priv,
	}
	bc := blockchainctl.New(cfg, tree, mp, v, confirmed, unconfirmed, events, bcIdentity, initTime)

	mgr := session.NewManager(cfg, tree, mp, confirmed, events, identity.minerID)

	metrics.AddMemsizeObject("blocktree", tree)
	metrics.AddMemsizeObject("mempool", mp)
	go sampleChainMetrics(tree)

	if dsn := ctx.String(indexerDSNFlag.Name); dsn != "" {
		ix, err := indexersql.Open(dsn)
		if err != nil {
			return err
		}
		defer ix.Close()
		ix.Attach(events)
		logger.Info("sql indexer attached")
	}

	if brokers := ctx.String(kafkaBrokersFlag.Name); brokers != "" {
		pub, err := kafkaevents.New(kafkaevents.Config{
			Brokers:     strings.Split(brokers, ","),
			TopicPrefix: ctx.String(kafkaTopicPrefixFlag.Name),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		pub.Attach(events)
		logger.Info("kafka publisher attached", "brokers", brokers)
	}

	if bucket := ctx.String(snapshotS3BucketFlag.Name); bucket != "" {
		uploader, err := snapshot.New(snapshot.Config{
			Bucket:   bucket,
			Prefix:   ctx.String(snapshotS3PrefixFlag.Name),
			DataDir:  ctx.String(dataDirFlag.Name),
			Interval: time.Duration(ctx.Int(snapshotIntervalFlag.Name)) * time.Second,
		})
		if err != nil {
			return err
		}
		snapshotStop := make(chan struct{})
		defer close(snapshotStop)
		go uploader.Run(snapshotStop)
		logger.Info("s3 snapshot uploader started", "bucket", bucket)
	}

	if addr := ctx.String(httpAddrFlag.Name); addr != "" {
		api := apihttp.New(tree, mp, mgr, identity.minerID)
		go func() {
			if err := api.ListenAndServe(addr); err != nil {
				logger.Error("status api stopped", "addr", addr, "err", err)
			}
		}()
	}

	peers, err := loadPeerList(ctx.String(peersFlag.Name))
	if err != nil {
		return err
	}
	for addr, remoteID := range peers {
		go dialPeer(mgr, addr, remoteID)
	}

	listener, err := net.Listen("tcp", ctx.String(listenAddrFlag.Name))
	if err != nil {
		return err
	}
	listener = netutil.LimitListener(listener, cfg.PendingConnectionCap)
	defer listener.Close()
	go acceptLoop(listener, mgr, peers)

	if ctx.Bool(natFlag.Name) {
		natStop := make(chan struct{})
		defer close(natStop)
		go setupNAT(ctx.String(listenAddrFlag.Name), natStop)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go bc.Run(runCtx)

	logger.Info("corenode started", "miner", identity.minerID.String(), "addr", ctx.String(listenAddrFlag.Name))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("corenode shutting down")
	cancel()
	bc.Stop()
	return nil
}

// loadRecentBlocks walks backward from the confirmed store's tip, calling
// GetBlock by id since the facade exposes no bulk range read, collecting
// at most depth blocks to seed BlockTree.Load's fixed-depth ring.
func loadRecentBlocks(confirmed *store.Confirmed, depth int) ([]*chaintypes.Block, error) {
	latest := confirmed.GetLatestBlockId()
	if latest == 0 {
		return nil, nil
	}
	first := uint32(1)
	if int(latest) > depth {
		first = latest - uint32(depth) + 1
	}
	blocks := make([]*chaintypes.Block, 0, latest-first+1)
	for id := first; id <= latest; id++ {
		b, ok := confirmed.GetBlock(id)
		if !ok {
			break
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// genesisInitTime reads block 1's InitTransaction.InitializationTime, the
// control loop's reference point for spec.md §4.6's block-interval pacing,
// and rejects a chain whose declared block interval differs from
// blockInterval.
func genesisInitTime(confirmed *store.Confirmed, blockInterval time.Duration) (int64, error) {
	genesis, ok := confirmed.GetBlock(1)
	if !ok {
		return 0, os.ErrNotExist
	}
	for _, tx := range genesis.Transactions {
		if initTx, ok := tx.(*chaintypes.InitTransaction); ok {
			if time.Duration(initTx.BlockIntervalSeconds)*time.Second != blockInterval {
				return 0, errors.New("genesis block interval does not match the configured block interval")
			}
			return initTx.InitializationTime, nil
		}
	}
	return 0, os.ErrNotExist
}

// sampleChainMetrics periodically publishes the active branch's tip id
// and depth, the cheapest useful health signal an operator's dashboard
// can watch for a stalled node.
func sampleChainMetrics(tree *blocktree.BlockTree) {
	tipID := metrics.GetOrRegisterGauge("chain/tip/id")
	branchLen := metrics.GetOrRegisterGauge("chain/branch/length")
	for range time.Tick(3 * time.Second) {
		branch := tree.GetActiveBranch()
		branchLen.Update(int64(len(branch)))
		if len(branch) > 0 {
			tipID.Update(int64(branch[len(branch)-1].Header.Id))
		}
	}
}

// setupNAT discovers a UPnP or NAT-PMP gateway and keeps a port mapping
// for the listen port alive until stop closes. Discovery failures (no
// gateway reachable, already publicly routable) are logged, not fatal.
func setupNAT(listenAddr string, stop chan struct{}) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		logger.Warn("nat: cannot parse listen address", "addr", listenAddr, "err", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Warn("nat: cannot parse listen port", "addr", listenAddr, "err", err)
		return
	}
	n, err := netutil.Discover()
	if err != nil || n == nil {
		logger.Info("nat: no gateway discovered, running without port mapping")
		return
	}
	logger.Info("nat: gateway discovered", "nat", n.String())
	netutil.KeepMapped(n, "TCP", port, "corenode", 20*time.Minute, stop)
}

func dialPeer(mgr *session.Manager, addr string, remoteID chaintypes.MinerID) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		logger.Error("dial peer failed", "addr", addr, "err", err)
		return
	}
	if err := mgr.HandleConn(conn, remoteID); err != nil {
		logger.Error("peer session ended", "addr", addr, "err", err)
	}
}

// acceptLoop serves inbound connections from the statically configured
// peer list: a permissioned node only knows the miner id a listening
// address claims to be from that bootstrap list (see peers.go), so an
// inbound connection from an address outside it is refused before any
// protocol bytes are exchanged.
func acceptLoop(listener net.Listener, mgr *session.Manager, peers map[string]chaintypes.MinerID) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		remoteID, known := peers[conn.RemoteAddr().String()]
		if !known {
			logger.Warn("rejecting connection from unlisted peer", "addr", conn.RemoteAddr().String())
			conn.Close()
			continue
		}
		go func() {
			if err := mgr.HandleConn(conn, remoteID); err != nil {
				logger.Error("peer session ended", "addr", conn.RemoteAddr().String(), "err", err)
			}
		}()
	}
}
