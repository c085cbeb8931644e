package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/store"
)

var genesisCommand = cli.Command{
	Action:    genesis,
	Name:      "genesis",
	Usage:     "Create a fresh single-miner genesis block and confirmed store",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		configFileFlag,
		dataDirFlag,
		nodeKeyFileFlag,
	},
}

// genesis writes block 1 (spec.md §6.3: an InitTransaction declaring the
// network's block interval) directly into a fresh confirmed store,
// signed by the local node's own key -- the common single-miner bootstrap
// case also exercised by blockchainctl's and blocktree's test harnesses
// (blockchainctl/blockchain_test.go's newHarness).
func genesis(ctx *cli.Context) error {
	cfg, err := loadOrDefaultConfig(ctx)
	if err != nil {
		return err
	}

	identity, err := loadOrCreateNodeKey(ctx.String(nodeKeyFileFlag.Name))
	if err != nil {
		return err
	}

	initTx := &chaintypes.InitTransaction{
		BlockId:              1,
		InitializationTime:   time.Now().Unix(),
		BlockIntervalSeconds: uint32(cfg.BlockInterval.Seconds()),
		Signer:               identity.pub,
	}
	initTx.Sig = cryptoutil.Sign(identity.priv, initTx.SignaturePayload())

	block := chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           1,
		Depth:        1,
		MinerId:      identity.minerID,
		NextMiners:   []chaintypes.MinerID{identity.minerID},
		Transactions: []chaintypes.Transaction{initTx},
		ChunkSize:    cfg.ChunkSize,
	}, identity.pub, identity.priv)

	dataDir := ctx.String(dataDirFlag.Name)
	confirmed, err := store.OpenConfirmed(dataDir, cfg.ChunkSize, cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	if err != nil {
		return err
	}
	defer confirmed.Close()

	if confirmed.GetLatestBlockId() != 0 {
		return fmt.Errorf("corenode: %s already has a confirmed chain", dataDir)
	}
	if err := confirmed.WriteBlock(block); err != nil {
		return err
	}
	if err := confirmed.SetMiner(identity.minerID, store.MinerInfo{Owner: identity.minerID, Stake: 1}); err != nil {
		return err
	}

	if err := config.Save(ctx.String(configFileFlag.Name), cfg); err != nil {
		return err
	}

	fmt.Printf("genesis block written: miner=%s datadir=%s\n", identity.minerID, dataDir)
	return nil
}
