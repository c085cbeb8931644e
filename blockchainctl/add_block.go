package blockchainctl

import (
	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/roundrobin"
)

// addBlock runs the nine-step block-application sequence of spec.md §4.6.
// It is the single code path both updateBranch (peer-delivered blocks) and
// checkMining's self-mined candidate (via the next tick's updateBranch)
// flow through -- there is no separate "apply my own block" shortcut.
func (bc *Blockchain) addBlock(block *chaintypes.Block) error {
	header := block.Header

	// Step 1: structural sanity against the store's current tip. The
	// header's parent linkage, id/depth arithmetic, expected-miner slot,
	// and signature were already enforced when the block entered the
	// BlockTree (validateAgainstParentLocked); this re-check only defends
	// against the tree's idea of "longest" having drifted from the
	// store's idea of "latest" between tick and application.
	latest, ok := bc.unconfirmed.GetLatestBlockHeader()
	if ok {
		if header.PrevHash != latest.Hash() {
			return errors.New("blockchainctl: block does not extend the current tip")
		}
		if header.Id != latest.Id+uint32(latest.SkippedBlocks())+1 {
			return errors.New("blockchainctl: block id does not follow tip")
		}
	}
	if !header.VerifySignature() {
		return errors.New("blockchainctl: bad header signature")
	}

	// Step 2: nextMiners must equal the deterministic schedule emission.
	currentQueue := bc.unconfirmed.GetMinersQueue()
	topMiners := minerStakes(bc.unconfirmed.GetTopMiners())
	wantNext := roundrobin.GetNextMiners(currentQueue, bc.cfg.MinersQueueSize, topMiners, header.SkippedBlocks()+1)
	if !sameMinerSlice(header.NextMiners, wantNext) {
		return errors.New("blockchainctl: nextMiners does not match the deterministic schedule")
	}

	// Step 3.
	bc.mempool.ClearExecuted()
	bc.unconfirmed.Clear()

	// Step 4: fire-and-forget prefetch; correctness never depends on it
	// finishing before step 6 touches the same rows, only performance.
	go func() {
		for _, tx := range block.Transactions {
			bc.unconfirmed.PreloadUser(tx.GetUserId())
		}
	}()

	// Step 5: crypto-verify anything the mempool hasn't already verified.
	if err := bc.verifyBlockTransactions(block.Transactions); err != nil {
		bc.unconfirmed.Clear()
		return err
	}

	// Step 6: serial validate+execute, in body order.
	for _, tx := range block.Transactions {
		if err := tx.Validate(header.Id, bc.unconfirmed); err != nil {
			bc.unconfirmed.Clear()
			return errors.Wrap(err, "blockchainctl: transaction validation failed")
		}
		if err := tx.Execute(header.Id, bc.unconfirmed); err != nil {
			bc.unconfirmed.Clear()
			return errors.Wrap(err, "blockchainctl: transaction execution failed")
		}
	}

	// Step 7.
	if err := bc.unconfirmed.AddBlock(block); err != nil {
		bc.unconfirmed.Clear()
		return err
	}

	// Step 8.
	if err := bc.unconfirmed.Commit(header.Id); err != nil {
		return err
	}

	// Step 9.
	ids := make([]chaintypes.Key, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		ids = append(ids, tx.GetId().Key())
	}
	bc.mempool.Remove(ids)
	return nil
}

// verifyBlockTransactions crypto-verifies every transaction not already
// marked verified by the mempool, dropping the offending ids on failure
// (spec.md §4.6 step 5).
func (bc *Blockchain) verifyBlockTransactions(txs []chaintypes.Transaction) error {
	var toVerify []chaintypes.Transaction
	for _, tx := range txs {
		if !bc.mempool.IsCryptoVerified(tx.GetId().Key()) {
			toVerify = append(toVerify, tx)
		}
	}
	if len(toVerify) == 0 {
		return nil
	}

	results := bc.verifier.VerifyBatch(toVerify)
	var bad []chaintypes.Key
	for i, ok := range results {
		if ok {
			bc.mempool.MarkCryptoVerified(toVerify[i].GetId().Key())
		} else {
			bad = append(bad, toVerify[i].GetId().Key())
		}
	}
	if len(bad) > 0 {
		bc.mempool.Remove(bad)
		return errors.New("blockchainctl: block contains a transaction with an invalid signature")
	}
	return nil
}

func sameMinerSlice(a, b []chaintypes.MinerID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
