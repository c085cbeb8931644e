package blocktree

import (
	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
)

// parentInfo bundles the validated parent location a new header/block is
// being attached below.
type parentInfo struct {
	header     *chaintypes.Header
	hash       [32]byte
	level      int // rootLevel for the tree's root
	childLevel int
}

// validateAgainstParentLocked runs the structural checks shared by
// AddHeader and AddBlock: parent linkage, id/depth arithmetic, expected
// miner, and signature (spec.md §4.4 add_header / §4.6 block application
// step 1).
func (bt *BlockTree) validateAgainstParentLocked(header *chaintypes.Header) (parentInfo, error) {
	parentHeader, parentLevel, ok := bt.findParentLocked(header.PrevHash)
	if !ok {
		return parentInfo{}, errors.New("blocktree: unknown parent")
	}
	childLevel := parentLevel + 1
	if childLevel >= len(bt.levels) {
		return parentInfo{}, errors.New("blocktree: exceeds tree depth")
	}

	wantID := parentHeader.Id + uint32(parentHeader.SkippedBlocks()) + 1
	if header.Id != wantID {
		return parentInfo{}, errors.New("blocktree: id does not follow parent")
	}
	if header.Depth != parentHeader.Depth+1 {
		return parentInfo{}, errors.New("blocktree: depth does not follow parent")
	}

	expected, err := bt.expectedMinerLocked(header.PrevHash, parentLevel, parentHeader.SkippedBlocks())
	if err != nil {
		return parentInfo{}, err
	}
	if header.MinerId != expected {
		return parentInfo{}, errors.New("blocktree: header not signed by the scheduled miner")
	}
	if !header.VerifySignature() {
		return parentInfo{}, errors.New("blocktree: bad header signature")
	}
	return parentInfo{header: parentHeader, hash: header.PrevHash, level: parentLevel, childLevel: childLevel}, nil
}

// ancestorHeadersLocked returns the header chain from the root through the
// node identified by (parentHash, parentLevel) inclusive, root first --
// the "parents" of spec.md §4.4's expected-miner derivation.
func (bt *BlockTree) ancestorHeadersLocked(parentHash [32]byte, parentLevel int) ([]*chaintypes.Header, error) {
	if parentLevel == rootLevel {
		return []*chaintypes.Header{bt.baseHeader}, nil
	}
	headers := make([]*chaintypes.Header, parentLevel+2)
	headers[0] = bt.baseHeader

	walkHash := parentHash
	for lvl := parentLevel; lvl >= 0; lvl-- {
		n, ok := bt.levels[lvl][walkHash]
		if !ok {
			return nil, errors.New("blocktree: broken ancestor chain")
		}
		headers[lvl+1] = n.Header
		walkHash = n.Header.PrevHash
	}
	return headers, nil
}
