package chaintypes

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/corechain/node/cryptoutil"
)

// CommitTx is the miner reward transaction checkMining appends when the
// miner's owner holds the signing key (spec.md §4.6 "Mining policy").
type CommitTx struct {
	BlockId     uint32
	MinerOwner  MinerID
	RewardToken uint64
	Signer      cryptoutil.PublicKey
	Sig         []byte
}

func (tx *CommitTx) GetType() TxType { return TxTypeCommit }

func (tx *CommitTx) GetId() TransactionId {
	payload := tx.SignaturePayload()
	h := cryptoutil.Hash256(payload)
	return TransactionId{Type: TxTypeCommit, BlockId: tx.BlockId, Size: tx.GetSize(), Hash: h}
}

func (tx *CommitTx) GetSize() uint16 { return uint16(len(tx.SignaturePayload()) + len(tx.Sig)) }

func (tx *CommitTx) GetUserId() MinerID { return tx.MinerOwner }

func (tx *CommitTx) SignaturePayload() []byte {
	buf := make([]byte, 4+20+8)
	binary.LittleEndian.PutUint32(buf[0:4], tx.BlockId)
	copy(buf[4:24], tx.MinerOwner[:])
	binary.LittleEndian.PutUint64(buf[24:32], tx.RewardToken)
	return buf
}

func (tx *CommitTx) Signature() []byte                      { return tx.Sig }
func (tx *CommitTx) SignerPublicKey() cryptoutil.PublicKey { return tx.Signer }

func (tx *CommitTx) ValidateSignatures() bool {
	return cryptoutil.Verify(tx.Signer, tx.SignaturePayload(), tx.Sig)
}

func (tx *CommitTx) Validate(blockId uint32, store Store) error {
	if blockId != tx.BlockId {
		return errors.New("commit transaction: block id mismatch")
	}
	if !tx.ValidateSignatures() {
		return errors.New("commit transaction: bad signature")
	}
	return nil
}

func (tx *CommitTx) Execute(blockId uint32, store Store) error {
	store.CreditUser(tx.MinerOwner, tx.RewardToken)
	return nil
}

func (tx *CommitTx) IsManagement() bool { return true }
