package chaintypes

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/corechain/node/cryptoutil"
)

// InitTransaction is the one-time genesis transaction from spec.md §6.3:
// block 1's single transaction, carrying the initialization time and the
// block interval the rest of the network must agree on.
type InitTransaction struct {
	BlockId             uint32
	InitializationTime  int64
	BlockIntervalSeconds uint32
	Signer              cryptoutil.PublicKey
	Sig                 []byte
}

func (tx *InitTransaction) GetType() TxType { return TxTypeInit }

func (tx *InitTransaction) GetId() TransactionId {
	payload := tx.SignaturePayload()
	h := cryptoutil.Hash256(payload)
	return TransactionId{Type: TxTypeInit, BlockId: tx.BlockId, Size: tx.GetSize(), Hash: h}
}

func (tx *InitTransaction) GetSize() uint16 { return uint16(len(tx.SignaturePayload()) + len(tx.Sig)) }

func (tx *InitTransaction) GetUserId() MinerID { return MinerIDFromPublicKey(tx.Signer) }

func (tx *InitTransaction) SignaturePayload() []byte {
	buf := make([]byte, 4+8+4)
	binary.LittleEndian.PutUint32(buf[0:4], tx.BlockId)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(tx.InitializationTime))
	binary.LittleEndian.PutUint32(buf[12:16], tx.BlockIntervalSeconds)
	return buf
}

func (tx *InitTransaction) Signature() []byte                      { return tx.Sig }
func (tx *InitTransaction) SignerPublicKey() cryptoutil.PublicKey { return tx.Signer }

func (tx *InitTransaction) ValidateSignatures() bool {
	return cryptoutil.Verify(tx.Signer, tx.SignaturePayload(), tx.Sig)
}

// Validate checks that the init transaction belongs to block 1 and is
// correctly signed. The declared block interval is compared with the
// configured one where the Config is in scope: cmd/corenode's
// genesisInitTime, when a node starts.
func (tx *InitTransaction) Validate(blockId uint32, store Store) error {
	if blockId != 1 {
		return errors.New("init transaction must belong to block 1")
	}
	if !tx.ValidateSignatures() {
		return errors.New("init transaction: bad signature")
	}
	return nil
}

func (tx *InitTransaction) Execute(blockId uint32, store Store) error { return nil }

func (tx *InitTransaction) IsManagement() bool { return true }
