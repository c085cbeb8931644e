package chaintypes

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/corechain/node/cryptoutil"
)

// TransferTx is the generic user-submitted, value-carrying transaction
// used to exercise the pool/gossip/chunking paths end to end, modeled on
// the teacher's tx_internal_data_value_transfer.go.
type TransferTx struct {
	BlockId  uint32 // block id this tx was signed to target (staleness window)
	From     MinerID
	To       MinerID
	Amount   uint64
	Memo     []byte
	Signer   cryptoutil.PublicKey
	Sig      []byte
}

func (tx *TransferTx) GetType() TxType { return TxTypeTransfer }

func (tx *TransferTx) GetId() TransactionId {
	payload := tx.SignaturePayload()
	h := cryptoutil.Hash256(payload)
	return TransactionId{Type: TxTypeTransfer, BlockId: tx.BlockId, Size: tx.GetSize(), Hash: h}
}

func (tx *TransferTx) GetSize() uint16 {
	return uint16(len(tx.SignaturePayload()) + len(tx.Sig))
}

func (tx *TransferTx) GetUserId() MinerID { return tx.From }

func (tx *TransferTx) SignaturePayload() []byte {
	buf := make([]byte, 4+20+20+8+len(tx.Memo))
	binary.LittleEndian.PutUint32(buf[0:4], tx.BlockId)
	copy(buf[4:24], tx.From[:])
	copy(buf[24:44], tx.To[:])
	binary.LittleEndian.PutUint64(buf[44:52], tx.Amount)
	copy(buf[52:], tx.Memo)
	return buf
}

func (tx *TransferTx) Signature() []byte                      { return tx.Sig }
func (tx *TransferTx) SignerPublicKey() cryptoutil.PublicKey { return tx.Signer }

func (tx *TransferTx) ValidateSignatures() bool {
	return cryptoutil.Verify(tx.Signer, tx.SignaturePayload(), tx.Sig)
}

func (tx *TransferTx) Validate(blockId uint32, store Store) error {
	if !tx.ValidateSignatures() {
		return errors.New("transfer: bad signature")
	}
	if tx.From == tx.To {
		return errors.New("transfer: self transfer")
	}
	if store.GetUserBalance(tx.From) < tx.Amount {
		return errors.New("transfer: insufficient balance")
	}
	return nil
}

func (tx *TransferTx) Execute(blockId uint32, store Store) error {
	if err := store.DebitUser(tx.From, tx.Amount); err != nil {
		return err
	}
	store.CreditUser(tx.To, tx.Amount)
	return nil
}

func (tx *TransferTx) IsManagement() bool { return false }
