package wire

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/internal/xerrors"
)

// EncodeTransaction writes a tagged transaction: 1-byte type, then the
// variant's fields, per Design Notes §9 ("tagged variant keyed on the
// 1-byte type").
func EncodeTransaction(w *Writer, tx chaintypes.Transaction) error {
	w.WriteU8(byte(tx.GetType()))
	switch t := tx.(type) {
	case *chaintypes.InitTransaction:
		w.WriteU32(t.BlockId)
		w.WriteU64(uint64(t.InitializationTime))
		w.WriteU32(t.BlockIntervalSeconds)
		if err := w.WriteContainer(LenU8, t.Signer); err != nil {
			return err
		}
		return w.WriteContainer(LenU8, t.Sig)
	case *chaintypes.CommitTx:
		w.WriteU32(t.BlockId)
		w.WriteFixed(t.MinerOwner[:])
		w.WriteU64(t.RewardToken)
		if err := w.WriteContainer(LenU8, t.Signer); err != nil {
			return err
		}
		return w.WriteContainer(LenU8, t.Sig)
	case *chaintypes.TransferTx:
		w.WriteU32(t.BlockId)
		w.WriteFixed(t.From[:])
		w.WriteFixed(t.To[:])
		w.WriteU64(t.Amount)
		if err := w.WriteContainer(LenU16, t.Memo); err != nil {
			return err
		}
		if err := w.WriteContainer(LenU8, t.Signer); err != nil {
			return err
		}
		return w.WriteContainer(LenU8, t.Sig)
	default:
		return xerrors.ErrSerialization
	}
}

// DecodeTransaction is EncodeTransaction's inverse, dispatching on the
// leading type tag.
func DecodeTransaction(r *Reader) (chaintypes.Transaction, error) {
	typ := chaintypes.TxType(r.ReadU8())
	switch typ {
	case chaintypes.TxTypeInit:
		tx := &chaintypes.InitTransaction{}
		tx.BlockId = r.ReadU32()
		tx.InitializationTime = int64(r.ReadU64())
		tx.BlockIntervalSeconds = r.ReadU32()
		tx.Signer = r.ReadContainer(LenU8, cryptoutil.PublicKeySize)
		tx.Sig = r.ReadContainer(LenU8, cryptoutil.SignatureSize)
		if r.Err() != nil {
			return nil, r.Err()
		}
		return tx, nil
	case chaintypes.TxTypeCommit:
		tx := &chaintypes.CommitTx{}
		tx.BlockId = r.ReadU32()
		copy(tx.MinerOwner[:], r.ReadFixed(20))
		tx.RewardToken = r.ReadU64()
		tx.Signer = r.ReadContainer(LenU8, cryptoutil.PublicKeySize)
		tx.Sig = r.ReadContainer(LenU8, cryptoutil.SignatureSize)
		if r.Err() != nil {
			return nil, r.Err()
		}
		return tx, nil
	case chaintypes.TxTypeTransfer:
		tx := &chaintypes.TransferTx{}
		tx.BlockId = r.ReadU32()
		copy(tx.From[:], r.ReadFixed(20))
		copy(tx.To[:], r.ReadFixed(20))
		tx.Amount = r.ReadU64()
		tx.Memo = r.ReadContainer(LenU16, 65535)
		tx.Signer = r.ReadContainer(LenU8, cryptoutil.PublicKeySize)
		tx.Sig = r.ReadContainer(LenU8, cryptoutil.SignatureSize)
		if r.Err() != nil {
			return nil, r.Err()
		}
		return tx, nil
	default:
		return nil, xerrors.ErrSerialization
	}
}
