package wire

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/internal/xerrors"
)

// EncodeHeader writes a Header: version, maxVersion is carried on Body
// (per spec.md §6.2 both header and body carry a version byte; the
// header's "maxVersion" is implicit -- callers compare against
// Config.NetworkProtocolVersion), id, depth, hashes, miner id, the
// next-miners queue (u16-tagged byte length, 1-240 entries), signer key,
// signature.
func EncodeHeader(w *Writer, h *chaintypes.Header) error {
	w.WriteU8(h.Version)
	w.WriteU32(h.Id)
	w.WriteU32(h.Depth)
	w.WriteFixed(h.PrevHash[:])
	w.WriteFixed(h.BodyHash[:])
	w.WriteFixed(h.MinerId[:])
	nm := make([]byte, 0, len(h.NextMiners)*20)
	for _, m := range h.NextMiners {
		nm = append(nm, m[:]...)
	}
	if err := w.WriteContainer(LenU16, nm); err != nil {
		return err
	}
	if err := w.WriteContainer(LenU8, h.SignerKey); err != nil {
		return err
	}
	w.WriteFixed(h.Signature[:])
	return nil
}

// DecodeHeader is EncodeHeader's inverse.
func DecodeHeader(r *Reader) (*chaintypes.Header, error) {
	h := &chaintypes.Header{}
	h.Version = r.ReadU8()
	h.Id = r.ReadU32()
	h.Depth = r.ReadU32()
	copy(h.PrevHash[:], r.ReadFixed(32))
	copy(h.BodyHash[:], r.ReadFixed(32))
	copy(h.MinerId[:], r.ReadFixed(20))
	nm := r.ReadContainer(LenU16, 240*20)
	if r.Err() != nil {
		return nil, r.Err()
	}
	if len(nm)%20 != 0 {
		return nil, xerrors.ErrSerialization
	}
	count := len(nm) / 20
	if count < 1 || count > 240 {
		return nil, xerrors.ErrSerialization
	}
	h.NextMiners = make([]chaintypes.MinerID, count)
	for i := 0; i < count; i++ {
		copy(h.NextMiners[i][:], nm[i*20:(i+1)*20])
	}
	signer := r.ReadContainer(LenU8, cryptoutil.PublicKeySize)
	if r.Err() != nil {
		return nil, r.Err()
	}
	if len(signer) != cryptoutil.PublicKeySize {
		return nil, xerrors.ErrSerialization
	}
	h.SignerKey = signer
	copy(h.Signature[:], r.ReadFixed(cryptoutil.SignatureSize))
	if r.Err() != nil {
		return nil, r.Err()
	}
	return h, nil
}
