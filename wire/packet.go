package wire

import (
	"encoding/binary"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
)

// PacketType is the stable 1-byte tag identifying a request kind,
// spec.md §4.5.
type PacketType byte

const (
	PacketFirst               PacketType = 0x01
	PacketNewBlocks           PacketType = 0x04
	PacketNewTransactions     PacketType = 0x05
	PacketGetBlockHeader      PacketType = 0x07
	PacketGetBlock            PacketType = 0x08
	PacketGetNewTransactions  PacketType = 0x09
)

// replyMarker precedes the 4-byte "id being replied to" field that
// distinguishes a response frame from a fresh request, spec.md §6.2.
const replyMarker = 0x00

// Packet is a decoded frame body: a 4-byte monotonic packet id, and
// either a Type+Payload (a fresh request) or a ReplyTo+Payload (a
// response), never both.
type Packet struct {
	ID       uint32
	IsReply  bool
	ReplyTo  uint32
	Type     PacketType
	Payload  []byte
}

// EncodeRequest builds a fresh-request frame body: 4-byte id, 1-byte
// type, payload.
func EncodeRequest(id uint32, typ PacketType, payload []byte) []byte {
	out := make([]byte, 0, 5+len(payload))
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], id)
	out = append(out, idBuf[:]...)
	out = append(out, byte(typ))
	out = append(out, payload...)
	return out
}

// EncodeReply builds a reply frame body: 4-byte id (this side's own
// monotonic counter), then the 0x00 marker, 4-byte id being replied to,
// then payload.
func EncodeReply(id uint32, replyTo uint32, payload []byte) []byte {
	out := make([]byte, 0, 9+len(payload))
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], id)
	out = append(out, idBuf[:]...)
	out = append(out, replyMarker)
	var replyBuf [4]byte
	binary.LittleEndian.PutUint32(replyBuf[:], replyTo)
	out = append(out, replyBuf[:]...)
	out = append(out, payload...)
	return out
}

// DecodePacket parses a frame body into a Packet.
func DecodePacket(body []byte) (*Packet, error) {
	if len(body) < 5 {
		return nil, xerrors.ErrSerialization
	}
	id := binary.LittleEndian.Uint32(body[0:4])
	rest := body[4:]
	if rest[0] == replyMarker {
		if len(rest) < 5 {
			return nil, xerrors.ErrSerialization
		}
		replyTo := binary.LittleEndian.Uint32(rest[1:5])
		return &Packet{ID: id, IsReply: true, ReplyTo: replyTo, Payload: rest[5:]}, nil
	}
	return &Packet{ID: id, IsReply: false, Type: PacketType(rest[0]), Payload: rest[1:]}, nil
}

// Preamble is the first data frame exchanged in both directions after
// connecting (spec.md §6.2): protocol version, local miner id, and the
// expected remote miner id.
type Preamble struct {
	Version        byte
	LocalMinerId   chaintypes.MinerID
	RemoteMinerId  chaintypes.MinerID
}

func EncodePreamble(p Preamble) []byte {
	out := make([]byte, 0, 41)
	out = append(out, p.Version)
	out = append(out, p.LocalMinerId[:]...)
	out = append(out, p.RemoteMinerId[:]...)
	return out
}

func DecodePreamble(b []byte) (Preamble, error) {
	if len(b) != 41 {
		return Preamble{}, xerrors.ErrSerialization
	}
	var p Preamble
	p.Version = b[0]
	copy(p.LocalMinerId[:], b[1:21])
	copy(p.RemoteMinerId[:], b[21:41])
	return p, nil
}
