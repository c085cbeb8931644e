package wire

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/corechain/node/internal/xerrors"
)

// ReadFrame reads one length-prefixed frame per spec.md §6.2: a 4-byte
// little-endian length L followed by L bytes. L==0 is the keep-alive
// (returns nil, nil). L > maxPacketSize aborts the connection.
func ReadFrame(r io.Reader, maxPacketSize int64, timeout time.Duration) ([]byte, error) {
	if conn, ok := r.(net.Conn); ok && timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, xerrors.Wrap(err, "wire: read frame length")
	}
	l := binary.LittleEndian.Uint32(lenBuf[:])
	if l == 0 {
		return nil, nil
	}
	if int64(l) > maxPacketSize {
		return nil, xerrors.ErrSerialization
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, xerrors.Wrap(err, "wire: read frame body")
	}
	return buf, nil
}

// WriteFrame writes payload as a length-prefixed frame; payload==nil
// writes the zero-length keep-alive frame.
func WriteFrame(w io.Writer, payload []byte, timeout time.Duration) error {
	if conn, ok := w.(net.Conn); ok && timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return xerrors.Wrap(err, "wire: write frame length")
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return xerrors.Wrap(err, "wire: write frame body")
	}
	return nil
}
