package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedPacket reports a frame that violates the wire format: an
// inconsistent length field, missing body terminators, or an unknown type
// code. It is fatal for the stream that produced it.
var ErrMalformedPacket = errors.New("rcon: malformed packet")

// IncompleteError reports that a buffer does not yet hold a complete frame.
// It is not a failure: the caller should read at least Need more bytes from
// the transport and retry.
type IncompleteError struct {
	Need int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("rcon: incomplete packet, need %d more bytes", e.Need)
}

// Encode serializes a packet into its exact wire layout:
// [int32 length LE][int32 id LE][int32 type LE][body][0x00][0x00],
// where length counts everything after the length field itself.
func Encode(p *Packet) ([]byte, error) {
	if strings.IndexByte(p.Body, 0) >= 0 {
		return nil, fmt.Errorf("rcon: packet body contains NUL byte")
	}

	length := len(p.Body) + HeaderSize
	if 4+length > MaxPacketSize {
		return nil, fmt.Errorf("rcon: packet too large (%d bytes, max %d)", 4+length, MaxPacketSize)
	}

	buf := make([]byte, 0, 4+length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(length))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.RequestID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Type))
	buf = append(buf, p.Body...)
	buf = append(buf, 0, 0)

	return buf, nil
}

// Decode consumes exactly one frame from the front of buf and returns the
// packet along with the number of bytes consumed. If buf holds only a prefix
// of a frame, Decode returns an *IncompleteError and consumes nothing; it is
// safe to call again once more bytes have arrived.
func Decode(buf []byte) (*Packet, int, error) {
	if len(buf) < 4 {
		return nil, 0, &IncompleteError{Need: 4 - len(buf)}
	}

	length := int(int32(binary.LittleEndian.Uint32(buf[:4])))
	if length < HeaderSize || length > maxInboundSize {
		return nil, 0, fmt.Errorf("%w: declared length %d", ErrMalformedPacket, length)
	}

	total := 4 + length
	if len(buf) < total {
		return nil, 0, &IncompleteError{Need: total - len(buf)}
	}

	frame := buf[4:total]
	id := int32(binary.LittleEndian.Uint32(frame[0:4]))
	typ := int32(binary.LittleEndian.Uint32(frame[4:8]))

	switch typ {
	case TypeResponseValue, TypeAuthResponse, TypeAuth:
	default:
		return nil, 0, fmt.Errorf("%w: unknown type code %d", ErrMalformedPacket, typ)
	}

	// Body runs up to the two trailing NUL bytes, both required.
	if frame[length-2] != 0 || frame[length-1] != 0 {
		return nil, 0, fmt.Errorf("%w: missing trailing NUL bytes", ErrMalformedPacket)
	}
	body := string(frame[8 : length-2])

	return &Packet{RequestID: id, Type: typ, Body: body}, total, nil
}

// WritePacket encodes p and writes the full frame to w.
func WritePacket(w io.Writer, p *Packet) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("rcon: failed to write packet: %w", err)
	}
	return nil
}

// ReadPacket reads exactly one frame from r, blocking until it is complete.
func ReadPacket(r io.Reader) (*Packet, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("rcon: failed to read packet length: %w", err)
	}

	length := int(int32(binary.LittleEndian.Uint32(sizeBuf[:])))
	if length < HeaderSize || length > maxInboundSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrMalformedPacket, length)
	}

	buf := make([]byte, 4+length)
	copy(buf, sizeBuf[:])
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, fmt.Errorf("rcon: failed to read packet payload (%d bytes): %w", length, err)
	}

	pkt, _, err := Decode(buf)
	return pkt, err
}
