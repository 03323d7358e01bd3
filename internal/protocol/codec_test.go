package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{"auth", Packet{RequestID: 1, Type: TypeAuth, Body: "hunter2"}},
		{"command", Packet{RequestID: 7, Type: TypeCommand, Body: "say hello"}},
		{"response", Packet{RequestID: 7, Type: TypeResponseValue, Body: "There are 3 players online"}},
		{"empty body", Packet{RequestID: 2, Type: TypeCommand, Body: ""}},
		{"negative id", Packet{RequestID: -1, Type: TypeAuthResponse, Body: ""}},
		{"max body", Packet{RequestID: 9, Type: TypeCommand, Body: strings.Repeat("x", MaxPacketSize-4-HeaderSize)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(&tt.packet)
			require.NoError(t, err)

			decoded, consumed, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, len(data), consumed)
			assert.Equal(t, tt.packet, *decoded)
		})
	}
}

func TestEncodeWireLayout(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 42, Type: TypeCommand, Body: "list"})
	require.NoError(t, err)

	// [length=14][id=42][type=2]"list"\x00\x00, all little-endian
	require.Len(t, data, 18)
	assert.Equal(t, uint32(14), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, []byte("list"), data[12:16])
	assert.Equal(t, []byte{0, 0}, data[16:18])
}

func TestEncodeRejectsEmbeddedNUL(t *testing.T) {
	_, err := Encode(&Packet{RequestID: 1, Type: TypeCommand, Body: "bad\x00body"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUL")
}

func TestEncodeRejectsOversizedPacket(t *testing.T) {
	// One byte past the largest encodable body.
	body := strings.Repeat("x", MaxPacketSize-4-HeaderSize+1)
	_, err := Encode(&Packet{RequestID: 1, Type: TypeCommand, Body: body})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestDecodeIncomplete(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 5, Type: TypeResponseValue, Body: "partial"})
	require.NoError(t, err)

	for cut := 0; cut < len(data); cut++ {
		prefix := data[:cut]

		// Before the length field is complete the total frame size is
		// unknowable, so only the rest of the length field is requested.
		want := len(data) - cut
		if cut < 4 {
			want = 4 - cut
		}

		pkt, consumed, err := Decode(prefix)
		assert.Nil(t, pkt)
		assert.Zero(t, consumed)

		var incomplete *IncompleteError
		require.ErrorAs(t, err, &incomplete, "prefix of %d bytes", cut)
		assert.Equal(t, want, incomplete.Need)

		// Idempotent on the same prefix
		_, _, err2 := Decode(prefix)
		require.ErrorAs(t, err2, &incomplete)
		assert.Equal(t, want, incomplete.Need)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 1, Type: TypeCommand, Body: "ok"})
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[8:12], 9) // unknown type code

	_, _, err = Decode(data)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeMissingTerminators(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 1, Type: TypeCommand, Body: "ok"})
	require.NoError(t, err)
	data[len(data)-1] = 'x'

	_, _, err = Decode(data)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeBadLength(t *testing.T) {
	tests := []struct {
		name   string
		length int32
	}{
		{"below header size", 4},
		{"negative", -1},
		{"absurd", 1 << 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 16)
			binary.LittleEndian.PutUint32(buf[0:4], uint32(tt.length))

			_, _, err := Decode(buf)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestDecodeConsumesExactlyOneFrame(t *testing.T) {
	first, err := Encode(&Packet{RequestID: 1, Type: TypeResponseValue, Body: "abc"})
	require.NoError(t, err)
	second, err := Encode(&Packet{RequestID: 2, Type: TypeResponseValue, Body: "def"})
	require.NoError(t, err)

	stream := append(append([]byte{}, first...), second...)

	pkt, consumed, err := Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, len(first), consumed)
	assert.Equal(t, "abc", pkt.Body)

	pkt, consumed, err = Decode(stream[consumed:])
	require.NoError(t, err)
	assert.Equal(t, len(second), consumed)
	assert.Equal(t, "def", pkt.Body)
}

func TestReadWritePacket(t *testing.T) {
	var buf bytes.Buffer

	want := &Packet{RequestID: 3, Type: TypeCommand, Body: "seed"}
	require.NoError(t, WritePacket(&buf, want))

	got, err := ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadPacketTruncatedStream(t *testing.T) {
	data, err := Encode(&Packet{RequestID: 3, Type: TypeCommand, Body: "seed"})
	require.NoError(t, err)

	_, err = ReadPacket(bytes.NewReader(data[:len(data)-2]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
