// Package protocol implements the Source RCON wire format used by
// Minecraft and Source-engine game servers: little-endian, length-prefixed
// frames carrying a request id, a type code, and a NUL-terminated body.
package protocol

// Packet type codes. The protocol reuses the value 2 for both outgoing
// commands and incoming auth responses; which one a packet is can only be
// decided by context (what the client sent last), not by the value itself.
const (
	TypeResponseValue int32 = 0 // Server->client command output
	TypeAuthResponse  int32 = 2 // Server->client auth verdict
	TypeCommand       int32 = 2 // Client->server command
	TypeAuth          int32 = 3 // Client->server password
)

// AuthFailedID is the request id echoed in an AuthResponse when the server
// rejects the password. The body cannot carry the verdict (it is always
// empty), so the id field doubles as the failure sentinel.
const AuthFailedID int32 = -1

// HeaderSize is the byte count of everything in a frame except the body:
// request id (4), type (4), body terminator and pad byte (2). The 4-byte
// length prefix is not included, matching the protocol's length convention.
const HeaderSize = 10

// MaxPacketSize is the conservative safe limit for a single outbound frame,
// including the length prefix. Servers fragment their own replies around
// this size; inbound frames are not held to it.
const MaxPacketSize = 4096

// maxInboundSize bounds the declared length of an inbound frame. Server
// fragments top out near MaxPacketSize, so anything past this is a stream
// desync, not a legitimate packet.
const maxInboundSize = 1 << 20

// Packet is one logical RCON frame. Body is conventionally ASCII/UTF-8 text
// and must not contain a NUL byte, since NUL terminates the body on the wire.
type Packet struct {
	RequestID int32
	Type      int32
	Body      string
}
