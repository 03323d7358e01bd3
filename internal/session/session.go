// Package session implements the client side of an RCON exchange: the
// authentication handshake, request/response correlation, and reassembly of
// command replies that the server splits across multiple packets.
package session

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/protocol"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateReady
	StateFailed
)

// stateStrings maps State values to their lowercase string representation.
var stateStrings = map[State]string{
	StateUnauthenticated: "unauthenticated",
	StateAuthenticating:  "authenticating",
	StateReady:           "ready",
	StateFailed:          "failed",
}

// String returns the string representation of State.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return "unknown"
}

// MarshalJSON serializes State as a JSON string (e.g. "ready").
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

var (
	// ErrInvalidState is returned when a call is made in the wrong
	// lifecycle state. The session itself is left unchanged.
	ErrInvalidState = errors.New("rcon: session in invalid state for this call")

	// ErrSessionBusy is returned when a call is made while another
	// exchange on the same session is still in flight.
	ErrSessionBusy = errors.New("rcon: session busy with another request")

	// ErrAuthRejected is returned when the server rejects the password.
	// The session is unusable; reconnect with a fresh transport to retry.
	ErrAuthRejected = errors.New("rcon: authentication rejected by server")

	// ErrUnexpectedResponseID is returned when a response carries a
	// request id matching no outstanding request. The stream is
	// desynchronized and the session is unusable.
	ErrUnexpectedResponseID = errors.New("rcon: unexpected response id")
)

// Session drives the RCON protocol over a caller-supplied byte stream. It
// owns the request-id counter and the connection state machine. Exactly one
// Authenticate or Execute call may be in flight at a time; a second call
// fails with ErrSessionBusy rather than interleaving bytes on the wire.
//
// Once a session reaches StateFailed it must be discarded. The caller
// re-establishes a new transport and a new Session; nothing is retried here
// because re-sending a command could re-execute a side-effecting admin
// action.
type Session struct {
	mu sync.Mutex // serializes protocol exchanges

	transport io.ReadWriter
	logger    zerolog.Logger

	state  atomic.Int32
	nextID int32

	// Receive accumulator. The transport delivers an unstructured byte
	// stream; frames are carved out of this buffer as they complete.
	rbuf []byte
}

// New creates a Session bound to an already-open transport. The session
// starts unauthenticated; Authenticate must succeed before Execute.
func New(transport io.ReadWriter) *Session {
	return &Session{
		transport: transport,
		logger:    log.With().Str("component", "session").Logger(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// fail moves the session to its terminal state.
func (s *Session) fail() {
	s.setState(StateFailed)
}

// nextRequestID allocates the next request id. Ids are per-session, so
// independent sessions never collide.
func (s *Session) nextRequestID() int32 {
	s.nextID++
	return s.nextID
}

// Authenticate performs the RCON handshake. On success the session is ready
// for Execute. A rejected password returns ErrAuthRejected; any transport or
// protocol error is fatal for the session.
func (s *Session) Authenticate(password string) error {
	if !s.mu.TryLock() {
		return ErrSessionBusy
	}
	defer s.mu.Unlock()

	if st := s.State(); st != StateUnauthenticated {
		return fmt.Errorf("%w: authenticate called in state %s", ErrInvalidState, st)
	}

	id := s.nextRequestID()
	if err := s.send(&protocol.Packet{RequestID: id, Type: protocol.TypeAuth, Body: password}); err != nil {
		s.fail()
		return err
	}
	s.setState(StateAuthenticating)

	for {
		resp, err := s.readPacket()
		if err != nil {
			s.fail()
			return err
		}

		// Some servers echo an empty ResponseValue before the real
		// AuthResponse; discard those and keep reading.
		if resp.Type == protocol.TypeResponseValue {
			s.logger.Trace().Int32("id", resp.RequestID).Msg("discarding auth echo packet")
			continue
		}

		// Type 2 while authenticating is the AuthResponse. The verdict
		// rides in the id field: our id back means success, -1 means
		// the password was rejected.
		if resp.Type != protocol.TypeAuthResponse {
			s.fail()
			return fmt.Errorf("%w: type %d during handshake", protocol.ErrMalformedPacket, resp.Type)
		}
		switch resp.RequestID {
		case id:
			s.setState(StateReady)
			s.logger.Debug().Int32("id", id).Msg("authenticated")
			return nil
		case protocol.AuthFailedID:
			s.fail()
			return ErrAuthRejected
		default:
			s.fail()
			return fmt.Errorf("%w: auth response carried id %d, sent %d", ErrUnexpectedResponseID, resp.RequestID, id)
		}
	}
}

// Execute sends a command and returns the fully reassembled response body.
//
// The server gives no end-of-reply marker when it fragments a long response,
// so Execute sends a second, empty probe packet right behind the command.
// The server answers requests in order: every ResponseValue carrying the
// command's id is a fragment, and the first packet carrying the probe's id
// means the reply is complete.
func (s *Session) Execute(command string) (string, error) {
	if !s.mu.TryLock() {
		return "", ErrSessionBusy
	}
	defer s.mu.Unlock()

	if st := s.State(); st != StateReady {
		return "", fmt.Errorf("%w: execute called in state %s", ErrInvalidState, st)
	}

	cmdID := s.nextRequestID()
	probeID := s.nextRequestID()

	if err := s.send(&protocol.Packet{RequestID: cmdID, Type: protocol.TypeCommand, Body: command}); err != nil {
		s.fail()
		return "", err
	}
	if err := s.send(&protocol.Packet{RequestID: probeID, Type: protocol.TypeCommand}); err != nil {
		s.fail()
		return "", err
	}

	var reply strings.Builder
	for {
		resp, err := s.readPacket()
		if err != nil {
			s.fail()
			return "", err
		}

		switch resp.RequestID {
		case cmdID:
			if resp.Type != protocol.TypeResponseValue {
				s.fail()
				return "", fmt.Errorf("%w: type %d for command response", protocol.ErrMalformedPacket, resp.Type)
			}
			reply.WriteString(resp.Body)
		case probeID:
			// Probe answered: every fragment of the real reply has
			// been received. The probe's own body is discarded.
			s.logger.Trace().
				Int32("id", cmdID).
				Int("reply_len", reply.Len()).
				Msg("command reply complete")
			return reply.String(), nil
		default:
			s.fail()
			return "", fmt.Errorf("%w: got id %d, outstanding %d and %d", ErrUnexpectedResponseID, resp.RequestID, cmdID, probeID)
		}
	}
}

// Close closes the underlying transport when it supports closing and forces
// the session into its terminal state. This is the only way to abort an
// in-flight exchange.
func (s *Session) Close() error {
	s.fail()
	if c, ok := s.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// send encodes and writes one packet to the transport.
func (s *Session) send(p *protocol.Packet) error {
	if err := protocol.WritePacket(s.transport, p); err != nil {
		return err
	}
	s.logger.Trace().
		Int32("id", p.RequestID).
		Int32("type", p.Type).
		Int("body_len", len(p.Body)).
		Msg("packet sent")
	return nil
}

// readPacket returns the next complete frame from the transport, reading
// and accumulating stream bytes until one can be decoded.
func (s *Session) readPacket() (*protocol.Packet, error) {
	for {
		pkt, n, err := protocol.Decode(s.rbuf)
		if err == nil {
			s.rbuf = s.rbuf[n:]
			return pkt, nil
		}

		var incomplete *protocol.IncompleteError
		if !errors.As(err, &incomplete) {
			return nil, err
		}

		chunk := make([]byte, 4096)
		n, rerr := s.transport.Read(chunk)
		if n > 0 {
			s.rbuf = append(s.rbuf, chunk[:n]...)
		}
		if rerr != nil && n == 0 {
			return nil, fmt.Errorf("rcon: failed to read from transport: %w", rerr)
		}
	}
}
