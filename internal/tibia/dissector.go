package tibia

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
	"github.com/udisondev/tibiago/internal/protocol"
	"github.com/udisondev/tibiago/internal/session"
)

// Options controls what the dissector decodes and reveals.
type Options struct {
	// TryDefaultKey falls back to the well-known open-server key when no
	// key is configured for a server.
	TryDefaultKey bool
	// ShowAccountInfo repeats cached account credentials on game messages.
	ShowAccountInfo bool
	// ShowCharacterName repeats the cached character name on game messages.
	ShowCharacterName bool
	// ShowXTEAKey shows the symmetric key on every decrypted message.
	ShowXTEAKey bool
	// DissectGameCommands decodes game payloads instead of leaving them opaque.
	DissectGameCommands bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TryDefaultKey:       true,
		ShowAccountInfo:     true,
		ShowCharacterName:   true,
		ShowXTEAKey:         false,
		DissectGameCommands: true,
	}
}

// Message is one length-framed Tibia message and its capture context.
type Message struct {
	Frame uint32
	Src   netip.AddrPort
	Dst   netip.AddrPort
	Data  []byte
}

// Dissector turns messages into Results, keeping per-connection state
// across calls. Messages must be fed in capture order from one goroutine.
type Dissector struct {
	opts    Options
	tracker *session.Tracker
	servers *session.ServerRegistry
}

// NewDissector creates a dissector. keys may be nil. servers is shared with
// the tracker so game server keys learned from character lists reach later
// connections; a new registry is created when nil.
func NewDissector(opts Options, keys session.KeyStore, servers *session.ServerRegistry) *Dissector {
	if servers == nil {
		servers = session.NewServerRegistry()
	}
	return &Dissector{
		opts:    opts,
		tracker: session.NewTracker(keys, servers),
		servers: servers,
	}
}

// Tracker exposes the conversation table.
func (d *Dissector) Tracker() *session.Tracker {
	return d.tracker
}

// Servers exposes the game server registry.
func (d *Dissector) Servers() *session.ServerRegistry {
	return d.servers
}

// Dissect decodes one message. It returns ErrFrameMismatch, and no result,
// when the message does not carry a matching envelope length. Every other
// problem is reported as an annotation on the result.
func (d *Dissector) Dissect(msg Message) (*Result, error) {
	data := msg.Data
	if len(data) < constants.PacketHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameMismatch, len(data))
	}
	plen := int(binary.LittleEndian.Uint16(data)) + constants.PacketHeaderSize
	if plen != len(data) {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrFrameMismatch, plen, len(data))
	}

	convo := d.tracker.GetOrCreate(session.Packet{Frame: msg.Frame, Src: msg.Src, Dst: msg.Dst})
	res := newResult(msg)
	res.add("Packet length", SourceFrame, 0, constants.PacketHeaderSize, uint16(plen-constants.PacketHeaderSize))

	has, known := convo.Traits()
	status, computed := crypto.VerifyChecksum(data, known && has.Checksum)
	off := constants.PacketHeaderSize
	if status.Present() && len(data) < off+constants.PacketChecksumSize {
		res.annotate(ErrChecksumInvalid, SourceFrame, off,
			"Message too short for a checksum: %d bytes", len(data)-off)
		newCursor(res, SourceFrame, data, off, plen, protocol.EncodingLatin1).opaque("Data")
		res.Info = "Malformed"
		res.Phase = protocol.PhaseGame
		return res, nil
	}
	if status.Present() {
		stored := binary.LittleEndian.Uint32(data[off:])
		res.add("Adler32 checksum", SourceFrame, off, constants.PacketChecksumSize, fmt.Sprintf("0x%08x", stored))
		res.push()
		res.add("Checksum status", SourceFrame, off, constants.PacketChecksumSize, status)
		res.pop()
		if status == crypto.ChecksumInvalid {
			res.annotate(ErrChecksumInvalid, SourceFrame, off, "Bad checksum [should be 0x%08x]", computed)
		}
		off += constants.PacketChecksumSize
	}

	nonce := protocol.IsNonce(data, off)
	phase := protocol.PhaseGame
	if !nonce && plen-off >= 5 {
		req := protocol.Request{
			Length:          plen,
			ChecksumPresent: status.Present(),
			Command:         data[off],
			Version:         binary.LittleEndian.Uint16(data[off+3:]),
		}
		c := protocol.Classify(req)
		phase = c.Phase
		if phase == protocol.PhaseLogin && convo.Classify(c.LoginServer) {
			slog.Debug("conversation classified",
				"flow", res.Flow,
				"login_server", c.LoginServer,
				"version", req.Version)
		}
	}
	res.Phase = phase

	if phase == protocol.PhaseLogin {
		res.Info = "Login"
		d.dissectLogin(res, convo, data, off)
		return res, nil
	}

	if convo.IsFromServer(msg.Src) {
		res.Info = "Server"
	} else {
		res.Info = "Client"
	}
	d.dissectGame(res, convo, msg, off, nonce)
	return res, nil
}
