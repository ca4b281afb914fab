package protocol

import (
	"encoding/binary"

	"github.com/udisondev/tibiago/internal/constants"
)

// Client command opcodes that open a connection.
const (
	OpGetCharlist = 0x01
	OpLoginChar   = 0x0A
)

// OpNonce is the game server's nonce challenge command.
const OpNonce = 0x1F

// Phase tells which protocol a message belongs to.
type Phase int

const (
	PhaseGame Phase = iota
	PhaseLogin
)

func (p Phase) String() string {
	if p == PhaseLogin {
		return "login"
	}
	return "game"
}

// Request is what the classifier sees of a message that might be an
// authentication request.
type Request struct {
	Length          int  // envelope length, prefix included
	ChecksumPresent bool // as inferred from this very message
	Command         uint8
	Version         uint16
}

// Classification is the classifier's verdict.
type Classification struct {
	Phase Phase
	// LoginServer is set when the message is a charlist request, which only
	// the login server ever receives.
	LoginServer bool
	// Traits derived from the request's version field.
	Traits Traits
}

// Classify decides whether a client message is an authentication request.
// Since 7.61 login and game requests are indistinguishable by opcode, so
// the decision rests on exact size coincidences: the observed length must
// equal the size a client of the announced version would send. Pre-7.61
// clients without checksum are matched against a size range instead.
// Misclassification of garbage is possible and harmless.
func Classify(req Request) Classification {
	has := TraitsFor(req.Version)
	c := Classification{Phase: PhaseGame, Traits: has}

	switch req.Command {
	case OpGetCharlist:
		if isLegacyRequest(req) || CharlistRequestSize(has) == req.Length {
			c.Phase = PhaseLogin
			c.LoginServer = true
		}
	case OpLoginChar:
		// Some third party clients zero-pad the 7.60 login request, hence
		// the range.
		if isLegacyRequest(req) || CharLoginRequestSize(has) == req.Length {
			c.Phase = PhaseLogin
		}
	}
	return c
}

func isLegacyRequest(req Request) bool {
	return constants.LegacyVersionMin <= req.Version && req.Version <= constants.LegacyVersionMax &&
		!req.ChecksumPresent &&
		constants.LegacyPacketSizeMin <= req.Length && req.Length <= constants.LegacyPacketSizeMax
}

// IsNonce reports whether the message starting at buf[off:] is a game
// server nonce challenge: a payload length equal to what follows it, then
// the nonce opcode. buf is the whole envelope.
func IsNonce(buf []byte, off int) bool {
	if off < 0 || off+3 > len(buf) {
		return false
	}
	declared := int(binary.LittleEndian.Uint16(buf[off:]))
	return declared == len(buf)-off-constants.PayloadLengthSize && buf[off+2] == OpNonce
}
