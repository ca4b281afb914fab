package session

import (
	"crypto/rsa"
	"fmt"
	"math"
	"net/netip"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
	"github.com/udisondev/tibiago/internal/protocol"
)

// Boundary frames of the symmetric key.
const (
	// KeyFrameUnknown marks a conversation whose XTEA key is not known yet.
	KeyFrameUnknown uint32 = math.MaxUint32
	// KeyFrameInjected marks a key supplied out of band: valid for every frame.
	KeyFrameInjected uint32 = 0
)

// Identity names the credentials cached per conversation.
type Identity int

const (
	IdentityAccount Identity = iota
	IdentityPassword
	IdentitySessionKey
	IdentityCharacter
	identityCount
)

func (i Identity) String() string {
	switch i {
	case IdentityAccount:
		return "account"
	case IdentityPassword:
		return "password"
	case IdentitySessionKey:
		return "session key"
	case IdentityCharacter:
		return "character"
	default:
		return "unknown"
	}
}

// Conversation is the reconstructed state of one TCP connection.
// It is mutated only by messages of its own flow, in capture order, and is
// not safe for concurrent use. Everything that is learned once (traits,
// symmetric key, credentials, server role) is write-once.
type Conversation struct {
	ClientPort uint16
	ServerPort uint16
	// Server is the endpoint assumed to be the server by the port heuristic.
	Server netip.AddrPort

	// Not owned: shared with the KeyStore or the ServerRegistry.
	privateKey *rsa.PrivateKey

	version   uint16
	traits    protocol.Traits
	hasTraits bool

	xteaKey  [constants.XTEAKeySize]byte
	keyFrame uint32
	cipher   *crypto.XTEA

	identity    [identityCount]string
	hasIdentity [identityCount]bool

	loginServerIsPeer bool
	classified        bool
}

func newConversation(client, server netip.AddrPort, key *rsa.PrivateKey) *Conversation {
	return &Conversation{
		ClientPort: client.Port(),
		ServerPort: server.Port(),
		Server:     server,
		privateKey: key,
		keyFrame:   KeyFrameUnknown,
	}
}

// PrivateKey returns the RSA key bound to the server endpoint, or nil.
func (c *Conversation) PrivateKey() *rsa.PrivateKey {
	return c.privateKey
}

// IsFromServer reports whether a message sent from src travels server to client.
func (c *Conversation) IsFromServer(src netip.AddrPort) bool {
	return src.Port() == c.ServerPort
}

// SetVersion derives the traits from the first version field seen.
// Later calls are ignored; returns true if this call set them.
func (c *Conversation) SetVersion(version uint16) bool {
	if c.hasTraits {
		return false
	}
	c.version = version
	c.traits = protocol.TraitsFor(version)
	c.hasTraits = true
	return true
}

// Traits returns the conversation's traits. Before the version field has
// been seen the zero Traits is returned together with false.
func (c *Conversation) Traits() (protocol.Traits, bool) {
	return c.traits, c.hasTraits
}

// Version returns the protocol version announced by the client.
func (c *Conversation) Version() (uint16, bool) {
	return c.version, c.hasTraits
}

// SetSymmetricKey binds the XTEA key, valid for frames after frame.
// The key is write-once; returns false if a key was already bound.
func (c *Conversation) SetSymmetricKey(key [constants.XTEAKeySize]byte, frame uint32) bool {
	if c.keyFrame != KeyFrameUnknown {
		return false
	}
	c.xteaKey = key
	c.keyFrame = frame
	return true
}

// SymmetricKey returns the XTEA key and the frame it was established at.
func (c *Conversation) SymmetricKey() ([constants.XTEAKeySize]byte, uint32, bool) {
	return c.xteaKey, c.keyFrame, c.keyFrame != KeyFrameUnknown
}

// KeyValidAt reports whether frame comes strictly after the key exchange.
func (c *Conversation) KeyValidAt(frame uint32) bool {
	return c.keyFrame != KeyFrameUnknown && frame > c.keyFrame
}

// Cipher returns the XTEA cipher for the bound key.
func (c *Conversation) Cipher() (*crypto.XTEA, error) {
	if c.keyFrame == KeyFrameUnknown {
		return nil, fmt.Errorf("no symmetric key bound")
	}
	if c.cipher == nil {
		x, err := crypto.NewXTEA(c.xteaKey)
		if err != nil {
			return nil, err
		}
		c.cipher = x
	}
	return c.cipher, nil
}

// SetIdentity caches a credential. The first value wins; returns false if
// one was cached already.
func (c *Conversation) SetIdentity(id Identity, value string) bool {
	if c.hasIdentity[id] {
		return false
	}
	c.identity[id] = value
	c.hasIdentity[id] = true
	return true
}

// Identity returns a cached credential.
func (c *Conversation) Identity(id Identity) (string, bool) {
	return c.identity[id], c.hasIdentity[id]
}

// Classify fixes which role the server endpoint plays. Only the first call
// has an effect.
func (c *Conversation) Classify(loginServer bool) bool {
	if c.classified {
		return false
	}
	c.loginServerIsPeer = loginServer
	c.classified = true
	return true
}

// Classified reports whether the server role has been fixed.
func (c *Conversation) Classified() bool {
	return c.classified
}

// LoginServerIsPeer reports whether the server endpoint is a login server.
func (c *Conversation) LoginServerIsPeer() bool {
	return c.loginServerIsPeer
}
