package session

import (
	"crypto/rsa"
	"log/slog"
	"net/netip"

	"github.com/udisondev/tibiago/internal/constants"
)

// FlowID identifies a bidirectional flow independent of direction.
type FlowID struct {
	Lo, Hi netip.AddrPort
}

// NewFlowID orders the two endpoints so both directions share one id.
func NewFlowID(a, b netip.AddrPort) FlowID {
	if a.Compare(b) > 0 {
		a, b = b, a
	}
	return FlowID{Lo: a, Hi: b}
}

func (f FlowID) String() string {
	return f.Lo.String() + " <-> " + f.Hi.String()
}

// Packet is the per-message context the tracker needs.
type Packet struct {
	Frame uint32
	Src   netip.AddrPort
	Dst   netip.AddrPort
}

// Flow returns the flow the packet belongs to.
func (p Packet) Flow() FlowID {
	return NewFlowID(p.Src, p.Dst)
}

// Tracker owns one Conversation per flow for the lifetime of an analysis.
// Messages are processed one at a time in capture order; the tracker is
// not safe for concurrent use. The key tables it consults are.
type Tracker struct {
	keys          KeyStore
	servers       *ServerRegistry
	conversations map[FlowID]*Conversation
}

// NewTracker creates a tracker. keys and servers may be nil.
func NewTracker(keys KeyStore, servers *ServerRegistry) *Tracker {
	return &Tracker{
		keys:          keys,
		servers:       servers,
		conversations: make(map[FlowID]*Conversation),
	}
}

// GetOrCreate returns the conversation of pkt's flow, creating it on first
// sight. While the conversation has no symmetric key, every call checks
// for a key injected at pkt.Frame.
func (t *Tracker) GetOrCreate(pkt Packet) *Conversation {
	id := pkt.Flow()
	convo, ok := t.conversations[id]
	if !ok {
		convo = t.create(pkt)
		t.conversations[id] = convo
	}

	if _, _, known := convo.SymmetricKey(); !known && t.keys != nil {
		if key, ok := t.keys.InjectedKey(pkt.Frame); ok {
			convo.SetSymmetricKey(key, KeyFrameInjected)
			slog.Debug("injected XTEA key bound", "flow", id, "frame", pkt.Frame)
		}
	}
	return convo
}

func (t *Tracker) create(pkt Packet) *Conversation {
	// Ephemeral ports live in the upper quarter; the other end is the server.
	client, server := pkt.Dst, pkt.Src
	if pkt.Src.Port() >= constants.ClientPortMin {
		client, server = pkt.Src, pkt.Dst
	}

	key := t.lookupKey(server)
	slog.Debug("new conversation",
		"client", client,
		"server", server,
		"rsa_key", key != nil)
	return newConversation(client, server, key)
}

func (t *Tracker) lookupKey(server netip.AddrPort) *rsa.PrivateKey {
	if t.keys != nil {
		if key := t.keys.PrivateKey(server); key != nil {
			return key
		}
	}
	if t.servers != nil {
		if key, ok := t.servers.Lookup(server); ok {
			return key
		}
	}
	return nil
}

// Len returns the number of tracked conversations.
func (t *Tracker) Len() int {
	return len(t.conversations)
}
