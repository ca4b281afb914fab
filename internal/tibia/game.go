package tibia

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
	"github.com/udisondev/tibiago/internal/protocol"
	"github.com/udisondev/tibiago/internal/session"
)

// dissectGame decodes a message after authentication: decrypt when the
// version encrypts, honor the inner payload length, then walk commands.
func (d *Dissector) dissectGame(res *Result, convo *session.Conversation, msg Message, off int, nonce bool) {
	has, _ := convo.Traits()
	d.addRemembered(res, convo, has)

	buf, src := msg.Data, SourceFrame
	encrypted := has.XTEA && !nonce
	if encrypted {
		if !convo.KeyValidAt(msg.Frame) {
			res.annotate(ErrKeyNotYetEstablished, SourceFrame, off, "XTEA key not known yet")
			res.add("XTEA-encrypted game data", SourceFrame, off, len(buf)-off, fmt.Sprintf("%d bytes", len(buf)-off))
			return
		}
		key, _, _ := convo.SymmetricKey()
		if d.opts.ShowXTEAKey {
			res.generated("XTEA key", hexBytes(key[:]))
		}

		payload := bytes.Clone(buf[off:])
		x, err := convo.Cipher()
		if err == nil {
			err = x.Decrypt(payload)
		}
		if err != nil {
			if errors.Is(err, crypto.ErrNotBlockAligned) {
				res.annotate(ErrNotBlockAligned, SourceFrame, off,
					"Length %d is not a multiple of %d", len(payload), constants.XTEABlockSize)
			} else {
				res.annotate(ErrDecryptFailed, SourceFrame, off, "XTEA decryption failed: %v", err)
			}
			res.add("XTEA-encrypted game data", SourceFrame, off, len(payload), fmt.Sprintf("%d bytes", len(payload)))
			return
		}
		buf, src, off = payload, SourceGameData, 0
		res.Buffers[SourceGameData] = payload
	}

	end := len(buf)
	if has.XTEA || nonce {
		c := newCursor(res, src, buf, off, end, has.StringEncoding)
		n := int(c.u16("Payload length"))
		if !c.finish() {
			return
		}
		off = c.pos()
		if n > end-off {
			res.annotate(ErrDeclaredLengthExceedsBuffer, src, off-constants.PayloadLengthSize,
				"Payload length %d exceeds remaining %d bytes", n, end-off)
			return
		}
		end = off + n
	}

	fromServer := convo.IsFromServer(msg.Src)
	switch {
	case fromServer && convo.LoginServerIsPeer():
		d.dissectCommands(res, convo, loginServerCommands, buf, off, end, src)
	case !d.opts.DissectGameCommands:
		c := newCursor(res, src, buf, off, end, has.StringEncoding)
		c.opaque("Data")
	case fromServer:
		d.dissectCommands(res, convo, gameServerCommands, buf, off, end, src)
	default:
		d.dissectCommands(res, convo, clientCommands, buf, off, end, src)
	}

	if src == SourceGameData && end < len(buf) {
		res.add("Padding", src, end, len(buf)-end, fmt.Sprintf("%d bytes", len(buf)-end))
	}
}

// addRemembered repeats credentials cached from the authentication request.
func (d *Dissector) addRemembered(res *Result, convo *session.Conversation, has protocol.Traits) {
	if d.opts.ShowAccountInfo {
		if has.SessionKey {
			if v, ok := convo.Identity(session.IdentitySessionKey); ok {
				res.generated("Session key", v)
			}
		} else {
			if v, ok := convo.Identity(session.IdentityAccount); ok {
				res.generated("Account", v)
			}
			if v, ok := convo.Identity(session.IdentityPassword); ok {
				res.generated("Password", v)
			}
		}
	}
	if d.opts.ShowCharacterName {
		if v, ok := convo.Identity(session.IdentityCharacter); ok {
			res.generated("Character name", v)
		}
	}
}
