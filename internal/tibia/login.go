package tibia

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
	"github.com/udisondev/tibiago/internal/protocol"
	"github.com/udisondev/tibiago/internal/session"
)

var operatingSystems = map[uint16]string{
	1:  "Linux",
	2:  "Windows",
	3:  "Flash",
	10: "OTClient Linux",
	11: "OTClient Windows",
	12: "OTClient macOS",
}

// dissectLogin decodes an authentication request: the cleartext header,
// then the RSA login block when the version uses one.
func (d *Dissector) dissectLogin(res *Result, convo *session.Conversation, data []byte, off int) {
	plen := len(data)
	c := newCursor(res, SourceFrame, data, off, plen, protocol.EncodingLatin1)

	cmd := c.u8("Command")
	if name, ok := clientCommandNames[cmd]; ok {
		res.Fields[len(res.Fields)-1].Value = commandLabel(name, cmd)
		res.Info += " " + name
	}
	os := c.u16("Operating system")
	if name, ok := operatingSystems[os]; ok {
		res.Fields[len(res.Fields)-1].Value = fmt.Sprintf("%s (%d)", name, os)
	}
	version := c.u16("Protocol version")
	if !c.ok() {
		c.finish()
		return
	}
	if convo.SetVersion(version) {
		slog.Debug("protocol version set", "flow", res.Flow, "version", version)
	}
	has, _ := convo.Traits()
	c.enc = has.StringEncoding
	peer := convo.LoginServerIsPeer()

	if has.ClientVersion {
		c.u32("Client version")
	}
	if peer {
		res.add("File versions", SourceFrame, c.pos(), constants.FileVersionsSize, nil)
		res.push()
		c.u32be("Tibia.spr version")
		c.u32be("Tibia.dat version")
		c.u32be("Tibia.pic version")
		res.pop()
	} else if has.ContentRevision {
		c.u16("Content revision")
	}
	if has.GamePreview {
		c.flag("Game preview state")
	}
	if !c.finish() {
		return
	}

	// Fields below come from the decrypted login block when there is one.
	id := c
	blockEnd := 0
	if has.RSA {
		key := convo.PrivateKey()
		if key == nil && d.opts.TryDefaultKey {
			key = crypto.OTServKey()
		}
		blockOff := c.pos()
		if key == nil {
			res.annotate(ErrNoKeyAvailable, SourceFrame, blockOff, "No RSA key for %s", convo.Server)
			c.opaque("RSA-encrypted login data")
			return
		}
		block, err := crypto.DecryptLoginBlock(key, data[blockOff:])
		switch {
		case errors.Is(err, crypto.ErrCiphertextTooShort):
			res.annotate(ErrCiphertextTooShort, SourceFrame, blockOff,
				"RSA block needs %d bytes, %d remain", constants.RSABlockSize, plen-blockOff)
			c.opaque("RSA-encrypted login data")
			return
		case errors.Is(err, crypto.ErrDecryptFailed):
			res.annotate(ErrDecryptFailed, SourceFrame, blockOff, "RSA decryption failed: %v", err)
			c.bytes("RSA-encrypted login data", constants.RSABlockSize)
			c.opaque("Undecoded")
			return
		case errors.Is(err, crypto.ErrInvalidPadding):
			res.Buffers[SourceLoginBlock] = block[:]
			res.add("RSA-encrypted login data", SourceFrame, blockOff, constants.RSABlockSize, nil)
			res.annotate(ErrInvalidPadding, SourceLoginBlock, 0,
				"RSA decrypted data must start with 0x00, got 0x%02x; wrong key?", block[0])
			newCursor(res, SourceFrame, data, blockOff+constants.RSABlockSize, plen, has.StringEncoding).opaque("Data")
			return
		case err != nil:
			res.annotate(ErrDecryptFailed, SourceFrame, blockOff, "RSA decryption failed: %v", err)
			c.opaque("Undecoded")
			return
		}

		res.Buffers[SourceLoginBlock] = block[:]
		res.add("RSA-encrypted login data", SourceFrame, blockOff, constants.RSABlockSize, nil)
		blockEnd = blockOff + constants.RSABlockSize

		id = newCursor(res, SourceLoginBlock, block[:], 1, constants.RSABlockSize, has.StringEncoding)
		res.push()
		key16 := id.bytes("Symmetric key (XTEA)", constants.XTEAKeySize)
		if convo.SetSymmetricKey([constants.XTEAKeySize]byte(key16), res.Frame) {
			slog.Debug("XTEA key established", "flow", res.Flow, "frame", res.Frame)
		}
	}

	if !peer && has.GMByte {
		id.flag("Gamemaster")
	}

	if has.SessionKey && !peer {
		remember(convo, session.IdentitySessionKey, id.str("Session key"), id)
	} else if has.AccountName {
		remember(convo, session.IdentityAccount, id.str("Account"), id)
	} else {
		n := id.u32("Account")
		remember(convo, session.IdentityAccount, strconv.FormatUint(uint64(n), 10), id)
	}

	if !peer {
		remember(convo, session.IdentityCharacter, id.str("Character name"), id)
	}
	if !has.SessionKey || peer {
		remember(convo, session.IdentityPassword, id.str("Password"), id)
	}

	if peer && has.HardwareInfo {
		d.dissectHardwareInfo(res, id)
	} else if !peer && has.Nonce {
		id.bytes("Nonce", constants.NonceSize)
	}
	decoded := id.finish()
	if has.RSA {
		if decoded {
			id.opaque("Undecoded")
		}
		res.pop()
	}

	if blockEnd > 0 {
		c = newCursor(res, SourceFrame, data, blockEnd, plen, has.StringEncoding)
	} else if !decoded {
		return
	}
	if c.remaining() > 0 {
		if has.ExtraGPUInfo && peer {
			c.opaque("Extra GPU info")
		}
		c.opaque("Data")
	}
}

// remember caches a credential read by id. Nothing is cached after a
// failed read.
func remember(convo *session.Conversation, kind session.Identity, value string, id *cursor) {
	if !id.ok() {
		return
	}
	convo.SetIdentity(kind, value)
}

func (d *Dissector) dissectHardwareInfo(res *Result, c *cursor) {
	res.add("Client info", c.src, c.pos(), constants.HardwareInfoSize, nil)
	res.push()
	defer res.pop()

	c.u8("Locale ID")
	c.fixedStr("Locale", 3)
	c.u16("Total RAM (MB)")
	c.bytes("Unknown", 6)
	c.fixedStr("CPU", 9)
	c.bytes("Unknown", 2)
	c.u16("CPU clock (MHz)")
	c.u16("CPU clock 2 (MHz)")
	c.bytes("Unknown", 4)
	c.fixedStr("GPU", 9)
	c.u16("Video RAM (MB)")
	c.u16("Horizontal resolution")
	c.u16("Vertical resolution")
	c.u8("Refresh rate")
}
