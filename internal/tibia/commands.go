package tibia

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/session"
)

// Login server commands.
const (
	LoginServerError      = 0x0A
	LoginServerErrorNew   = 0x0B
	LoginServerMOTD       = 0x14
	LoginServerSessionKey = 0x28
	LoginServerCharList   = 0x64
)

// Game server commands.
const (
	GameServerLoginError     = 0x14
	GameServerLoginInfo      = 0x15
	GameServerTooManyPlayers = 0x16
	GameServerPing           = 0x1E
	GameServerNonce          = 0x1F
)

// Client commands.
const (
	ClientGetCharList = 0x01
	ClientLoginChar   = 0x0A
	ClientLogout      = 0x14
	ClientPong        = 0x1E
)

// command describes one opcode. A nil body means the command carries no
// arguments.
type command struct {
	name string
	body func(d *Dissector, convo *session.Conversation, c *cursor)
}

type commandTable map[uint8]command

var loginServerCommands = commandTable{
	LoginServerError:      {name: "Error", body: stringBody("Error message")},
	LoginServerErrorNew:   {name: "Error", body: stringBody("Error message")},
	LoginServerMOTD:       {name: "Message of the day", body: stringBody("Message of the day")},
	LoginServerSessionKey: {name: "Session key", body: stringBody("Session key")},
	LoginServerCharList:   {name: "Character list", body: (*Dissector).charList},
}

var gameServerCommands = commandTable{
	GameServerLoginError:     {name: "Error", body: stringBody("Error message")},
	GameServerLoginInfo:      {name: "Info", body: stringBody("Info message")},
	GameServerTooManyPlayers: {name: "Too many players", body: stringBody("Info message")},
	GameServerPing:           {name: "Ping"},
	GameServerNonce: {name: "Nonce", body: func(_ *Dissector, _ *session.Conversation, c *cursor) {
		c.bytes("Nonce", constants.NonceSize)
	}},
}

var clientCommands = commandTable{
	ClientLogout: {name: "Logout", body: undecodedBody},
	ClientPong:   {name: "Pong"},
}

// clientCommandNames labels the first byte of client messages, including
// the authentication requests that are decoded separately.
var clientCommandNames = map[uint8]string{
	ClientGetCharList: "Character list request",
	ClientLoginChar:   "Character login",
	ClientLogout:      "Logout",
	ClientPong:        "Pong",
}

func stringBody(name string) func(*Dissector, *session.Conversation, *cursor) {
	return func(_ *Dissector, _ *session.Conversation, c *cursor) {
		c.str(name)
	}
}

// undecodedBody keeps whatever follows a named but undecoded command.
func undecodedBody(_ *Dissector, _ *session.Conversation, c *cursor) {
	c.opaque("Data")
}

func commandLabel(name string, op uint8) string {
	return fmt.Sprintf("%s (0x%02x)", name, op)
}

// dissectCommands walks the commands in buf[off:end]. An unknown opcode
// ends the walk; the rest of the range is kept undecoded.
func (d *Dissector) dissectCommands(res *Result, convo *session.Conversation, table commandTable, buf []byte, off, end int, src Source) {
	has, _ := convo.Traits()
	c := newCursor(res, src, buf, off, end, has.StringEncoding)

	var names []string
	for c.ok() && c.remaining() > 0 {
		at := c.pos()
		op := c.u8("Command")
		cmd, known := table[op]
		if !known {
			res.Fields[len(res.Fields)-1].Value = commandLabel("Unknown", op)
			res.annotate(ErrUnknownOpcode, src, at, "Unknown command 0x%02x", op)
			names = append(names, commandLabel("Unknown", op))
			res.push()
			c.opaque("Data")
			res.pop()
			break
		}
		res.Fields[len(res.Fields)-1].Value = commandLabel(cmd.name, op)
		names = append(names, cmd.name)
		if cmd.body != nil {
			res.push()
			cmd.body(d, convo, c)
			res.pop()
		}
	}
	c.finish()

	if len(names) > 0 {
		res.Info += " commands: " + strings.Join(names, ", ")
	}
}

// charList decodes the login server's character list and registers every
// game server it names.
func (d *Dissector) charList(convo *session.Conversation, c *cursor) {
	has, _ := convo.Traits()

	if has.WorldListInCharList {
		worlds := c.u8("World count")
		for i := 0; i < int(worlds) && c.ok(); i++ {
			c.u8("World ID")
			c.res.push()
			c.str("World name")
			host := c.str("IP address")
			port := c.u16("Port")
			c.flag("Preview state")
			c.res.pop()
			if !c.ok() {
				break
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				slog.Debug("world address not an IP", "host", host, "error", err)
				continue
			}
			d.registerGameServer(convo, netip.AddrPortFrom(addr, port))
		}

		chars := c.u8("Character count")
		for i := 0; i < int(chars) && c.ok(); i++ {
			c.u8("World ID")
			c.res.push()
			c.str("Character name")
			c.res.pop()
		}
		return
	}

	chars := c.u8("Character count")
	for i := 0; i < int(chars) && c.ok(); i++ {
		c.str("Character name")
		c.res.push()
		c.str("World")
		ip := c.ipv4("IP address")
		port := c.u16("Port")
		c.res.pop()
		if c.ok() {
			d.registerGameServer(convo, netip.AddrPortFrom(ip, port))
		}
	}
	c.u16("Premium days")
}

func (d *Dissector) registerGameServer(convo *session.Conversation, addr netip.AddrPort) {
	has, _ := convo.Traits()
	if !has.RSA {
		return
	}
	if d.servers.Register(addr, convo.PrivateKey()) {
		slog.Debug("game server registered", "addr", addr, "login_server", convo.Server)
	}
}
