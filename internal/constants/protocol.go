package constants

// Tibia Protocol Constants
//
// Wire-level sizes and markers shared by the login and game protocols.
// All multi-byte integers on the wire are little-endian unless noted.

// Envelope Constants
const (
	// PacketHeaderSize is the envelope length prefix size (2 bytes, little-endian uint16)
	PacketHeaderSize = 2

	// PacketChecksumSize is the Adler-32 checksum size in bytes
	PacketChecksumSize = 4

	// PayloadLengthSize is the inner payload length field of XTEA-era game packets
	PayloadLengthSize = 2
)

// RSA Constants
const (
	// RSABlockSize is the size of the RSA-1024 encrypted login block
	RSABlockSize = 128

	// RSAPublicExponent is the exponent used by every known client (F4)
	RSAPublicExponent = 65537
)

// XTEA Constants
const (
	// XTEAKeySize is the symmetric session key size in bytes
	XTEAKeySize = 16

	// XTEABlockSize is the XTEA block size in bytes
	XTEABlockSize = 8
)

// Authentication Request Constants
const (
	// FileVersionsSize is the size of the spr/dat/pic version trio in the charlist request
	FileVersionsSize = 12

	// HardwareInfoSize is the size of the client hardware info block (8.41+)
	HardwareInfoSize = 47

	// NonceSize is the size of the game server nonce challenge (8.41+)
	NonceSize = 5

	// ExtraGPUInfoSize is the size of the second RSA block carrying GPU info (10.61+)
	ExtraGPUInfoSize = 222
)

// Legacy classification bounds. Pre-7.61 login requests come in a range
// of sizes (some clients zero-pad), so an exact size match is not possible.
const (
	LegacyVersionMin    = 700
	LegacyVersionMax    = 760
	LegacyPacketSizeMin = 25
	LegacyPacketSizeMax = 54
)

// ClientPortMin is the lowest port assumed to be an ephemeral client port.
const ClientPortMin = 0xC000

// DefaultPorts are the traditional login (7171) and game (7172) server ports.
var DefaultPorts = []uint16{7171, 7172}
