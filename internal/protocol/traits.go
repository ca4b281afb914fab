package protocol

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/udisondev/tibiago/internal/constants"
)

// StringEncoding selects how protocol strings are decoded.
type StringEncoding int

const (
	EncodingLatin1 StringEncoding = iota
	EncodingUTF8
)

func (e StringEncoding) String() string {
	switch e {
	case EncodingLatin1:
		return "ISO-8859-1"
	case EncodingUTF8:
		return "UTF-8"
	default:
		return "unknown"
	}
}

// Decode converts raw protocol string bytes to a Go string.
func (e StringEncoding) Decode(b []byte) string {
	if e == EncodingUTF8 {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO-8859-1 maps every byte; unreachable in practice.
		return string(b)
	}
	return string(s)
}

// Traits is the capability set of one protocol version.
// It is produced by TraitsFor and never modified afterwards.
type Traits struct {
	Checksum            bool // Adler-32 after the length prefix
	RSA                 bool
	XTEA                bool
	AccountName         bool // account name instead of account number
	Nonce               bool
	HardwareInfo        bool
	ExtraGPUInfo        bool
	GMByte              bool
	OutfitAddons        bool
	Stamina             bool
	LevelOnMessage      bool
	Ping                bool
	ClientVersion       bool
	GamePreview         bool
	AuthToken           bool
	SessionKey          bool // session key supersedes account name and password
	ContentRevision     bool
	WorldListInCharList bool
	StringEncoding      StringEncoding
}

// Version thresholds. Each one only ever adds capabilities.
const (
	VersionXTEA       = 761 // 7.61 was a test client, 7.70 the first release
	VersionAddons     = 780
	VersionChecksum   = 830
	VersionNonce      = 841
	VersionPing       = 953
	VersionClient     = 980
	VersionWorldList  = 1010
	VersionExtraGPU   = 1061
	VersionContentRev = 1071
	VersionAuthToken  = 1072
	VersionSessionKey = 1074
)

// TraitsFor maps a protocol version to its capability set.
func TraitsFor(version uint16) Traits {
	has := Traits{
		GMByte:         true, // not known when the GM byte first appeared
		StringEncoding: EncodingLatin1,
	}

	if version >= VersionXTEA {
		has.XTEA = true
		has.RSA = true
	}
	if version >= VersionAddons {
		has.OutfitAddons = true
		has.Stamina = true
		has.LevelOnMessage = true
	}
	if version >= VersionChecksum {
		has.Checksum = true
		has.AccountName = true
	}
	if version >= VersionNonce {
		has.HardwareInfo = true
		has.Nonce = true
	}
	if version >= VersionPing {
		has.Ping = true
	}
	if version >= VersionClient {
		has.ClientVersion = true
		has.GamePreview = true
	}
	if version >= VersionWorldList {
		has.WorldListInCharList = true
	}
	if version >= VersionExtraGPU {
		has.ExtraGPUInfo = true
	}
	if version >= VersionContentRev {
		has.ContentRevision = true
	}
	if version >= VersionAuthToken {
		has.AuthToken = true
	}
	if version >= VersionSessionKey {
		has.SessionKey = true
	}

	return has
}

// CharlistRequestSize is the exact envelope size (length prefix included)
// of a charlist request sent by a client with the given traits.
func CharlistRequestSize(has Traits) int {
	size := constants.PacketHeaderSize
	if has.Checksum {
		size += constants.PacketChecksumSize
	}
	size += 17
	if has.ExtraGPUInfo {
		size += constants.ExtraGPUInfoSize
	}
	if has.RSA {
		size += constants.RSABlockSize
	}
	return size
}

// CharLoginRequestSize is the exact envelope size (length prefix included)
// of a character login request sent by a client with the given traits.
func CharLoginRequestSize(has Traits) int {
	size := constants.PacketHeaderSize
	if has.Checksum {
		size += constants.PacketChecksumSize
	}
	size += 5
	if has.ClientVersion {
		size += 4
	}
	if has.ContentRevision {
		size += 2
	}
	if has.GamePreview {
		size++
	}
	if has.RSA {
		size += constants.RSABlockSize
	}
	return size
}
