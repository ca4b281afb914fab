package crypto

import (
	"encoding/binary"
	"hash/adler32"

	"github.com/udisondev/tibiago/internal/constants"
)

// ChecksumStatus is the outcome of checksum verification.
type ChecksumStatus int

const (
	ChecksumAbsent ChecksumStatus = iota // pre-8.30 packet, no checksum field
	ChecksumValid
	ChecksumInvalid
)

func (s ChecksumStatus) String() string {
	switch s {
	case ChecksumAbsent:
		return "absent"
	case ChecksumValid:
		return "good"
	case ChecksumInvalid:
		return "bad"
	default:
		return "unknown"
	}
}

// Present reports whether the envelope carries a checksum field.
func (s ChecksumStatus) Present() bool {
	return s != ChecksumAbsent
}

const checksumEnd = constants.PacketHeaderSize + constants.PacketChecksumSize

// VerifyChecksum checks the Adler-32 checksum of an envelope.
// The checksum covers everything after the checksum field and is stored
// little-endian right after the length prefix. Presence is inferred: a
// mismatch means "no checksum field" unless required is set (the flow's
// protocol version is known to carry checksums), in which case it is a
// bad checksum. The computed value is returned for display.
func VerifyChecksum(buf []byte, required bool) (ChecksumStatus, uint32) {
	if len(buf) < checksumEnd {
		if required {
			return ChecksumInvalid, 0
		}
		return ChecksumAbsent, 0
	}

	computed := adler32.Checksum(buf[checksumEnd:])
	stored := binary.LittleEndian.Uint32(buf[constants.PacketHeaderSize:])
	switch {
	case computed == stored:
		return ChecksumValid, computed
	case required:
		return ChecksumInvalid, computed
	default:
		return ChecksumAbsent, computed
	}
}

// PutChecksum computes the checksum of buf[6:] and stores it at buf[2:6].
// buf must be at least 6 bytes long.
func PutChecksum(buf []byte) {
	binary.LittleEndian.PutUint32(buf[constants.PacketHeaderSize:], adler32.Checksum(buf[checksumEnd:]))
}
