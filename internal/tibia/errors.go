package tibia

import (
	"errors"

	"github.com/udisondev/tibiago/internal/crypto"
)

// ErrFrameMismatch means the envelope's declared length disagrees with the
// message size; the message is not Tibia and is skipped.
var ErrFrameMismatch = errors.New("declared length does not match message length")

// Conditions reported as annotations on a Result. None of them abort the
// analysis; each message is its own unit of failure.
var (
	ErrChecksumInvalid             = errors.New("bad checksum")
	ErrKeyNotYetEstablished        = errors.New("XTEA key not established yet")
	ErrDeclaredLengthExceedsBuffer = errors.New("payload length exceeds remaining data")
	ErrUnknownOpcode               = errors.New("unknown command")
	ErrMalformed                   = errors.New("malformed packet")

	ErrNoKeyAvailable     = crypto.ErrNoKeyAvailable
	ErrCiphertextTooShort = crypto.ErrCiphertextTooShort
	ErrInvalidPadding     = crypto.ErrInvalidPadding
	ErrDecryptFailed      = crypto.ErrDecryptFailed
	ErrNotBlockAligned    = crypto.ErrNotBlockAligned
)
