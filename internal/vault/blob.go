package vault

import (
	"encoding/binary"
	"fmt"
)

// #region layout
// On-disk layout, all integers big-endian:
//
//	magic(4) | version(1) | kdf(1) | iterations(4) | salt_len(1) | nonce_len(1) | salt | nonce | ciphertext||tag
//
// The fixed 12-byte header is authenticated as GCM additional data.
const (
	magic           = "NFV1"
	formatVersion   = byte(1)
	kdfPBKDF2SHA256 = byte(1)
	headerLength    = 4 + 1 + 1 + 4 + 1 + 1
	tagLength       = 16
)

// #endregion layout

// #region blob
// blob is the parsed form of a credential file.
type blob struct {
	iterations uint32
	salt       []byte
	nonce      []byte
	ciphertext []byte // includes the GCM tag
}

// header serializes the fixed-width prefix.
func (b blob) header() []byte {
	h := make([]byte, headerLength)
	copy(h[0:4], magic)
	h[4] = formatVersion
	h[5] = kdfPBKDF2SHA256
	binary.BigEndian.PutUint32(h[6:10], b.iterations)
	h[10] = byte(len(b.salt))
	h[11] = byte(len(b.nonce))
	return h
}

// marshal returns the complete file contents.
func (b blob) marshal() []byte {
	out := make([]byte, 0, headerLength+len(b.salt)+len(b.nonce)+len(b.ciphertext))
	out = append(out, b.header()...)
	out = append(out, b.salt...)
	out = append(out, b.nonce...)
	out = append(out, b.ciphertext...)
	return out
}

// parseBlob validates structure only; authenticity is checked on decrypt.
// Every structural failure is ErrCorrupt.
func parseBlob(data []byte) (blob, error) {
	if len(data) < headerLength {
		return blob{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != magic {
		return blob{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if data[4] != formatVersion {
		return blob{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[4])
	}
	if data[5] != kdfPBKDF2SHA256 {
		return blob{}, fmt.Errorf("%w: unsupported kdf %d", ErrCorrupt, data[5])
	}
	iterations := binary.BigEndian.Uint32(data[6:10])
	if iterations < MinIterations || iterations > MaxIterations {
		return blob{}, fmt.Errorf("%w: iteration count %d out of range", ErrCorrupt, iterations)
	}
	saltLen := int(data[10])
	nonceLen := int(data[11])
	if saltLen < SaltLength {
		return blob{}, fmt.Errorf("%w: salt length %d below %d", ErrCorrupt, saltLen, SaltLength)
	}
	if nonceLen != NonceLength {
		return blob{}, fmt.Errorf("%w: nonce length %d, want %d", ErrCorrupt, nonceLen, NonceLength)
	}
	body := data[headerLength:]
	if len(body) < saltLen+nonceLen+tagLength+1 {
		return blob{}, fmt.Errorf("%w: truncated body (%d bytes)", ErrCorrupt, len(body))
	}
	return blob{
		iterations: iterations,
		salt:       body[:saltLen],
		nonce:      body[saltLen : saltLen+nonceLen],
		ciphertext: body[saltLen+nonceLen:],
	}, nil
}

// #endregion blob
