package vault

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arthurfary/passman/krypto"
)

// Entry file layout:
//
//	0   magic "PMAN"        4
//	4   format version      1
//	5   kdf tag             1
//	6   salt               16
//	22  memory cost (LE)    4
//	26  time cost (LE)      4
//	30  parallelism (LE)    4
//	34  cipher tag          1
//	35  nonce              12
//	47  ciphertext || tag   rest
const (
	Magic = "PMAN"

	// VersionPlain entries bind no associated data.
	VersionPlain byte = 0x01
	// VersionBound entries authenticate the header bytes as associated data.
	VersionBound byte = 0x02

	KDFArgon2id            byte = 0x01
	CipherChaCha20Poly1305 byte = 0x01

	HeaderSize = len(Magic) + 1 + 1 + krypto.SaltSize + 3*4 + 1 + krypto.NonceSize
)

var (
	// ErrFormat covers every structural problem with an entry file.
	ErrFormat = errors.New("invalid entry file format")
	// ErrUnsupportedVersion matches ErrFormat as well.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)
	// ErrEncoding reports decrypted content that is not valid UTF-8.
	ErrEncoding = errors.New("entry content is not valid UTF-8")
)

// Header is the fixed-size prefix of an entry file.
type Header struct {
	Version byte
	KDF     krypto.KDFParams
	Nonce   [krypto.NonceSize]byte
}

// BindsHeader reports whether the header is authenticated as associated data.
func (h Header) BindsHeader() bool {
	return h.Version == VersionBound
}

// MarshalBinary encodes the header in the on-disk layout.
func (h Header) MarshalBinary() ([]byte, error) {
	if !supportedVersion(h.Version) {
		return nil, fmt.Errorf("%w %#x", ErrUnsupportedVersion, h.Version)
	}

	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, Magic...)
	buf = append(buf, h.Version, KDFArgon2id)
	buf = append(buf, h.KDF.Salt[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.MemoryKiB)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.Time)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.Parallelism)
	buf = append(buf, CipherChaCha20Poly1305)
	buf = append(buf, h.Nonce[:]...)
	return buf, nil
}

// ParseHeader validates the header field by field and returns it together with
// the remaining ciphertext||tag. No cryptographic work happens here.
func ParseHeader(data []byte) (Header, []byte, error) {
	var h Header
	r := bytes.NewReader(data)

	var magic [len(Magic)]byte
	if err := readField(r, "magic", magic[:]); err != nil {
		return h, nil, err
	}
	if string(magic[:]) != Magic {
		return h, nil, fmt.Errorf("%w: bad magic %q", ErrFormat, magic[:])
	}

	var tag [1]byte
	if err := readField(r, "version", tag[:]); err != nil {
		return h, nil, err
	}
	if !supportedVersion(tag[0]) {
		return h, nil, fmt.Errorf("%w %#x", ErrUnsupportedVersion, tag[0])
	}
	h.Version = tag[0]

	if err := readField(r, "kdf type", tag[:]); err != nil {
		return h, nil, err
	}
	if tag[0] != KDFArgon2id {
		return h, nil, fmt.Errorf("%w: unsupported kdf type %#x", ErrFormat, tag[0])
	}
	h.KDF.Version = krypto.Argon2Version

	if err := readField(r, "salt", h.KDF.Salt[:]); err != nil {
		return h, nil, err
	}
	for _, f := range []struct {
		name string
		dst  *uint32
	}{
		{"memory cost", &h.KDF.MemoryKiB},
		{"time cost", &h.KDF.Time},
		{"parallelism cost", &h.KDF.Parallelism},
	} {
		var word [4]byte
		if err := readField(r, f.name, word[:]); err != nil {
			return h, nil, err
		}
		*f.dst = binary.LittleEndian.Uint32(word[:])
	}

	if err := readField(r, "cipher type", tag[:]); err != nil {
		return h, nil, err
	}
	if tag[0] != CipherChaCha20Poly1305 {
		return h, nil, fmt.Errorf("%w: unsupported cipher type %#x", ErrFormat, tag[0])
	}

	if err := readField(r, "nonce", h.Nonce[:]); err != nil {
		return h, nil, err
	}

	body := data[HeaderSize:]
	if len(body) < krypto.TagSize {
		return h, nil, fmt.Errorf("%w: truncated ciphertext (%d bytes)", ErrFormat, len(body))
	}
	return h, body, nil
}

func readField(r io.Reader, name string, dst []byte) error {
	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("%w: truncated %s", ErrFormat, name)
	}
	return nil
}

func supportedVersion(v byte) bool {
	return v == VersionPlain || v == VersionBound
}
