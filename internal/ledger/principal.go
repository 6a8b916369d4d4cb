package ledger

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"
)

// Principal is the raw bytes of an Internet Computer identity. The textual
// form is a big-endian CRC32 of the raw bytes followed by the bytes
// themselves, base32-encoded lowercase without padding and grouped in fives
// with dashes.
type Principal []byte

var principalEnc = base32.StdEncoding.WithPadding(base32.NoPadding)

func DecodePrincipal(text string) (Principal, error) {
	compact := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), "-", ""))
	if compact == "" {
		return nil, errors.New("empty principal")
	}
	b, err := principalEnc.DecodeString(compact)
	if err != nil {
		return nil, err
	}
	if len(b) < 4 {
		return nil, errors.New("principal too short")
	}
	sum := binary.BigEndian.Uint32(b[:4])
	raw := b[4:]
	if crc32.ChecksumIEEE(raw) != sum {
		return nil, errors.New("principal checksum mismatch")
	}
	return Principal(raw), nil
}

func (p Principal) String() string {
	buf := make([]byte, 4+len(p))
	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(p))
	copy(buf[4:], p)
	s := strings.ToLower(principalEnc.EncodeToString(buf))

	var out strings.Builder
	for i, r := range s {
		if i > 0 && i%5 == 0 {
			out.WriteByte('-')
		}
		out.WriteRune(r)
	}
	return out.String()
}

func (p Principal) Empty() bool {
	return len(p) == 0
}

func (p Principal) Equal(other Principal) bool {
	return string(p) == string(other)
}
