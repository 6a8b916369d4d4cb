package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
)

// OrderSubaccount maps (payer, orderID) to the 32-byte subaccount that
// collects funds for that order: a big-endian CRC32 of the SHA-224 digest of
// a domain-separated payload, followed by the digest itself. Deterministic,
// so the collection address is recomputed on demand and never stored.
func OrderSubaccount(payer Principal, orderID uint64) [32]byte {
	h := sha256.New224()
	h.Write([]byte{0x0A})
	h.Write([]byte("payid"))

	var id [8]byte
	binary.BigEndian.PutUint64(id[:], orderID)
	h.Write(id[:])
	h.Write(payer)

	sum := h.Sum(nil)

	var out [32]byte
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(sum))
	copy(out[4:], sum)
	return out
}

// AccountID derives the legacy ledger account identifier for an owner and
// optional subaccount. A nil subaccount means the default (all-zero) one.
func AccountID(owner Principal, sub *[32]byte) [32]byte {
	var subaccount [32]byte
	if sub != nil {
		subaccount = *sub
	}

	h := sha256.New224()
	h.Write([]byte("\x0Aaccount-id"))
	h.Write(owner)
	h.Write(subaccount[:])
	sum := h.Sum(nil)

	var out [32]byte
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(sum))
	copy(out[4:], sum)
	return out
}
