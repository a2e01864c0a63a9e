package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// On-disk record layout, big-endian:
//
//	magic "GFV" | version u8 | iterations u32 | saltLen u8 | salt |
//	nonceLen u8 | nonce | ciphertext (AES-256-GCM, tag included)
//
// The header is stored in the clear so Unlock can derive the key before
// touching the ciphertext, and so Status can describe a record without a
// passphrase.
var recordMagic = []byte("GFV")

const (
	recordVersion = 0x01

	// Version 1 records always seal with AES-256-GCM: 12-byte nonce,
	// 16-byte tag appended to the ciphertext.
	gcmNonceSize = 12
	gcmTagSize   = 16

	// headerMin is the smallest parseable record: magic, version,
	// iterations, and the two length bytes.
	headerMin = 3 + 1 + 4 + 1 + 1
)

type record struct {
	version    uint8
	iterations uint32
	salt       []byte
	nonce      []byte
	ciphertext []byte
}

func (r record) encode() []byte {
	buf := make([]byte, 0, headerMin+len(r.salt)+len(r.nonce)+len(r.ciphertext))
	buf = append(buf, recordMagic...)
	buf = append(buf, r.version)
	buf = binary.BigEndian.AppendUint32(buf, r.iterations)
	buf = append(buf, uint8(len(r.salt)))
	buf = append(buf, r.salt...)
	buf = append(buf, uint8(len(r.nonce)))
	buf = append(buf, r.nonce...)
	buf = append(buf, r.ciphertext...)
	return buf
}

func parseRecord(data []byte) (record, error) {
	var rec record
	if len(data) < headerMin {
		return rec, fmt.Errorf("record too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:3], recordMagic) {
		return rec, fmt.Errorf("bad magic %q", data[:3])
	}
	rec.version = data[3]
	if rec.version != recordVersion {
		return rec, fmt.Errorf("unsupported record version %d", rec.version)
	}
	rec.iterations = binary.BigEndian.Uint32(data[4:8])

	rest := data[8:]
	saltLen := int(rest[0])
	rest = rest[1:]
	if saltLen == 0 {
		return rec, fmt.Errorf("record has no salt")
	}
	if len(rest) < saltLen+1 {
		return rec, fmt.Errorf("truncated salt: want %d bytes, have %d", saltLen, len(rest))
	}
	rec.salt = rest[:saltLen]
	rest = rest[saltLen:]

	nonceLen := int(rest[0])
	rest = rest[1:]
	if nonceLen != gcmNonceSize {
		return rec, fmt.Errorf("nonce length %d, version %d records use %d", nonceLen, rec.version, gcmNonceSize)
	}
	if len(rest) < nonceLen {
		return rec, fmt.Errorf("truncated nonce: want %d bytes, have %d", nonceLen, len(rest))
	}
	rec.nonce = rest[:nonceLen]
	rec.ciphertext = rest[nonceLen:]

	if len(rec.ciphertext) < gcmTagSize {
		return rec, fmt.Errorf("ciphertext %d bytes is shorter than the auth tag", len(rec.ciphertext))
	}
	return rec, nil
}
