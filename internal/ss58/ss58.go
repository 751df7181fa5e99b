// Package ss58 encodes and decodes 32-byte account ids in the SS58 address
// format used by Substrate chains.
package ss58

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const DefaultPrefix uint16 = 42

var checksumPrefix = []byte("SS58PRE")

// AccountID is the raw public identity of an account or contract.
type AccountID [32]byte

// Hex returns the 0x-prefixed hex form of the id.
func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Encode renders the account id with the given network prefix.
func Encode(id AccountID, prefix uint16) (string, error) {
	head, err := prefixBytes(prefix)
	if err != nil {
		return "", err
	}
	payload := append(head, id[:]...)
	sum, err := checksum(payload)
	if err != nil {
		return "", err
	}
	return base58.Encode(append(payload, sum[:2]...)), nil
}

// MustEncode is Encode for prefixes known to be valid.
func MustEncode(id AccountID, prefix uint16) string {
	out, err := Encode(id, prefix)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode parses an SS58 address and returns the account id and its prefix.
func Decode(address string) (AccountID, uint16, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil {
		return AccountID{}, 0, fmt.Errorf("invalid ss58 address: %w", err)
	}
	if len(raw) < 3 {
		return AccountID{}, 0, fmt.Errorf("invalid ss58 address: too short")
	}

	var prefix uint16
	headLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		headLen = 2
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return AccountID{}, 0, fmt.Errorf("invalid ss58 address: reserved prefix byte %d", raw[0])
	}

	if len(raw) != headLen+32+2 {
		return AccountID{}, 0, fmt.Errorf("invalid ss58 address: unexpected length %d", len(raw))
	}
	payload := raw[:headLen+32]
	sum, err := checksum(payload)
	if err != nil {
		return AccountID{}, 0, err
	}
	if !bytes.Equal(sum[:2], raw[headLen+32:]) {
		return AccountID{}, 0, fmt.Errorf("invalid ss58 address: checksum mismatch")
	}

	var id AccountID
	copy(id[:], payload[headLen:])
	return id, prefix, nil
}

// ParseAccount accepts either an SS58 address or a 0x-prefixed 32-byte hex id.
func ParseAccount(input string) (AccountID, error) {
	clean := strings.TrimSpace(input)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		buf, err := hex.DecodeString(clean[2:])
		if err != nil {
			return AccountID{}, fmt.Errorf("invalid account hex: %w", err)
		}
		if len(buf) != 32 {
			return AccountID{}, fmt.Errorf("invalid account hex: expected 32 bytes, got %d", len(buf))
		}
		var id AccountID
		copy(id[:], buf)
		return id, nil
	}
	id, _, err := Decode(clean)
	return id, err
}

func prefixBytes(prefix uint16) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix < 16384:
		first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte((prefix&0b0000_0000_0000_0011)<<6)
		return []byte{first, second}, nil
	default:
		return nil, fmt.Errorf("ss58 prefix %d out of range", prefix)
	}
}

func checksum(payload []byte) ([]byte, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write(checksumPrefix)
	h.Write(payload)
	return h.Sum(nil), nil
}
