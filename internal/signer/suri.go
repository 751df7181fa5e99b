package signer

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
)

// DevPhrase is the well-known mnemonic behind the //Alice, //Bob, ... dev
// accounts.
const DevPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

var hardDerivationTag = []byte("Secp256k1HDKD")

// FromSURI derives a key from a secret URI: a mnemonic or 0x-prefixed seed,
// followed by hard junctions ("//Alice") and an optional "///password".
// An empty phrase stands for DevPhrase.
func FromSURI(suri string) (*LocalSigner, error) {
	phrase, junctions, password, err := parseSURI(suri)
	if err != nil {
		return nil, err
	}

	var seed [32]byte
	if strings.HasPrefix(phrase, "0x") {
		buf, err := hex.DecodeString(phrase[2:])
		if err != nil || len(buf) != 32 {
			return nil, fmt.Errorf("invalid secret seed: expected 32 hex bytes")
		}
		copy(seed[:], buf)
	} else {
		entropy, err := bip39.EntropyFromMnemonic(phrase)
		if err != nil {
			return nil, fmt.Errorf("invalid secret phrase: %w", err)
		}
		mini := pbkdf2.Key(entropy, []byte("mnemonic"+password), 2048, 64, sha512.New)
		copy(seed[:], mini[:32])
	}

	for _, j := range junctions {
		seed = deriveHard(seed, chainCode(j))
	}

	pk, err := crypto.ToECDSA(seed[:])
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return fromPrivateKey(pk), nil
}

func parseSURI(suri string) (phrase string, junctions []string, password string, err error) {
	s := strings.TrimSpace(suri)
	if i := strings.Index(s, "///"); i >= 0 {
		password = s[i+3:]
		s = s[:i]
	}
	path := ""
	if i := strings.Index(s, "/"); i >= 0 {
		phrase, path = strings.TrimSpace(s[:i]), s[i:]
	} else {
		phrase = strings.TrimSpace(s)
	}
	if phrase == "" {
		phrase = DevPhrase
	}
	for path != "" {
		if !strings.HasPrefix(path, "//") {
			return "", nil, "", fmt.Errorf("soft derivation is not supported for ecdsa keys: %q", suri)
		}
		path = path[2:]
		end := strings.Index(path, "/")
		if end < 0 {
			end = len(path)
		}
		if end == 0 {
			return "", nil, "", fmt.Errorf("empty derivation junction in %q", suri)
		}
		junctions = append(junctions, path[:end])
		path = path[end:]
	}
	return phrase, junctions, password, nil
}

// chainCode encodes a junction: numbers as little-endian u64, anything else
// as a length-prefixed string. Encodings longer than 32 bytes are hashed.
func chainCode(junction string) [32]byte {
	var encoded []byte
	if n, err := strconv.ParseUint(junction, 10, 64); err == nil {
		encoded = binary.LittleEndian.AppendUint64(nil, n)
	} else {
		encoded = append(compactLength(len(junction)), junction...)
	}
	var cc [32]byte
	if len(encoded) > 32 {
		return blake2b.Sum256(encoded)
	}
	copy(cc[:], encoded)
	return cc
}

func deriveHard(seed, cc [32]byte) [32]byte {
	buf := append(compactLength(len(hardDerivationTag)), hardDerivationTag...)
	buf = append(buf, seed[:]...)
	buf = append(buf, cc[:]...)
	return blake2b.Sum256(buf)
}

// compactLength is the SCALE compact encoding of a length.
func compactLength(n int) []byte {
	switch {
	case n < 1<<6:
		return []byte{byte(n << 2)}
	case n < 1<<14:
		return binary.LittleEndian.AppendUint16(nil, uint16(n<<2|0b01))
	default:
		return binary.LittleEndian.AppendUint32(nil, uint32(n<<2|0b10))
	}
}
