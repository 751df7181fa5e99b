package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/ggonzalez94/contract-cli/internal/ss58"
)

const (
	EnvPrivateKey           = "CONTRACT_PRIVATE_KEY"
	EnvPrivateKeyFile       = "CONTRACT_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "CONTRACT_KEYSTORE_PATH"
	EnvKeystorePassword     = "CONTRACT_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "CONTRACT_KEYSTORE_PASSWORD_FILE"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultPrivateKeyRelativePath = "contract/key.hex"
	defaultPrivateKeyHintPath     = "~/.config/contract/key.hex"

	// Payloads longer than this are hashed before signing.
	maxUnhashedPayload = 256
)

// LocalSigner holds a secp256k1 key in memory. The account id is the
// blake2b-256 hash of the compressed public key.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	publicKey  []byte
	account    ss58.AccountID
}

func (s *LocalSigner) AccountID() ss58.AccountID {
	return s.account
}

func (s *LocalSigner) PublicKey() []byte {
	return append([]byte(nil), s.publicKey...)
}

// Sign returns a 65-byte recoverable signature over the blake2b-256 hash of
// the payload.
func (s *LocalSigner) Sign(payload []byte) ([]byte, error) {
	if s == nil || s.privateKey == nil {
		return nil, errors.New("local signer is not initialized")
	}
	if len(payload) > maxUnhashedPayload {
		sum := blake2b.Sum256(payload)
		payload = sum[:]
	}
	digest := blake2b.Sum256(payload)
	return crypto.Sign(digest[:], s.privateKey)
}

// Options selects the signing key. SURI wins over every other input, then
// PrivateKey, then the key source.
type Options struct {
	SURI       string
	Source     string
	PrivateKey string
}

func Load(opts Options) (*LocalSigner, error) {
	if strings.TrimSpace(opts.SURI) != "" {
		return FromSURI(opts.SURI)
	}
	return NewLocalSignerFromInputs(opts.Source, opts.PrivateKey)
}

func NewLocalSignerFromInputs(source, privateKeyOverride string) (*LocalSigner, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	privateKeyHex := strings.TrimSpace(os.Getenv(EnvPrivateKey))
	privateKeyFile := strings.TrimSpace(os.Getenv(EnvPrivateKeyFile))
	keystorePath := strings.TrimSpace(os.Getenv(EnvKeystorePath))
	keystorePassword := strings.TrimSpace(os.Getenv(EnvKeystorePassword))
	keystorePasswordFile := strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile))
	if privateKeyFile == "" {
		privateKeyFile = discoverDefaultPrivateKeyFile()
	}

	switch source {
	case KeySourceAuto:
	case KeySourceEnv:
		privateKeyFile = ""
		keystorePath = ""
	case KeySourceFile:
		privateKeyHex = ""
		keystorePath = ""
	case KeySourceKeystore:
		privateKeyHex = ""
		privateKeyFile = ""
	default:
		return nil, fmt.Errorf("unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore)
	}
	if strings.TrimSpace(privateKeyOverride) != "" {
		privateKeyHex = strings.TrimSpace(privateKeyOverride)
		privateKeyFile = ""
		keystorePath = ""
	}

	return NewLocalSigner(LocalSignerConfig{
		PrivateKeyHex:        privateKeyHex,
		PrivateKeyFile:       privateKeyFile,
		KeystorePath:         keystorePath,
		KeystorePassword:     keystorePassword,
		KeystorePasswordFile: keystorePasswordFile,
	})
}

type LocalSignerConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

func NewLocalSigner(cfg LocalSignerConfig) (*LocalSigner, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	return fromPrivateKey(pk), nil
}

func fromPrivateKey(pk *ecdsa.PrivateKey) *LocalSigner {
	pub := crypto.CompressPubkey(&pk.PublicKey)
	return &LocalSigner{privateKey: pk, publicKey: pub, account: blake2b.Sum256(pub)}
}

func loadPrivateKey(cfg LocalSignerConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, fmt.Errorf("read keystore password file: %w", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, fmt.Errorf("keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	return nil, fmt.Errorf("missing signing key: pass --suri or --private-key, set %s, or write a hex key to %s", EnvPrivateKey, defaultPrivateKeyHintPath)
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}

func defaultPrivateKeyPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, defaultPrivateKeyRelativePath)
}

func discoverDefaultPrivateKeyFile() string {
	path := defaultPrivateKeyPath()
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
