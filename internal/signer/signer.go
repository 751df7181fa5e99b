package signer

import "github.com/ggonzalez94/contract-cli/internal/ss58"

// Signer signs extrinsic payloads for one account.
type Signer interface {
	AccountID() ss58.AccountID
	PublicKey() []byte
	Sign(payload []byte) ([]byte, error)
}
