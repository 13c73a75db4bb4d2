package keeper

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Credentials hold the sender account. The key never leaves this struct except
// inside a signed transaction.
type Credentials struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// NewCredentials derives the sender address from key. If expected is non-zero
// it must match the derived address.
func NewCredentials(key *ecdsa.PrivateKey, expected common.Address) (Credentials, error) {
	if key == nil {
		return Credentials{}, errors.New("private key is required")
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	if expected != (common.Address{}) && expected != addr {
		return Credentials{}, fmt.Errorf("account address %s does not match private key address %s", expected, addr)
	}
	return Credentials{Address: addr, key: key}, nil
}

// ParsePrivateKey accepts a hex key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// the underlying error may echo key material
		return nil, errors.New("invalid private key")
	}
	return key, nil
}

// String only reveals the address.
func (c Credentials) String() string {
	return c.Address.Hex()
}
