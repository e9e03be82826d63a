package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"custodial-wallet/internal/core/domain"

	"github.com/oklog/ulid/v2"
)

// API key secret format: sk_live_<32 hex>.
const (
	apiKeySecretPrefix = "sk_live_"
	apiKeySecretBytes  = 16
	apiKeyDisplayLen   = 12
)

// newReference returns "<prefix>_<ulid>" in lowercase. ULIDs sort by creation
// time, so references do too.
func newReference(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}

var walletNumberMax = new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.WalletNumberLength), nil)

// newWalletNumber returns a uniformly random, zero-padded 12-digit number.
func newWalletNumber() (string, error) {
	n, err := rand.Int(rand.Reader, walletNumberMax)
	if err != nil {
		return "", fmt.Errorf("generate wallet number: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.WalletNumberLength, n), nil
}

// newAPIKeySecret returns a fresh plaintext key and its display prefix.
func newAPIKeySecret() (secret, displayPrefix string, err error) {
	b := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	secret = apiKeySecretPrefix + hex.EncodeToString(b)
	return secret, secret[:apiKeyDisplayLen], nil
}
