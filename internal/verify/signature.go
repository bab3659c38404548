package verify

import (
	"fmt"

	"github.com/jedisct1/go-minisign"
)

// MinisignSignature verifies a minisign signature over content. sigData is
// the raw .minisig file content, pubKeyPath the path to the public key file.
func MinisignSignature(content, sigData []byte, pubKeyPath string) error {
	pubKey, err := minisign.NewPublicKeyFromFile(pubKeyPath)
	if err != nil {
		return fmt.Errorf("read minisign pubkey: %w", err)
	}

	sig, err := minisign.DecodeSignature(string(sigData))
	if err != nil {
		return fmt.Errorf("decode minisign signature: %w", err)
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("minisign: verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign: signature verification failed")
	}

	return nil
}
