package checksum

import (
	"errors"
	"fmt"

	"github.com/jedisct1/go-minisign"
)

// ErrSignatureInvalid is returned when a signature does not match the sidecar.
var ErrSignatureInvalid = errors.New("minisign: signature verification failed")

// SignatureVerifier checks minisign signatures against one trusted key.
type SignatureVerifier struct {
	key minisign.PublicKey
}

// NewSignatureVerifier accepts the base64 key line from a minisign.pub file.
func NewSignatureVerifier(publicKey string) (*SignatureVerifier, error) {
	key, err := minisign.NewPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("read minisign pubkey: %w", err)
	}
	return &SignatureVerifier{key: key}, nil
}

// Verify checks that sig, the text of a .minisig file, signs content.
func (v *SignatureVerifier) Verify(content, sig []byte) error {
	signature, err := minisign.DecodeSignature(string(sig))
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}
	valid, err := v.key.Verify(content, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !valid {
		return ErrSignatureInvalid
	}
	return nil
}
