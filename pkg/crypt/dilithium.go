package crypt

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode5"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// dilithiumSigner implements the legacy pq-dilithium algorithm using
// Dilithium5 detached signatures.
type dilithiumSigner struct{}

func (s *dilithiumSigner) Name() string { return AlgDilithium }

func (s *dilithiumSigner) Generate() ([]byte, []byte, error) {
	pk, sk, err := mode5.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgDilithium, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgDilithium, err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgDilithium, err)
	}
	return priv, pub, nil
}

func (s *dilithiumSigner) Sign(priv, message []byte) ([]byte, error) {
	if len(priv) != mode5.PrivateKeySize {
		return nil, jacserr.SigningFailed(fmt.Errorf("invalid private key length for Dilithium5: expected %d bytes, got %d", mode5.PrivateKeySize, len(priv)))
	}
	var sk mode5.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	sig := make([]byte, mode5.SignatureSize)
	mode5.SignTo(&sk, message, sig)
	return sig, nil
}

func (s *dilithiumSigner) Verify(pub, message, sig []byte) error {
	if len(pub) != mode5.PublicKeySize {
		return jacserr.ValidationError(fmt.Sprintf("invalid public key length for Dilithium5: expected %d bytes, got %d", mode5.PublicKeySize, len(pub)))
	}
	if len(sig) != mode5.SignatureSize {
		return jacserr.ValidationError(fmt.Sprintf("invalid signature length for Dilithium5: expected %d bytes, got %d", mode5.SignatureSize, len(sig)))
	}
	var pk mode5.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return jacserr.ValidationError(fmt.Sprintf("Dilithium5 public key rejected: %v", err))
	}
	if !mode5.Verify(&pk, message, sig) {
		return jacserr.SignatureInvalid("valid Dilithium5 signature", "verification failed")
	}
	return nil
}
