package crypt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// ed25519Signer implements the ring-Ed25519 algorithm: Ed25519 with the
// private key carried as PKCS#8 DER and the public key as the raw 32 bytes.
type ed25519Signer struct{}

func (s *ed25519Signer) Name() string { return AlgEd25519 }

func (s *ed25519Signer) Generate() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgEd25519, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgEd25519, err)
	}
	return privDER, []byte(pub), nil
}

func (s *ed25519Signer) Sign(priv, message []byte) ([]byte, error) {
	key, err := parseEd25519PKCS8(priv)
	if err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	return ed25519.Sign(key, message), nil
}

func (s *ed25519Signer) Verify(pub, message, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return jacserr.ValidationError(fmt.Sprintf("invalid Ed25519 public key length: expected %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}
	if len(sig) != ed25519.SignatureSize {
		return jacserr.ValidationError(fmt.Sprintf("invalid Ed25519 signature length: expected %d bytes, got %d", ed25519.SignatureSize, len(sig)))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return jacserr.SignatureInvalid("valid Ed25519 signature", "verification failed")
	}
	return nil
}

func parseEd25519PKCS8(data []byte) (ed25519.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("Ed25519 key parsing failed (invalid PKCS#8 format or corrupted key): %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not Ed25519", parsed)
	}
	return key, nil
}
