package crypt

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

const rsaKeyBits = 4096

// rsaPSSSigner implements RSA-PSS over SHA-256 with 4096-bit keys. Keys are
// serialized as PEM: PKCS#8 for the private key, PKIX/SPKI for the public.
type rsaPSSSigner struct{}

func (s *rsaPSSSigner) Name() string { return AlgRSAPSS }

func (s *rsaPSSSigner) Generate() ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgRSAPSS, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgRSAPSS, err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgRSAPSS, err)
	}
	priv := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return priv, pub, nil
}

func (s *rsaPSSSigner) Sign(priv, message []byte) ([]byte, error) {
	key, err := parseRSAPrivatePEM(priv)
	if err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	return sig, nil
}

func (s *rsaPSSSigner) Verify(pub, message, sig []byte) error {
	key, err := parseRSAPublicPEM(pub)
	if err != nil {
		return jacserr.ValidationError(fmt.Sprintf("RSA-PSS public key rejected: %v", err))
	}
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], sig, nil); err != nil {
		return jacserr.SignatureInvalid("valid RSA-PSS signature", "verification failed")
	}
	return nil
}

func parseRSAPrivatePEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid PKCS#8 private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", parsed)
	}
	return key, nil
}

func parseRSAPublicPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid SPKI public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", parsed)
	}
	return key, nil
}
