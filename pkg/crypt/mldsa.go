package crypt

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Known sizes for ML-DSA-87 (FIPS 204). Inputs are checked against these
// before the primitive runs.
const (
	MLDSA87PublicKeySize  = mldsa87.PublicKeySize  // 2592
	MLDSA87PrivateKeySize = mldsa87.PrivateKeySize // 4896
	MLDSA87SignatureSize  = mldsa87.SignatureSize  // 4627
)

// mldsaSigner implements the pq2025 algorithm: ML-DSA-87 per FIPS 204 with
// an empty signing context.
type mldsaSigner struct{}

func (s *mldsaSigner) Name() string { return AlgPQ2025 }

func (s *mldsaSigner) Generate() ([]byte, []byte, error) {
	pk, sk, err := mldsa87.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgPQ2025, err)
	}
	priv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgPQ2025, err)
	}
	pub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed(AlgPQ2025, err)
	}
	return priv, pub, nil
}

func (s *mldsaSigner) Sign(priv, message []byte) ([]byte, error) {
	if len(priv) != MLDSA87PrivateKeySize {
		return nil, jacserr.SigningFailed(fmt.Errorf("invalid private key length for ML-DSA-87: expected %d bytes, got %d", MLDSA87PrivateKeySize, len(priv)))
	}
	var sk mldsa87.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	sig := make([]byte, MLDSA87SignatureSize)
	if err := mldsa87.SignTo(&sk, message, nil, false, sig); err != nil {
		return nil, jacserr.SigningFailed(err)
	}
	return sig, nil
}

func (s *mldsaSigner) Verify(pub, message, sig []byte) error {
	if len(pub) != MLDSA87PublicKeySize {
		return jacserr.ValidationError(fmt.Sprintf("invalid public key length for ML-DSA-87: expected %d bytes, got %d", MLDSA87PublicKeySize, len(pub)))
	}
	if len(sig) != MLDSA87SignatureSize {
		return jacserr.ValidationError(fmt.Sprintf("invalid signature length for ML-DSA-87: expected %d bytes, got %d", MLDSA87SignatureSize, len(sig)))
	}
	var pk mldsa87.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return jacserr.ValidationError(fmt.Sprintf("ML-DSA-87 public key rejected: %v", err))
	}
	if !mldsa87.Verify(&pk, message, nil, sig) {
		return jacserr.SignatureInvalid("valid ML-DSA-87 signature", "verification failed")
	}
	return nil
}
