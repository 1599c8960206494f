package crypt

import (
	"testing"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, []string{AlgRSAPSS, AlgDilithium, AlgPQ2025, AlgEd25519}, r.Names())

	_, err := r.Get("no-such-algorithm")
	require.Error(t, err)
}

func TestSigners_SignVerifyTamper(t *testing.T) {
	r := NewRegistry()
	message := []byte("a canonical hash hex string")

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			signer, err := r.Get(name)
			require.NoError(t, err)

			priv, pub, err := signer.Generate()
			require.NoError(t, err)

			sig, err := signer.Sign(priv, message)
			require.NoError(t, err)
			require.NoError(t, signer.Verify(pub, message, sig))

			// Tampered message fails.
			tampered := append([]byte{}, message...)
			tampered[0] ^= 0x01
			require.Error(t, signer.Verify(pub, tampered, sig))

			// Tampered signature fails, never panics.
			badSig := append([]byte{}, sig...)
			badSig[len(badSig)/2] ^= 0x01
			require.Error(t, signer.Verify(pub, message, badSig))

			// Wrong key fails.
			_, otherPub, err := signer.Generate()
			require.NoError(t, err)
			require.Error(t, signer.Verify(otherPub, message, sig))
		})
	}
}

func TestMLDSA87_SizeContracts(t *testing.T) {
	require.Equal(t, 2592, mldsa87.PublicKeySize)
	require.Equal(t, 4896, mldsa87.PrivateKeySize)
	require.Equal(t, 4627, mldsa87.SignatureSize)

	s := &mldsaSigner{}
	priv, pub, err := s.Generate()
	require.NoError(t, err)
	require.Len(t, pub, MLDSA87PublicKeySize)
	require.Len(t, priv, MLDSA87PrivateKeySize)

	sig, err := s.Sign(priv, []byte("msg"))
	require.NoError(t, err)
	require.Len(t, sig, MLDSA87SignatureSize)

	// Length mismatches surface as errors before the primitive runs.
	_, err = s.Sign(priv[:10], []byte("msg"))
	require.Error(t, err)
	require.Error(t, s.Verify(pub[:10], []byte("msg"), sig))
	require.Error(t, s.Verify(pub, []byte("msg"), sig[:10]))
}

func TestEd25519_MalformedInputs(t *testing.T) {
	s := &ed25519Signer{}
	priv, pub, err := s.Generate()
	require.NoError(t, err)

	sig, err := s.Sign(priv, []byte("msg"))
	require.NoError(t, err)

	require.Error(t, s.Verify(pub[:16], []byte("msg"), sig))
	require.Error(t, s.Verify(pub, []byte("msg"), sig[:16]))
	_, err = s.Sign([]byte("not pkcs8"), []byte("msg"))
	require.Error(t, err)
}

func TestPublicKeyHash(t *testing.T) {
	h := PublicKeyHash([]byte("key bytes"))
	require.Len(t, h, 64)
	require.Equal(t, h, PublicKeyHash([]byte("key bytes")))
	require.NotEqual(t, h, PublicKeyHash([]byte("key byteS")))
}
