package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/mlkem"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// ML-KEM-768 sizes per NIST FIPS 203. The private key is the 64-byte seed
// the decapsulation key is derived from.
const (
	MLKEM768EncapsKeySize  = 1184
	MLKEM768SeedSize       = 64
	MLKEM768CiphertextSize = 1088

	kemNonceLen = 12
	kemKeyLen   = 32
)

// kemHKDFInfo is the HKDF-SHA256 info string binding derived AEAD keys to
// this protocol.
var kemHKDFInfo = []byte("JACS-PQ2025-AEAD")

// SealedPayload is the result of Seal: an ML-KEM-768 ciphertext carrying
// the encapsulated key, the AEAD nonce, and the AES-256-GCM ciphertext.
type SealedPayload struct {
	KEMCiphertext []byte
	Nonce         []byte
	Ciphertext    []byte
}

// GenerateKEMKeys produces an ML-KEM-768 keypair, returned as
// (private seed, encapsulation key bytes).
func GenerateKEMKeys() ([]byte, []byte, error) {
	dk, err := mlkem.GenerateKey768()
	if err != nil {
		return nil, nil, jacserr.KeyGenerationFailed("ML-KEM-768", err)
	}
	return dk.Bytes(), dk.EncapsulationKey().Bytes(), nil
}

// Seal encrypts plaintext to the recipient's ML-KEM-768 encapsulation key.
// The shared secret is expanded with HKDF-SHA256 into an AES-256-GCM key;
// aad is bound into the AEAD.
func Seal(recipientPub, aad, plaintext []byte) (*SealedPayload, error) {
	if len(recipientPub) != MLKEM768EncapsKeySize {
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid encapsulation key length for ML-KEM-768: expected %d bytes, got %d", MLKEM768EncapsKeySize, len(recipientPub)))
	}
	ek, err := mlkem.NewEncapsulationKey768(recipientPub)
	if err != nil {
		return nil, jacserr.ValidationError(fmt.Sprintf("ML-KEM-768 encapsulation key rejected: %v", err))
	}
	sharedSecret, kemCT := ek.Encapsulate()

	aeadKey, err := deriveKEMKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	aead, err := newKEMAEAD(aeadKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, kemNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return &SealedPayload{
		KEMCiphertext: kemCT,
		Nonce:         nonce,
		Ciphertext:    aead.Seal(nil, nonce, plaintext, aad),
	}, nil
}

// Open decapsulates and decrypts a sealed payload with the recipient's
// private seed.
func Open(recipientPriv []byte, payload *SealedPayload, aad []byte) ([]byte, error) {
	if len(recipientPriv) != MLKEM768SeedSize {
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid decapsulation seed length for ML-KEM-768: expected %d bytes, got %d", MLKEM768SeedSize, len(recipientPriv)))
	}
	if len(payload.KEMCiphertext) != MLKEM768CiphertextSize {
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid KEM ciphertext length for ML-KEM-768: expected %d bytes, got %d", MLKEM768CiphertextSize, len(payload.KEMCiphertext)))
	}
	if len(payload.Nonce) != kemNonceLen {
		return nil, jacserr.ValidationError(fmt.Sprintf("invalid AEAD nonce length: expected %d bytes, got %d", kemNonceLen, len(payload.Nonce)))
	}
	dk, err := mlkem.NewDecapsulationKey768(recipientPriv)
	if err != nil {
		return nil, jacserr.KeyDecryptionFailed("ML-KEM-768 decapsulation key rejected", err)
	}
	sharedSecret, err := dk.Decapsulate(payload.KEMCiphertext)
	if err != nil {
		return nil, jacserr.KeyDecryptionFailed("ML-KEM-768 decapsulation failed", err)
	}
	aeadKey, err := deriveKEMKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	aead, err := newKEMAEAD(aeadKey)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, payload.Nonce, payload.Ciphertext, aad)
	if err != nil {
		return nil, jacserr.KeyDecryptionFailed("AES-GCM decryption failed (wrong key or corrupted data)", err)
	}
	return plaintext, nil
}

func deriveKEMKey(sharedSecret []byte) ([]byte, error) {
	key := make([]byte, kemKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, nil, kemHKDFInfo), key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return key, nil
}

func newKEMAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
