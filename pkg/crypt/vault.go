package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"unicode"

	"golang.org/x/crypto/pbkdf2"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Private keys at rest are a flat concatenation salt||nonce||ciphertext+tag.
// No magic number, no version byte: the KDF and AEAD are fixed by contract.
const (
	vaultSaltLen       = 16
	vaultNonceLen      = 12
	vaultKeyLen        = 32
	vaultTagLen        = 16
	vaultKDFIterations = 100_000
)

// EncryptPrivateKey seals private-key bytes under a password using
// PBKDF2-HMAC-SHA256 and AES-256-GCM. The password policy is enforced here,
// on the write path only.
func EncryptPrivateKey(password string, privateKey []byte) ([]byte, error) {
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	salt := make([]byte, vaultSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, vaultNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := newVaultAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, vaultSaltLen+vaultNonceLen+len(privateKey)+vaultTagLen)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, privateKey, nil)
	return out, nil
}

// DecryptPrivateKey opens a sealed private key. No password policy applies
// on the read path. The result is wrapped so the caller cannot leak raw
// bytes accidentally.
func DecryptPrivateKey(password string, encrypted []byte) (*PrivateKey, error) {
	if len(encrypted) < vaultSaltLen+vaultNonceLen+vaultTagLen {
		return nil, jacserr.KeyDecryptionFailed("encrypted key file too short", nil)
	}
	salt := encrypted[:vaultSaltLen]
	nonce := encrypted[vaultSaltLen : vaultSaltLen+vaultNonceLen]
	ciphertext := encrypted[vaultSaltLen+vaultNonceLen:]

	aead, err := newVaultAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, jacserr.KeyDecryptionFailed("wrong password or corrupted key file", err)
	}
	return NewPrivateKey(plaintext), nil
}

func newVaultAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, vaultKDFIterations, vaultKeyLen, sha256.New)
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

// CheckPasswordPolicy enforces the policy for new vaults: at least 8
// characters drawing from at least three of lowercase, uppercase, digit,
// and symbol.
func CheckPasswordPolicy(password string) error {
	if len(password) < 8 {
		return jacserr.ValidationError("password must be at least 8 characters")
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	classes := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return jacserr.ValidationError("password must use at least three of: lowercase, uppercase, digits, symbols")
	}
	return nil
}
