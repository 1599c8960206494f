package crypt

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Registered algorithm labels. Labels are stable wire values and appear in
// Signature records as signingAlgorithm.
const (
	AlgRSAPSS    = "RSA-PSS"      // RSA 4096, PSS padding, SHA-256
	AlgEd25519   = "ring-Ed25519" // Ed25519, PKCS#8-encoded private key
	AlgDilithium = "pq-dilithium" // Dilithium5 detached signatures (legacy)
	AlgPQ2025    = "pq2025"       // ML-DSA-87 per FIPS 204
)

// Signer is one registered signature algorithm. Implementations validate
// key and signature lengths against the algorithm's known sizes before
// touching the primitive, so malformed input surfaces as an error rather
// than a panic.
type Signer interface {
	// Name returns the stable algorithm label.
	Name() string
	// Generate produces a fresh keypair as (private, public) bytes in the
	// algorithm's serialized form.
	Generate() (priv, pub []byte, err error)
	// Sign produces detached signature bytes over message.
	Sign(priv, message []byte) ([]byte, error)
	// Verify checks a detached signature. nil means the signature is valid;
	// length mismatches, malformed key material, and bad signatures are all
	// reported as errors.
	Verify(pub, message, sig []byte) error
}

// Registry maps algorithm labels to Signer implementations.
type Registry struct {
	mu      sync.RWMutex
	signers map[string]Signer
}

// NewRegistry returns a registry with all built-in algorithms registered.
func NewRegistry() *Registry {
	r := &Registry{signers: make(map[string]Signer)}
	r.Register(&rsaPSSSigner{})
	r.Register(&ed25519Signer{})
	r.Register(&dilithiumSigner{})
	r.Register(&mldsaSigner{})
	return r
}

// Register adds or replaces a signer under its label.
func (r *Registry) Register(s Signer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signers[s.Name()] = s
}

// Get resolves an algorithm label.
func (r *Registry) Get(name string) (Signer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signers[name]
	if !ok {
		return nil, jacserr.ValidationError("unknown signing algorithm " + name)
	}
	return s, nil
}

// Names lists the registered algorithm labels, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.signers))
	for name := range r.signers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublicKeyHash returns the lowercase hex SHA-256 over public-key bytes.
// This is the content address used by the trust store.
func PublicKeyHash(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}
