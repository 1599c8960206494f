package document

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Status tags the outcome of a verification.
type Status string

const (
	// StatusVerified means the signature checked out against a key
	// resolved through the trust store.
	StatusVerified Status = "Verified"
	// StatusSelfSigned means the verifier is the signer and the signature
	// checked out against its own key.
	StatusSelfSigned Status = "SelfSigned"
	// StatusUnverified means the signature could not be evaluated, most
	// commonly because the public key hash did not resolve.
	StatusUnverified Status = "Unverified"
	// StatusInvalid means the document failed cryptographic checks: hash
	// mismatch, bad signature, or policy rejection.
	StatusInvalid Status = "Invalid"
)

// VerificationResult is the tagged outcome of Verify. Cryptographic
// failure is a result, not an error: callers distinguish "invalid" from
// "unknown signer, could not evaluate" and decide policy.
type VerificationResult struct {
	Valid     bool   `json:"valid"`
	SignerID  string `json:"signer_id,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Err converts a non-valid result into a tagged error; nil for valid
// results. This is the strict, fail-closed view.
func (r *VerificationResult) Err() error {
	if r.Valid {
		return nil
	}
	if r.Status == StatusUnverified {
		return jacserr.SignerUnknown(r.SignerID)
	}
	return jacserr.ValidationError(r.Reason)
}

// Verify checks the document's primary signature slot.
func (e *Engine) Verify(doc Document) *VerificationResult {
	return e.VerifyField(doc, SignatureField)
}

// VerifyStrict is Verify with Unverified and Invalid upgraded to errors.
func (e *Engine) VerifyStrict(doc Document) error {
	return e.Verify(doc).Err()
}

// VerifyField checks the signature in the named outer slot:
// recorded hash, embedded attachment hashes, signature date policy, key
// resolution through the trust store, and the detached signature itself.
func (e *Engine) VerifyField(doc Document, sigField string) *VerificationResult {
	invalid := func(reason string) *VerificationResult {
		return &VerificationResult{Valid: false, Status: StatusInvalid, Reason: reason}
	}

	recomputed, err := canonical.HashDocument(doc, hashOmit()...)
	if err != nil {
		return invalid("failed to canonicalize document: " + err.Error())
	}
	if recorded := doc.Sha256(); recorded != recomputed {
		return invalid(fmt.Sprintf("hash mismatch: expected %q, got %q", prefix(recorded), prefix(recomputed)))
	}

	if err := e.verifyEmbeddedFiles(doc); err != nil {
		return invalid(err.Error())
	}

	sig, err := doc.SignatureAt(sigField)
	if err != nil {
		return invalid(err.Error())
	}
	result := e.verifySignatureRecord(doc, sig, func() (string, error) {
		return canonical.HashFields(doc, sig.Fields)
	})
	return result
}

// verifySignatureRecord applies the shared signature checks: date policy,
// key resolution, algorithm match, and the primitive itself. digestFn
// supplies the hash input the signer covered.
func (e *Engine) verifySignatureRecord(doc Document, sig *Signature, digestFn func() (string, error)) *VerificationResult {
	invalid := func(reason string) *VerificationResult {
		return &VerificationResult{Valid: false, SignerID: sig.AgentID, Algorithm: sig.SigningAlgorithm, Status: StatusInvalid, Reason: reason}
	}

	signedAt, err := time.Parse(time.RFC3339, sig.Date)
	if err != nil {
		return invalid("unparseable signature date: " + sig.Date)
	}
	now := e.now()
	if signedAt.After(now.Add(maxFutureSkew)) {
		return invalid(fmt.Sprintf("signature date %s is more than %s in the future", sig.Date, maxFutureSkew))
	}
	if e.MaxSignatureAge > 0 && now.Sub(signedAt) > e.MaxSignatureAge {
		return invalid(fmt.Sprintf("signature dated %s exceeds the maximum age of %s", sig.Date, e.MaxSignatureAge))
	}

	pub, algorithm, resolveErr := e.resolveKey(sig.PublicKeyHash)
	if resolveErr != nil {
		return &VerificationResult{
			Valid:     false,
			SignerID:  sig.AgentID,
			Algorithm: sig.SigningAlgorithm,
			Status:    StatusUnverified,
			Reason:    "unknown public key hash " + sig.PublicKeyHash,
		}
	}
	if algorithm != sig.SigningAlgorithm {
		return invalid(fmt.Sprintf("algorithm mismatch: signature claims %q, trust store records %q", sig.SigningAlgorithm, algorithm))
	}

	digest, err := digestFn()
	if err != nil {
		return invalid("failed to canonicalize signed fields: " + err.Error())
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return invalid("signature is not valid Base64")
	}
	signer, err := e.Registry.Get(sig.SigningAlgorithm)
	if err != nil {
		return invalid(err.Error())
	}
	if err := signer.Verify(pub, []byte(digest), sigBytes); err != nil {
		return invalid("signature verification failed: " + err.Error())
	}

	status := StatusVerified
	if e.Identity != nil && sig.AgentID == e.Identity.AgentID {
		status = StatusSelfSigned
	}
	return &VerificationResult{
		Valid:     true,
		SignerID:  sig.AgentID,
		Algorithm: sig.SigningAlgorithm,
		Status:    status,
	}
}

// VerifyDetachedSignature checks a signature record against the hash of
// the fields it recorded, computed over doc as given. Callers reconstruct
// doc to the state the signer saw (the agreement engine replays the
// signature append sequence this way).
func (e *Engine) VerifyDetachedSignature(doc Document, sig *Signature) *VerificationResult {
	return e.verifySignatureRecord(doc, sig, func() (string, error) {
		return canonical.HashFields(doc, sig.Fields)
	})
}

// resolveKey follows the lookup order: exact match in the trust store,
// then the engine's own key.
func (e *Engine) resolveKey(publicKeyHash string) ([]byte, string, error) {
	if e.Trust != nil {
		if pub, algorithm, err := e.Trust.ResolveKey(publicKeyHash); err == nil {
			return pub, algorithm, nil
		}
	}
	if e.Identity != nil && publicKeyHash == e.Identity.PublicKeyHash {
		return e.Identity.PublicKey, e.Identity.Algorithm, nil
	}
	return nil, "", jacserr.SignerUnknown(publicKeyHash)
}

func prefix(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
