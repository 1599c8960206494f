// Package jacserr defines the tagged error values shared across the module.
//
// Errors with a failure class are a *Error carrying a Kind tag plus whatever
// context the kind calls for. Some I/O and serialization helpers (for
// example paths.EnsureDir, paths.WriteAtomic, canonical.Canonicalize and
// config.Save) return plain wrapped errors instead; KindOf reports the empty
// Kind for those. Callers branch on the tag
// with KindOf or errors.As; messages are written for humans and include the
// remediation step where one exists. Private key material never appears in
// a message.
package jacserr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an Error.
type Kind string

const (
	KindConfigNotFound      Kind = "ConfigNotFound"
	KindConfigInvalid       Kind = "ConfigInvalid"
	KindKeyNotFound         Kind = "KeyNotFound"
	KindKeyDecryptionFailed Kind = "KeyDecryptionFailed"
	KindKeyGenerationFailed Kind = "KeyGenerationFailed"
	KindSigningFailed       Kind = "SigningFailed"
	KindSignatureInvalid    Kind = "SignatureInvalid"
	KindHashMismatch        Kind = "HashMismatch"
	KindDocumentMalformed   Kind = "DocumentMalformed"
	KindSignerUnknown       Kind = "SignerUnknown"
	KindFileNotFound        Kind = "FileNotFound"
	KindFileReadFailed      Kind = "FileReadFailed"
	KindAgentNotTrusted     Kind = "AgentNotTrusted"
	KindAgentNotLoaded      Kind = "AgentNotLoaded"
	KindValidationError     Kind = "ValidationError"
	KindUnauthorized        Kind = "Unauthorized"
	KindAlreadySigned       Kind = "AlreadySigned"
	KindExpired             Kind = "Expired"
	KindInternal            Kind = "Internal"
)

// Error is the tagged error type used throughout jacs-go.
type Error struct {
	Kind      Kind
	Path      string
	Field     string
	Reason    string
	Algorithm string
	AgentID   string
	Expected  string
	Got       string
	cause     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfigNotFound:
		return fmt.Sprintf("configuration not found at %q: create an agent first or point JACS at an existing jacs.config.json", e.Path)
	case KindConfigInvalid:
		return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Reason)
	case KindKeyNotFound:
		return fmt.Sprintf("key file not found at %q: ensure keys were generated during agent creation", e.Path)
	case KindKeyDecryptionFailed:
		return fmt.Sprintf("failed to decrypt private key: %s", e.Reason)
	case KindKeyGenerationFailed:
		return fmt.Sprintf("failed to generate %s keypair: %s", e.Algorithm, e.Reason)
	case KindSigningFailed:
		return fmt.Sprintf("signing failed: %s", e.Reason)
	case KindSignatureInvalid:
		return fmt.Sprintf("invalid signature: expected %q, got %q", prefix(e.Expected), prefix(e.Got))
	case KindHashMismatch:
		return fmt.Sprintf("hash mismatch, document may have been tampered with: expected %q, got %q", prefix(e.Expected), prefix(e.Got))
	case KindDocumentMalformed:
		return fmt.Sprintf("malformed document: field %q: %s", e.Field, e.Reason)
	case KindSignerUnknown:
		return fmt.Sprintf("unknown signer %q: add them to your trust store with TrustAgent", e.AgentID)
	case KindFileNotFound:
		return fmt.Sprintf("file not found at %q", e.Path)
	case KindFileReadFailed:
		return fmt.Sprintf("failed to read %q: %s", e.Path, e.Reason)
	case KindAgentNotTrusted:
		return fmt.Sprintf("agent %q is not in the trust store", e.AgentID)
	case KindAgentNotLoaded:
		return "no agent is loaded: call Create, Ephemeral or LoadFromConfig first"
	case KindValidationError:
		return fmt.Sprintf("validation error: %s", e.Reason)
	case KindUnauthorized:
		return fmt.Sprintf("agent %q is not a listed party on this agreement", e.AgentID)
	case KindAlreadySigned:
		return fmt.Sprintf("agent %q has already signed this agreement", e.AgentID)
	case KindExpired:
		return fmt.Sprintf("agreement deadline has passed: %s", e.Reason)
	default:
		return e.Reason
	}
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) Kind {
	var je *Error
	if errors.As(err, &je) {
		return je.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

func prefix(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

func ConfigNotFound(path string) *Error { return &Error{Kind: KindConfigNotFound, Path: path} }

func ConfigInvalid(field, reason string) *Error {
	return &Error{Kind: KindConfigInvalid, Field: field, Reason: reason}
}

func KeyNotFound(path string) *Error { return &Error{Kind: KindKeyNotFound, Path: path} }

func KeyDecryptionFailed(reason string, cause error) *Error {
	return &Error{Kind: KindKeyDecryptionFailed, Reason: reason, cause: cause}
}

func KeyGenerationFailed(algorithm string, cause error) *Error {
	return &Error{Kind: KindKeyGenerationFailed, Algorithm: algorithm, Reason: causeText(cause), cause: cause}
}

func SigningFailed(cause error) *Error {
	return &Error{Kind: KindSigningFailed, Reason: causeText(cause), cause: cause}
}

func SignatureInvalid(expected, got string) *Error {
	return &Error{Kind: KindSignatureInvalid, Expected: expected, Got: got}
}

func HashMismatch(expected, got string) *Error {
	return &Error{Kind: KindHashMismatch, Expected: expected, Got: got}
}

func DocumentMalformed(field, reason string) *Error {
	return &Error{Kind: KindDocumentMalformed, Field: field, Reason: reason}
}

func SignerUnknown(agentID string) *Error {
	return &Error{Kind: KindSignerUnknown, AgentID: agentID}
}

func FileNotFound(path string) *Error { return &Error{Kind: KindFileNotFound, Path: path} }

func FileReadFailed(path string, cause error) *Error {
	return &Error{Kind: KindFileReadFailed, Path: path, Reason: causeText(cause), cause: cause}
}

func AgentNotTrusted(agentID string) *Error {
	return &Error{Kind: KindAgentNotTrusted, AgentID: agentID}
}

func AgentNotLoaded() *Error { return &Error{Kind: KindAgentNotLoaded} }

func ValidationError(reason string) *Error {
	return &Error{Kind: KindValidationError, Reason: reason}
}

func Unauthorized(agentID string) *Error {
	return &Error{Kind: KindUnauthorized, AgentID: agentID}
}

func AlreadySigned(agentID string) *Error {
	return &Error{Kind: KindAlreadySigned, AgentID: agentID}
}

func Expired(reason string) *Error { return &Error{Kind: KindExpired, Reason: reason} }

func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Reason: fmt.Sprintf(format, args...)}
}

func causeText(err error) string {
	if err == nil {
		return "unknown cause"
	}
	return err.Error()
}
