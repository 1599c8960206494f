package agent

import (
	"encoding/base64"
	"os"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/trust"
)

// TrustAgent verifies a foreign agent document's self-signature and, on
// success, records its public key and full JSON in the local trust store.
// Returns the trusted agent's jacsId.
//
// The key mapping is tamper-evident by content addressing: the embedded
// public key must hash to the signature's recorded publicKeyHash before
// anything is stored.
func (a *Agent) TrustAgent(agentJSON []byte) (string, error) {
	doc, err := document.Parse(agentJSON)
	if err != nil {
		return "", err
	}
	if doc.Type() != "agent" {
		return "", jacserr.DocumentMalformed(document.FieldType, "not an agent document")
	}
	agentID := doc.ID()
	if agentID == "" {
		return "", jacserr.DocumentMalformed(document.FieldID, "missing jacsId")
	}
	sig, err := doc.SignatureAt(document.SignatureField)
	if err != nil {
		return "", err
	}
	if sig.AgentID != agentID {
		return "", jacserr.DocumentMalformed("jacsSignature.agentID", "agent document is not self-signed")
	}

	pubB64, _ := doc["jacsPublicKey"].(string)
	if pubB64 == "" {
		return "", jacserr.DocumentMalformed("jacsPublicKey", "agent document carries no public key")
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return "", jacserr.DocumentMalformed("jacsPublicKey", "not valid Base64")
	}
	if got := crypt.PublicKeyHash(pub); got != sig.PublicKeyHash {
		return "", jacserr.DocumentMalformed("jacsPublicKey", "public key does not match the recorded publicKeyHash")
	}

	// Verify the self-signature directly against the embedded key; the
	// trust store cannot resolve it yet.
	digest, err := canonical.HashFields(doc, sig.Fields)
	if err != nil {
		return "", err
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		return "", jacserr.DocumentMalformed("jacsSignature.signature", "not valid Base64")
	}
	signer, err := a.registry.Get(sig.SigningAlgorithm)
	if err != nil {
		return "", err
	}
	if err := signer.Verify(pub, []byte(digest), sigBytes); err != nil {
		return "", err
	}

	if err := a.trust.PutKey(sig.PublicKeyHash, pub, sig.SigningAlgorithm); err != nil {
		return "", err
	}
	name, _ := doc["name"].(string)
	if err := a.trust.AddAgent(agentJSON, trust.TrustedAgent{
		AgentID:       agentID,
		Name:          name,
		PublicKeyHash: sig.PublicKeyHash,
		Algorithm:     sig.SigningAlgorithm,
	}); err != nil {
		return "", err
	}
	return agentID, nil
}

// UntrustAgent removes an agent from the trust store.
func (a *Agent) UntrustAgent(agentID string) error { return a.trust.Remove(agentID) }

// ListTrusted returns the IDs of all trusted agents.
func (a *Agent) ListTrusted() ([]string, error) { return a.trust.List() }

// IsTrusted reports whether an agent is in the trust store.
func (a *Agent) IsTrusted(agentID string) bool { return a.trust.IsTrusted(agentID) }

// TrustedAgentJSON returns the stored JSON for a trusted agent.
func (a *Agent) TrustedAgentJSON(agentID string) ([]byte, error) { return a.trust.GetAgent(agentID) }

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jacserr.FileNotFound(path)
		}
		return nil, jacserr.FileReadFailed(path, err)
	}
	return data, nil
}
