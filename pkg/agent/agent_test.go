package agent

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/config"
	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
)

const testPassword = "TestP@ss123!#"

func TestEphemeral_SelfSignAndVerify(t *testing.T) {
	a, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.SelfVerify())

	msg, err := a.SignMessage(map[string]any{"hello": "world"})
	require.NoError(t, err)
	result := a.VerifyDocument(msg)
	require.True(t, result.Valid, result.Reason)
	require.Equal(t, a.ID(), result.SignerID)
	require.Equal(t, document.StatusSelfSigned, result.Status)

	// Flip a byte in the embedded payload.
	raw, err := msg.Bytes()
	require.NoError(t, err)
	tampered, err := document.Parse([]byte(strings.Replace(string(raw), "world", "worle", 1)))
	require.NoError(t, err)
	result = a.VerifyDocument(tampered)
	require.False(t, result.Valid)
	require.Contains(t, result.Reason, "hash mismatch")
}

func TestCrossAgentVerification(t *testing.T) {
	a, err := Ephemeral(crypt.AlgRSAPSS)
	require.NoError(t, err)
	defer a.Close()
	b, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer b.Close()

	msg, err := a.SignMessage(map[string]any{"from": "A"})
	require.NoError(t, err)

	// B cannot resolve A's key yet.
	result := b.VerifyDocument(msg)
	require.False(t, result.Valid)
	require.Equal(t, document.StatusUnverified, result.Status)
	require.Contains(t, result.Reason, "unknown public key hash")

	// After trusting A's self-signed document, the same input verifies.
	agentJSON, err := a.Document().Bytes()
	require.NoError(t, err)
	trustedID, err := b.TrustAgent(agentJSON)
	require.NoError(t, err)
	require.Equal(t, a.ID(), trustedID)
	require.True(t, b.IsTrusted(a.ID()))

	result = b.VerifyDocument(msg)
	require.True(t, result.Valid, result.Reason)
	require.Equal(t, document.StatusVerified, result.Status)
}

func TestTrustAgent_TamperedDocumentRejected(t *testing.T) {
	a, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer a.Close()
	b, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer b.Close()

	raw, err := a.Document().Bytes()
	require.NoError(t, err)

	// Tamper with the agent type inside the signed form.
	tampered := strings.Replace(string(raw), `"ai"`, `"hybrid"`, 1)
	_, err = b.TrustAgent([]byte(tampered))
	require.Error(t, err)
	require.False(t, b.IsTrusted(a.ID()))
}

func TestTrustAgent_KeySubstitutionRejected(t *testing.T) {
	a, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer a.Close()
	b, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer b.Close()
	mallory, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer mallory.Close()

	doc, err := a.Document().Clone()
	require.NoError(t, err)
	// Swapping in another public key breaks the content address.
	doc["jacsPublicKey"] = base64.StdEncoding.EncodeToString(mallory.Engine().Identity.PublicKey)
	raw, err := doc.Bytes()
	require.NoError(t, err)

	_, err = b.TrustAgent(raw)
	require.Error(t, err)
}

func TestPQ2025_RoundTrip(t *testing.T) {
	a, err := Ephemeral("pq2025")
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Engine().Identity.PublicKey, crypt.MLDSA87PublicKeySize)

	msg, err := a.SignMessage(map[string]any{"hello": "world"})
	require.NoError(t, err)

	sig, err := msg.SignatureAt(document.SignatureField)
	require.NoError(t, err)
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
	require.NoError(t, err)
	require.Len(t, sigBytes, crypt.MLDSA87SignatureSize)

	result := a.VerifyDocument(msg)
	require.True(t, result.Valid, result.Reason)

	raw, err := msg.Bytes()
	require.NoError(t, err)
	tampered, err := document.Parse([]byte(strings.Replace(string(raw), "world", "wOrld", 1)))
	require.NoError(t, err)
	require.False(t, a.VerifyDocument(tampered).Valid)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDirectory = filepath.Join(dir, "data")
	cfg.KeyDirectory = filepath.Join(dir, "keys")
	cfg.PrivateKeyPassword = testPassword
	return cfg
}

func TestCreateAndLoadFromConfig(t *testing.T) {
	cfg := testConfig(t)
	created, err := Create(cfg, map[string]any{"name": "persistent agent"}, "")
	require.NoError(t, err)
	defer created.Close()
	require.NoError(t, created.SelfVerify())

	cfgPath := filepath.Join(filepath.Dir(cfg.KeyDirectory), "jacs.config.json")
	require.NoError(t, cfg.Save(cfgPath))

	// The password is never written to the config file; supply it through
	// the environment overlay.
	jenv.Set(config.EnvPrivateKeyPassword, testPassword)
	jenv.Set(config.EnvAgentIDAndVersion, created.Key())
	defer jenv.Clear(config.EnvPrivateKeyPassword)
	defer jenv.Clear(config.EnvAgentIDAndVersion)

	loaded, err := LoadFromConfig(cfgPath)
	require.NoError(t, err)
	defer loaded.Close()
	require.Equal(t, created.ID(), loaded.ID())
	require.Equal(t, created.Version(), loaded.Version())

	msg, err := loaded.SignMessage("still works")
	require.NoError(t, err)
	require.True(t, loaded.VerifyDocument(msg).Valid)
}

func TestLoadFromConfig_WrongPassword(t *testing.T) {
	cfg := testConfig(t)
	created, err := Create(cfg, nil, "")
	require.NoError(t, err)
	defer created.Close()

	cfgPath := filepath.Join(filepath.Dir(cfg.KeyDirectory), "jacs.config.json")
	require.NoError(t, cfg.Save(cfgPath))

	jenv.Set(config.EnvPrivateKeyPassword, "AltP@ssw0rd456$")
	jenv.Set(config.EnvAgentIDAndVersion, created.Key())
	defer jenv.Clear(config.EnvPrivateKeyPassword)
	defer jenv.Clear(config.EnvAgentIDAndVersion)

	_, err = LoadFromConfig(cfgPath)
	require.Error(t, err)
}

func TestRotateKeys(t *testing.T) {
	a, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer a.Close()

	oldVersion := a.Version()
	oldHash := a.PublicKeyHash()

	require.NoError(t, a.RotateKeys(testPassword))
	require.NotEqual(t, oldVersion, a.Version())
	require.Equal(t, oldVersion, a.Document()[document.FieldPreviousVersion])
	require.NotEqual(t, oldHash, a.PublicKeyHash())
	require.NoError(t, a.SelfVerify())

	msg, err := a.SignMessage("signed with rotated key")
	require.NoError(t, err)
	require.True(t, a.VerifyDocument(msg).Valid)
}

func TestAgreementThroughAgents(t *testing.T) {
	a, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer a.Close()
	b, err := Ephemeral(crypt.AlgEd25519)
	require.NoError(t, err)
	defer b.Close()

	// Exchange identities first.
	aJSON, err := a.Document().Bytes()
	require.NoError(t, err)
	bJSON, err := b.Document().Bytes()
	require.NoError(t, err)
	_, err = b.TrustAgent(aJSON)
	require.NoError(t, err)
	_, err = a.TrustAgent(bJSON)
	require.NoError(t, err)

	doc, err := a.CreateDocument(map[string]any{"content": "joint statement"}, "message", nil)
	require.NoError(t, err)

	withAgr, err := a.CreateAgreementOn(doc, []string{a.ID(), b.ID()}, "Agreed?", "", nil)
	require.NoError(t, err)
	signedA, err := a.SignAgreementOn(withAgr, "")
	require.NoError(t, err)
	signedBoth, err := b.SignAgreementOn(signedA, "")
	require.NoError(t, err)

	status, err := a.CheckAgreementOn(signedBoth, "")
	require.NoError(t, err)
	require.Equal(t, "Satisfied", string(status.State))
	require.Equal(t, "signed", status.Agents[a.ID()])
	require.Equal(t, "signed", status.Agents[b.ID()])
}
