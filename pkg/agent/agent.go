// Package agent implements the agent identity: the self-signed root
// document, its key lifecycle, and the high-level operations an embedder
// calls.
//
// An Agent is a single-owner handle. Embedders sharing one across
// goroutines wrap it in shared ownership plus a mutual-exclusion lock; the
// core offers no internal locking.
package agent

import (
	"encoding/base64"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/agreement"
	"github.com/HumanAssisted/jacs-go/pkg/config"
	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/document"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
	"github.com/HumanAssisted/jacs-go/pkg/schema"
	"github.com/HumanAssisted/jacs-go/pkg/security"
	"github.com/HumanAssisted/jacs-go/pkg/storage"
	"github.com/HumanAssisted/jacs-go/pkg/trust"
)

// Agent owns one signing identity and the engine operating as it.
type Agent struct {
	cfg       *config.Config
	registry  *crypt.Registry
	schemas   *schema.Validator
	trust     trust.Registry
	engine    *document.Engine
	doc       document.Document
	ephemeral bool
	logger    *slog.Logger
}

// Create generates a keypair, builds and self-signs the agent document,
// and persists everything: the encrypted private key, the public key, the
// agent JSON, and the agent's own trust-store entry. password must satisfy
// the vault policy; when empty, JACS_PRIVATE_KEY_PASSWORD applies.
func Create(cfg *config.Config, body map[string]any, password string) (*Agent, error) {
	var err error
	if cfg == nil {
		cfg, err = config.Load("")
		if err != nil {
			return nil, err
		}
	}
	if password == "" {
		password = cfg.PrivateKeyPassword
	}

	a, err := newAgentShell(cfg)
	if err != nil {
		return nil, err
	}
	signer, err := a.registry.Get(cfg.KeyAlgorithm)
	if err != nil {
		return nil, err
	}
	priv, pub, err := signer.Generate()
	if err != nil {
		return nil, err
	}
	encrypted, err := crypt.EncryptPrivateKey(password, priv)
	if err != nil {
		return nil, err
	}

	if err := paths.EnsureDir(cfg.KeyDirectory); err != nil {
		return nil, err
	}
	if err := paths.WriteAtomic(filepath.Join(cfg.KeyDirectory, cfg.PrivateKeyFilename), encrypted); err != nil {
		return nil, err
	}
	if err := paths.WriteAtomic(filepath.Join(cfg.KeyDirectory, cfg.PublicKeyFilename), pub); err != nil {
		return nil, err
	}

	identity := &document.Identity{
		Algorithm:     cfg.KeyAlgorithm,
		PrivateKey:    crypt.NewPrivateKey(priv),
		PublicKey:     pub,
		PublicKeyHash: crypt.PublicKeyHash(pub),
	}
	a.engine = a.newEngine(identity)

	if err := a.buildAgentDocument(body); err != nil {
		return nil, err
	}
	if err := a.recordOwnTrust(); err != nil {
		return nil, err
	}
	if err := a.persistAgentDocument(); err != nil {
		return nil, err
	}

	cfg.AgentIDAndVersion = a.doc.Key()
	jenv.Set(config.EnvAgentIDAndVersion, cfg.AgentIDAndVersion)
	if cfg.UseSecurity {
		if err := security.CheckDataDirectory(cfg.DataDirectory); err != nil {
			return nil, err
		}
	}
	a.logger.Info("agent created", "agentID", a.ID(), "algorithm", identity.Algorithm)
	return a, nil
}

// Ephemeral produces a short-lived agent whose private key exists only in
// memory. Nothing is persisted; the trust store is in-process.
func Ephemeral(algorithm string) (*Agent, error) {
	cfg := config.Default()
	if algorithm != "" {
		cfg.KeyAlgorithm = algorithm
	}
	registry := crypt.NewRegistry()
	schemas, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:       cfg,
		registry:  registry,
		schemas:   schemas,
		trust:     trust.NewMemoryStore(),
		ephemeral: true,
		logger:    slog.Default().With("component", "agent"),
	}
	signer, err := registry.Get(cfg.KeyAlgorithm)
	if err != nil {
		return nil, err
	}
	priv, pub, err := signer.Generate()
	if err != nil {
		return nil, err
	}
	identity := &document.Identity{
		Algorithm:     cfg.KeyAlgorithm,
		PrivateKey:    crypt.NewPrivateKey(priv),
		PublicKey:     pub,
		PublicKeyHash: crypt.PublicKeyHash(pub),
	}
	a.engine = document.NewEngine(schemas, a.trust, registry, identity)
	a.engine.MaxEmbedBytes = cfg.MaxEmbedTotalBytes

	if err := a.buildAgentDocument(nil); err != nil {
		return nil, err
	}
	if err := a.recordOwnTrust(); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadFromConfig restores an agent from its configuration: locates the
// encrypted private key, decrypts it with the configured password, loads
// the agent document, and verifies the self-signature.
func LoadFromConfig(path string) (*Agent, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.AgentIDAndVersion == "" {
		return nil, jacserr.ConfigInvalid(config.EnvAgentIDAndVersion, "no agent is configured")
	}
	parsed, err := ParseAgentID(cfg.AgentIDAndVersion)
	if err != nil {
		return nil, err
	}

	a, err := newAgentShell(cfg)
	if err != nil {
		return nil, err
	}

	privPath := filepath.Join(cfg.KeyDirectory, cfg.PrivateKeyFilename)
	encrypted, err := readFile(privPath)
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKeyPassword == "" {
		return nil, jacserr.ConfigInvalid(config.EnvPrivateKeyPassword, "no private key password configured")
	}
	privKey, err := crypt.DecryptPrivateKey(cfg.PrivateKeyPassword, encrypted)
	if err != nil {
		return nil, err
	}
	pub, err := readFile(filepath.Join(cfg.KeyDirectory, cfg.PublicKeyFilename))
	if err != nil {
		return nil, err
	}

	raw, err := readFile(a.agentDocPath(parsed.ID.String()))
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, err
	}
	sig, err := doc.SignatureAt(document.SignatureField)
	if err != nil {
		return nil, err
	}

	identity := &document.Identity{
		AgentID:       doc.ID(),
		AgentVersion:  doc.Version(),
		Algorithm:     sig.SigningAlgorithm,
		PrivateKey:    privKey,
		PublicKey:     pub,
		PublicKeyHash: crypt.PublicKeyHash(pub),
	}
	a.engine = a.newEngine(identity)
	a.doc = doc

	if err := a.SelfVerify(); err != nil {
		return nil, err
	}
	if cfg.UseSecurity {
		if err := security.CheckDataDirectory(cfg.DataDirectory); err != nil {
			return nil, err
		}
	}
	a.logger.Info("agent loaded", "agentID", a.ID(), "algorithm", identity.Algorithm)
	return a, nil
}

// newAgentShell wires the persistent collaborators shared by Create and
// LoadFromConfig.
func newAgentShell(cfg *config.Config) (*Agent, error) {
	registry := crypt.NewRegistry()
	schemas, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	trustStore, err := trust.NewStore(filepath.Join(cfg.DataDirectory, "trusted_agents"))
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:      cfg,
		registry: registry,
		schemas:  schemas,
		trust:    trustStore,
		logger:   slog.Default().With("component", "agent"),
	}, nil
}

func (a *Agent) newEngine(identity *document.Identity) *document.Engine {
	engine := document.NewEngine(a.schemas, a.trust, a.registry, identity)
	engine.MaxEmbedBytes = a.cfg.MaxEmbedTotalBytes
	if a.cfg.MaxSignatureAgeSeconds > 0 {
		engine.MaxSignatureAge = time.Duration(a.cfg.MaxSignatureAgeSeconds) * time.Second
	}
	if !a.ephemeral {
		docs, err := storage.NewFileStore(filepath.Join(a.cfg.DataDirectory, "documents"))
		if err == nil {
			engine.Docs = docs
		}
	}
	return engine
}

// buildAgentDocument creates and self-signs the agent document. The
// signer's agentID equals the new document's jacsId: this is the only
// document type permitted to self-sign.
func (a *Agent) buildAgentDocument(body map[string]any) error {
	if body == nil {
		body = map[string]any{}
	}
	doc, err := document.Document(body).Clone()
	if err != nil {
		return err
	}
	if _, ok := doc["jacsAgentType"]; !ok {
		doc["jacsAgentType"] = "ai"
	}
	doc["jacsPublicKey"] = base64.StdEncoding.EncodeToString(a.engine.Identity.PublicKey)
	if err := a.schemas.ValidateBody("agent", map[string]any(doc)); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	version := uuid.NewString()
	doc[document.FieldID] = id
	doc[document.FieldVersion] = version
	doc[document.FieldOriginalVersion] = version
	doc[document.FieldVersionDate] = now
	doc[document.FieldOriginalDate] = now
	doc[document.FieldType] = "agent"
	doc[document.FieldLevel] = document.LevelConfig
	doc[document.FieldSchema] = schema.SchemaIDForKind("agent")

	a.engine.Identity.AgentID = id
	a.engine.Identity.AgentVersion = version

	if err := a.engine.SignField(doc, document.SignatureField); err != nil {
		return err
	}
	if err := a.schemas.ValidateDocument("agent", map[string]any(doc)); err != nil {
		return err
	}
	a.doc = doc
	return nil
}

// recordOwnTrust writes the agent's public key and document into its own
// trust store on first use.
func (a *Agent) recordOwnTrust() error {
	identity := a.engine.Identity
	if err := a.trust.PutKey(identity.PublicKeyHash, identity.PublicKey, identity.Algorithm); err != nil {
		return err
	}
	raw, err := a.doc.Bytes()
	if err != nil {
		return err
	}
	name, _ := a.doc["name"].(string)
	return a.trust.AddAgent(raw, trust.TrustedAgent{
		AgentID:       a.ID(),
		Name:          name,
		PublicKeyHash: identity.PublicKeyHash,
		Algorithm:     identity.Algorithm,
	})
}

func (a *Agent) persistAgentDocument() error {
	agentsDir := filepath.Join(a.cfg.DataDirectory, "agents")
	if err := paths.EnsureDir(agentsDir); err != nil {
		return err
	}
	raw, err := a.doc.Bytes()
	if err != nil {
		return err
	}
	if err := paths.WriteAtomic(a.agentDocPath(a.ID()), raw); err != nil {
		return err
	}
	return a.engine.Save(a.doc)
}

func (a *Agent) agentDocPath(agentID string) string {
	return filepath.Join(a.cfg.DataDirectory, "agents", agentID+".json")
}

// ID returns the agent's jacsId.
func (a *Agent) ID() string { return a.doc.ID() }

// Version returns the agent's current jacsVersion.
func (a *Agent) Version() string { return a.doc.Version() }

// Key returns "{jacsId}:{jacsVersion}".
func (a *Agent) Key() string { return a.doc.Key() }

// Document returns the agent's own signed document.
func (a *Agent) Document() document.Document { return a.doc }

// Engine exposes the underlying document engine.
func (a *Agent) Engine() *document.Engine { return a.engine }

// PublicKeyHash returns the content address of the agent's public key.
func (a *Agent) PublicKeyHash() string { return a.engine.Identity.PublicKeyHash }

// Close destroys the in-memory private key material.
func (a *Agent) Close() {
	if a.engine != nil && a.engine.Identity != nil && a.engine.Identity.PrivateKey != nil {
		a.engine.Identity.PrivateKey.Destroy()
	}
}

// SelfVerify checks the agent's own signature: the recorded publicKeyHash
// must match the loaded public key, and the signature must verify.
func (a *Agent) SelfVerify() error {
	if a.doc == nil {
		return jacserr.AgentNotLoaded()
	}
	sig, err := a.doc.SignatureAt(document.SignatureField)
	if err != nil {
		return err
	}
	if sig.AgentID != a.doc.ID() {
		return jacserr.DocumentMalformed("jacsSignature.agentID", "agent document is not self-signed")
	}
	if sig.PublicKeyHash != a.engine.Identity.PublicKeyHash {
		return jacserr.SignatureInvalid(sig.PublicKeyHash, a.engine.Identity.PublicKeyHash)
	}
	result := a.engine.Verify(a.doc)
	if !result.Valid {
		return result.Err()
	}
	return nil
}

// CreateDocument validates, builds, and signs a document of the given kind.
func (a *Agent) CreateDocument(body map[string]any, kind string, opts *document.CreateOptions) (document.Document, error) {
	return a.engine.Create(body, kind, opts)
}

// UpdateDocument produces and signs a new version of an existing document.
func (a *Agent) UpdateDocument(old document.Document, newBody map[string]any) (document.Document, error) {
	return a.engine.Update(old, newBody)
}

// VerifyDocument checks a document's hash and primary signature.
func (a *Agent) VerifyDocument(doc document.Document) *document.VerificationResult {
	return a.engine.Verify(doc)
}

// SignMessage wraps a payload in a message document and signs it.
func (a *Agent) SignMessage(content any, to ...string) (document.Document, error) {
	body := map[string]any{
		"content": content,
		"from":    a.ID(),
	}
	if len(to) > 0 {
		recipients := make([]any, len(to))
		for i, r := range to {
			recipients[i] = r
		}
		body["to"] = recipients
	}
	return a.engine.Create(body, "message", &document.CreateOptions{Level: document.LevelRaw})
}

// SignRegistration adds the agent's signature to the jacsRegistration slot
// of a document. The registration never covers the other signature slots,
// so the primary signature stays valid.
func (a *Agent) SignRegistration(doc document.Document) (document.Document, error) {
	next, err := doc.Clone()
	if err != nil {
		return nil, err
	}
	if err := a.engine.SignField(next, document.RegistrationField); err != nil {
		return nil, err
	}
	if err := a.engine.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// CreateAgreement initialises a multi-party agreement on the stored
// document addressed by key.
func (a *Agent) CreateAgreement(key string, agentIDs []string, question, context string, opts *agreement.Options) (document.Document, error) {
	doc, err := a.engine.LoadDocument(key)
	if err != nil {
		return nil, err
	}
	return agreement.Create(a.engine, doc, agentIDs, question, context, opts)
}

// CreateAgreementOn is CreateAgreement over an in-memory document.
func (a *Agent) CreateAgreementOn(doc document.Document, agentIDs []string, question, context string, opts *agreement.Options) (document.Document, error) {
	return agreement.Create(a.engine, doc, agentIDs, question, context, opts)
}

// SignAgreement adds this agent's signature to the agreement on the stored
// document addressed by key. field defaults to jacsAgreement.
func (a *Agent) SignAgreement(key, field string) (document.Document, error) {
	doc, err := a.engine.LoadDocument(key)
	if err != nil {
		return nil, err
	}
	return agreement.Sign(a.engine, doc, field)
}

// SignAgreementOn is SignAgreement over an in-memory document.
func (a *Agent) SignAgreementOn(doc document.Document, field string) (document.Document, error) {
	return agreement.Sign(a.engine, doc, field)
}

// CheckAgreement verifies the agreement on the stored document addressed
// by key and reports per-agent status.
func (a *Agent) CheckAgreement(key, field string) (*agreement.Status, error) {
	doc, err := a.engine.LoadDocument(key)
	if err != nil {
		return nil, err
	}
	return agreement.Check(a.engine, doc, field)
}

// CheckAgreementOn is CheckAgreement over an in-memory document.
func (a *Agent) CheckAgreementOn(doc document.Document, field string) (*agreement.Status, error) {
	return agreement.Check(a.engine, doc, field)
}
