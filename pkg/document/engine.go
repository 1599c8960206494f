package document

import (
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/crypt"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/schema"
	"github.com/HumanAssisted/jacs-go/pkg/storage"
	"github.com/HumanAssisted/jacs-go/pkg/trust"
)

// maxFutureSkew bounds how far in the future a signature date may claim to
// be before verification rejects it.
const maxFutureSkew = 300 * time.Second

// Identity is the signing identity an Engine operates as.
type Identity struct {
	AgentID       string
	AgentVersion  string
	Algorithm     string
	PrivateKey    *crypt.PrivateKey
	PublicKey     []byte
	PublicKeyHash string
}

// Engine builds, signs, updates, and verifies signed documents. It is a
// single-owner handle: embedders sharing one across goroutines must add
// their own mutual exclusion.
type Engine struct {
	Schemas  *schema.Validator
	Trust    trust.Registry
	Registry *crypt.Registry
	Identity *Identity

	// Docs, when set, persists every created and updated document under
	// its placement key.
	Docs storage.Store

	// MaxEmbedBytes caps total embedded attachment content per document.
	MaxEmbedBytes int64

	// MaxSignatureAge rejects signatures older than the limit when > 0.
	MaxSignatureAge time.Duration

	logger *slog.Logger
	clock  func() time.Time
}

// NewEngine wires an engine from its collaborators.
func NewEngine(schemas *schema.Validator, store trust.Registry, registry *crypt.Registry, identity *Identity) *Engine {
	return &Engine{
		Schemas:  schemas,
		Trust:    store,
		Registry: registry,
		Identity: identity,
		logger:   slog.Default().With("component", "document"),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

// CreateOptions adjust document creation.
type CreateOptions struct {
	// Level sets the mutability class; defaults to "artifact".
	Level string
	// Attachments are file paths recorded under jacsFiles.
	Attachments []string
	// Embed inlines attachment content as Base64.
	Embed bool
	// SkipSave keeps the document out of the engine's document store.
	SkipSave bool
}

// Create validates body against the schemas for kind, injects the jacs*
// envelope, attaches files, self-signs, and returns the signed document.
func (e *Engine) Create(body map[string]any, kind string, opts *CreateOptions) (Document, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}
	if err := e.Schemas.ValidateBody(kind, body); err != nil {
		return nil, err
	}

	doc, err := Document(body).Clone()
	if err != nil {
		return nil, err
	}
	now := e.now().Format(time.RFC3339)
	id := uuid.NewString()
	version := uuid.NewString()
	doc[FieldID] = id
	doc[FieldVersion] = version
	doc[FieldOriginalVersion] = version
	doc[FieldVersionDate] = now
	doc[FieldOriginalDate] = now
	doc[FieldType] = kind
	level := opts.Level
	if level == "" {
		level = LevelArtifact
	}
	doc[FieldLevel] = level
	if id := schema.SchemaIDForKind(kind); id != "" {
		doc[FieldSchema] = id
	}

	if len(opts.Attachments) > 0 {
		if err := e.attachFiles(doc, opts.Attachments, opts.Embed); err != nil {
			return nil, err
		}
	}

	if err := e.SignField(doc, SignatureField); err != nil {
		return nil, err
	}
	if err := e.Schemas.ValidateDocument(kind, map[string]any(doc)); err != nil {
		return nil, err
	}
	if err := e.save(doc, opts.SkipSave); err != nil {
		return nil, err
	}
	e.logger.Debug("document created", "key", doc.Key(), "type", kind)
	return doc, nil
}

// Update produces a new version of an artifact- or raw-level document from
// a new body. Config-level documents (agents) use their own path.
func (e *Engine) Update(old Document, newBody map[string]any) (Document, error) {
	level := old.Level()
	if level != LevelArtifact && level != LevelRaw {
		return nil, jacserr.ValidationError("only artifact and raw level documents can be updated; level is " + level)
	}
	kind := old.Type()
	if err := e.Schemas.ValidateBody(kind, newBody); err != nil {
		return nil, err
	}

	doc, err := Document(newBody).Clone()
	if err != nil {
		return nil, err
	}
	doc[FieldID] = old.ID()
	doc[FieldOriginalVersion] = old[FieldOriginalVersion]
	if v, ok := old[FieldOriginalDate]; ok {
		doc[FieldOriginalDate] = v
	}
	doc[FieldPreviousVersion] = old.Version()
	doc[FieldVersion] = uuid.NewString()
	doc[FieldVersionDate] = e.now().Format(time.RFC3339)
	doc[FieldType] = kind
	doc[FieldLevel] = level
	if v, ok := old[FieldSchema]; ok {
		doc[FieldSchema] = v
	}

	if err := e.SignField(doc, SignatureField); err != nil {
		return nil, err
	}
	if err := e.Schemas.ValidateDocument(kind, map[string]any(doc)); err != nil {
		return nil, err
	}
	if err := e.save(doc, false); err != nil {
		return nil, err
	}
	e.logger.Debug("document updated", "key", doc.Key(), "previousVersion", old.Version())
	return doc, nil
}

// SignField signs the document into the named slot and refreshes
// jacsSha256. The hash input omits every outer signature slot so the slots
// never cover each other.
func (e *Engine) SignField(doc Document, sigField string) error {
	sig, err := e.makeSignature(doc, omitFor(sigField))
	if err != nil {
		return err
	}
	doc[sigField] = sig.toValue()
	return e.Reseal(doc)
}

// MakeDetachedSignature produces a signature record over the document with
// the given omit-list without mutating the document. Used by the agreement
// engine, whose signatures live nested inside a document field.
func (e *Engine) MakeDetachedSignature(doc Document, omit []string) (*Signature, error) {
	return e.makeSignature(doc, omit)
}

// Reseal recomputes jacsSha256 over the current document state.
func (e *Engine) Reseal(doc Document) error {
	digest, err := canonical.HashDocument(doc, hashOmit()...)
	if err != nil {
		return err
	}
	doc[FieldSha256] = digest
	return nil
}

func (e *Engine) makeSignature(doc Document, omit []string) (*Signature, error) {
	if e.Identity == nil || e.Identity.PrivateKey == nil || e.Identity.PrivateKey.IsDestroyed() {
		return nil, jacserr.AgentNotLoaded()
	}
	signer, err := e.Registry.Get(e.Identity.Algorithm)
	if err != nil {
		return nil, err
	}
	fields := canonical.SignedFields(doc, omit...)
	digest, err := canonical.HashFields(doc, fields)
	if err != nil {
		return nil, err
	}
	sigBytes, err := signer.Sign(e.Identity.PrivateKey.Bytes(), []byte(digest))
	if err != nil {
		return nil, err
	}
	return &Signature{
		AgentID:          e.Identity.AgentID,
		AgentVersion:     e.Identity.AgentVersion,
		Date:             e.now().Format(time.RFC3339),
		Signature:        base64.StdEncoding.EncodeToString(sigBytes),
		SigningAlgorithm: e.Identity.Algorithm,
		PublicKeyHash:    e.Identity.PublicKeyHash,
		Fields:           fields,
	}, nil
}

// omitFor builds the omit-list for signing into sigField: the slot itself,
// the hash field, and the other outer slots.
func omitFor(sigField string) []string {
	omit := hashOmit()
	for _, f := range omit {
		if f == sigField {
			return omit
		}
	}
	return append(omit, sigField)
}

// Save persists the document under its placement key when the engine has a
// document store.
func (e *Engine) Save(doc Document) error { return e.save(doc, false) }

func (e *Engine) save(doc Document, skip bool) error {
	if e.Docs == nil || skip {
		return nil
	}
	raw, err := doc.Bytes()
	if err != nil {
		return err
	}
	return e.Docs.Put(doc.Key(), raw)
}

// LoadRecent returns the newest stored version of a jacsId, by
// jacsVersionDate.
func (e *Engine) LoadRecent(jacsID string) (Document, error) {
	if e.Docs == nil {
		return nil, jacserr.Internal("engine has no document store")
	}
	keys, err := e.Docs.List()
	if err != nil {
		return nil, err
	}
	var newest Document
	var newestDate string
	for _, key := range keys {
		if !strings.HasPrefix(key, jacsID+":") {
			continue
		}
		doc, err := e.LoadDocument(key)
		if err != nil {
			return nil, err
		}
		date, _ := doc[FieldVersionDate].(string)
		if newest == nil || date > newestDate {
			newest = doc
			newestDate = date
		}
	}
	if newest == nil {
		return nil, jacserr.FileNotFound(jacsID)
	}
	return newest, nil
}

// LoadDocument fetches a document from the engine's store by placement key
// and checks its recorded content hash before returning it.
func (e *Engine) LoadDocument(key string) (Document, error) {
	if e.Docs == nil {
		return nil, jacserr.Internal("engine has no document store")
	}
	raw, err := e.Docs.Get(key)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	recomputed, err := canonical.HashDocument(doc, hashOmit()...)
	if err != nil {
		return nil, err
	}
	if recorded := doc.Sha256(); recorded != recomputed {
		return nil, jacserr.HashMismatch(recorded, recomputed)
	}
	return doc, nil
}
