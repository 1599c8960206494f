// Package document implements the signed-document protocol: building,
// signing, updating, and verifying content-addressable JSON documents.
package document

import (
	"fmt"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Reserved top-level keys.
const (
	FieldID              = "jacsId"
	FieldVersion         = "jacsVersion"
	FieldOriginalVersion = "jacsOriginalVersion"
	FieldPreviousVersion = "jacsPreviousVersion"
	FieldVersionDate     = "jacsVersionDate"
	FieldOriginalDate    = "jacsOriginalDate"
	FieldSha256          = "jacsSha256"
	FieldType            = "jacsType"
	FieldLevel           = "jacsLevel"
	FieldFiles           = "jacsFiles"
	FieldSchema          = "$schema"

	// Signature slots. SignatureField and RegistrationField are outer
	// slots; AgreementField carries the nested multi-party signatures.
	SignatureField    = "jacsSignature"
	RegistrationField = "jacsRegistration"
	AgreementField    = "jacsAgreement"
)

// Mutability classes.
const (
	LevelConfig   = "config"
	LevelArtifact = "artifact"
	LevelRaw      = "raw"
)

// outerSignatureFields are the slots that must never cover each other, so
// appending a second signature cannot retroactively invalidate the first.
var outerSignatureFields = []string{SignatureField, RegistrationField}

// hashOmit returns the top-level omit-list for hashing: every outer
// signature slot plus the hash field itself. The agreement slot stays in,
// nested signatures are hashed as-is.
func hashOmit() []string {
	return append(append([]string{}, outerSignatureFields...), FieldSha256)
}

// Document is a signed document: an ordered mapping of strings to JSON
// values with the reserved jacs* keys. Unknown fields are allowed and
// preserved.
type Document map[string]any

// Parse decodes raw JSON into a Document, preserving number precision.
func Parse(raw []byte) (Document, error) {
	doc, err := canonical.Decode(raw)
	if err != nil {
		return nil, jacserr.DocumentMalformed("document", err.Error())
	}
	return Document(doc), nil
}

// Bytes serializes the document for storage.
func (d Document) Bytes() ([]byte, error) { return canonical.Encode(d) }

// ID returns the stable lifetime identifier.
func (d Document) ID() string { return d.stringField(FieldID) }

// Version returns the version identifier, regenerated on every mutation.
func (d Document) Version() string { return d.stringField(FieldVersion) }

// Key returns the placement key "{jacsId}:{jacsVersion}" addressing this
// exact version.
func (d Document) Key() string {
	return fmt.Sprintf("%s:%s", d.ID(), d.Version())
}

// Type returns the entity kind.
func (d Document) Type() string { return d.stringField(FieldType) }

// Level returns the mutability class.
func (d Document) Level() string { return d.stringField(FieldLevel) }

// Sha256 returns the recorded content hash.
func (d Document) Sha256() string { return d.stringField(FieldSha256) }

// Clone deep-copies the document through its JSON form.
func (d Document) Clone() (Document, error) {
	raw, err := canonical.Encode(d)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func (d Document) stringField(key string) string {
	s, _ := d[key].(string)
	return s
}

// Signature is the detached signature record placed in a signature slot.
type Signature struct {
	AgentID          string   `json:"agentID"`
	AgentVersion     string   `json:"agentVersion"`
	Date             string   `json:"date"`
	Signature        string   `json:"signature"`
	SigningAlgorithm string   `json:"signingAlgorithm"`
	PublicKeyHash    string   `json:"publicKeyHash"`
	Fields           []string `json:"fields"`
}

// toValue renders the record as a document field value.
func (s *Signature) toValue() map[string]any {
	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f
	}
	return map[string]any{
		"agentID":          s.AgentID,
		"agentVersion":     s.AgentVersion,
		"date":             s.Date,
		"signature":        s.Signature,
		"signingAlgorithm": s.SigningAlgorithm,
		"publicKeyHash":    s.PublicKeyHash,
		"fields":           fields,
	}
}

// SignatureAt extracts the signature record in the named slot.
func (d Document) SignatureAt(field string) (*Signature, error) {
	v, ok := d[field]
	if !ok {
		return nil, jacserr.DocumentMalformed(field, "missing signature")
	}
	return signatureFromValue(field, v)
}

func signatureFromValue(field string, v any) (*Signature, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, jacserr.DocumentMalformed(field, "signature is not an object")
	}
	sig := &Signature{}
	for key, dst := range map[string]*string{
		"agentID":          &sig.AgentID,
		"agentVersion":     &sig.AgentVersion,
		"date":             &sig.Date,
		"signature":        &sig.Signature,
		"signingAlgorithm": &sig.SigningAlgorithm,
		"publicKeyHash":    &sig.PublicKeyHash,
	} {
		s, ok := m[key].(string)
		if !ok || s == "" {
			return nil, jacserr.DocumentMalformed(field+"."+key, "missing or invalid")
		}
		*dst = s
	}
	rawFields, ok := m["fields"].([]any)
	if !ok {
		return nil, jacserr.DocumentMalformed(field+".fields", "missing or invalid")
	}
	sig.Fields = make([]string, 0, len(rawFields))
	for _, f := range rawFields {
		s, ok := f.(string)
		if !ok {
			return nil, jacserr.DocumentMalformed(field+".fields", "non-string field name")
		}
		sig.Fields = append(sig.Fields, s)
	}
	return sig, nil
}
