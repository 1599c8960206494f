// Package schema compiles and applies the JSON-Schema (draft-07) corpus
// that every document must satisfy before any cryptographic work happens.
//
// Three schema families compose per entity: the signature/files/agreement
// components, the header envelope for the reserved jacs* fields, and one
// body schema per entity kind. The embedded corpus is compiled once at
// construction; user schemas can be registered at runtime.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
)

//go:embed schemas
var schemaFS embed.FS

// Schema $id URIs, as published by hai.ai.
const (
	HeaderSchemaID     = "https://hai.ai/schemas/header/v1/header.schema.json"
	SignatureSchemaID  = "https://hai.ai/schemas/components/signature/v1/signature.schema.json"
	FilesSchemaID      = "https://hai.ai/schemas/components/files/v1/files.schema.json"
	AgreementComponent = "https://hai.ai/schemas/components/agreement/v1/agreement.schema.json"
)

// entitySchemaIDs maps entity kinds to their body schema $id.
var entitySchemaIDs = map[string]string{
	"agent":      "https://hai.ai/schemas/agent/v1/agent.schema.json",
	"message":    "https://hai.ai/schemas/message/v1/message.schema.json",
	"task":       "https://hai.ai/schemas/task/v1/task.schema.json",
	"agreement":  "https://hai.ai/schemas/agreement/v1/agreement.schema.json",
	"todo":       "https://hai.ai/schemas/todo/v1/todo.schema.json",
	"commitment": "https://hai.ai/schemas/commitment/v1/commitment.schema.json",
	"agentstate": "https://hai.ai/schemas/agentstate/v1/agentstate.schema.json",
	"service":    "https://hai.ai/schemas/service/v1/service.schema.json",
}

// SchemaIDForKind returns the $schema URI a document of the given kind
// claims, or "" for unknown kinds.
func SchemaIDForKind(kind string) string { return entitySchemaIDs[kind] }

// Validator holds the compiled schema corpus.
type Validator struct {
	mu       sync.RWMutex
	header   *jsonschema.Schema
	entities map[string]*jsonschema.Schema
	custom   map[string]*jsonschema.Schema

	// AllowedDir constrains RegisterSchemaFile; empty means the current
	// working directory.
	AllowedDir string
}

// NewValidator compiles the embedded corpus.
func NewValidator() (*Validator, error) {
	compiler := newCompiler()
	if err := addEmbeddedResources(compiler); err != nil {
		return nil, err
	}

	header, err := compiler.Compile(HeaderSchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile header schema: %w", err)
	}
	entities := make(map[string]*jsonschema.Schema, len(entitySchemaIDs))
	for kind, id := range entitySchemaIDs {
		compiled, err := compiler.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		entities[kind] = compiled
	}

	return &Validator{
		header:   header,
		entities: entities,
		custom:   make(map[string]*jsonschema.Schema),
	}, nil
}

func newCompiler() *jsonschema.Compiler {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true
	return compiler
}

func addEmbeddedResources(compiler *jsonschema.Compiler) error {
	return fs.WalkDir(schemaFS, "schemas", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := schemaFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read embedded schema %q: %w", path, err)
		}
		id, err := schemaID(raw)
		if err != nil {
			return fmt.Errorf("embedded schema %q: %w", path, err)
		}
		if err := compiler.AddResource(id, bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("failed to add schema resource %q: %w", id, err)
		}
		return nil
	})
}

func schemaID(raw []byte) (string, error) {
	var head struct {
		ID string `json:"$id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("unparseable schema: %w", err)
	}
	if head.ID == "" {
		return "", fmt.Errorf("schema has no $id")
	}
	return head.ID, nil
}

// ValidateBody checks an entity body (before header injection) against the
// body schema for its kind.
func (v *Validator) ValidateBody(kind string, body any) error {
	v.mu.RLock()
	sch, ok := v.entities[kind]
	v.mu.RUnlock()
	if !ok {
		return jacserr.ValidationError("unknown entity kind " + kind)
	}
	return wrapValidation(kind, sch.Validate(normalize(body)))
}

// ValidateDocument checks a complete document against the header envelope
// and, when the kind is known, its body schema.
func (v *Validator) ValidateDocument(kind string, doc any) error {
	value := normalize(doc)
	if err := wrapValidation("header", v.header.Validate(value)); err != nil {
		return err
	}
	v.mu.RLock()
	sch, ok := v.entities[kind]
	v.mu.RUnlock()
	if !ok {
		return nil
	}
	return wrapValidation(kind, sch.Validate(value))
}

// RegisterSchema compiles a user schema under the given URL so documents
// can later be validated against it with ValidateCustom.
func (v *Validator) RegisterSchema(url string, raw []byte) error {
	compiler := newCompiler()
	if err := addEmbeddedResources(compiler); err != nil {
		return err
	}
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return jacserr.ValidationError(fmt.Sprintf("failed to load schema %q: %v", url, err))
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return jacserr.ValidationError(fmt.Sprintf("failed to compile schema %q: %v", url, err))
	}
	v.mu.Lock()
	v.custom[url] = compiled
	v.mu.Unlock()
	return nil
}

// RegisterSchemaFile loads a user schema from disk. Disabled unless
// JACS_ALLOW_FILESYSTEM_SCHEMAS is set; the resolved path must be contained
// in AllowedDir (segment-wise, so a sibling directory sharing a name prefix
// does not qualify).
func (v *Validator) RegisterSchemaFile(path string) error {
	if !jenv.Bool("JACS_ALLOW_FILESYSTEM_SCHEMAS") {
		return jacserr.ValidationError("filesystem schemas are disabled; set JACS_ALLOW_FILESYSTEM_SCHEMAS=true to enable")
	}
	allowed := v.AllowedDir
	if allowed == "" {
		allowed = "."
	}
	inside, err := paths.ContainedIn(path, allowed)
	if err != nil {
		return err
	}
	if !inside {
		return jacserr.ValidationError(fmt.Sprintf("schema path %q escapes the allowed directory %q", path, allowed))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return jacserr.FileReadFailed(path, err)
	}
	id, err := schemaID(raw)
	if err != nil {
		id = "file://" + path
	}
	return v.RegisterSchema(id, raw)
}

// ValidateCustom checks a value against a previously registered user schema.
func (v *Validator) ValidateCustom(url string, doc any) error {
	v.mu.RLock()
	sch, ok := v.custom[url]
	v.mu.RUnlock()
	if !ok {
		return jacserr.ValidationError("no registered schema " + url)
	}
	return wrapValidation(url, sch.Validate(normalize(doc)))
}

// normalize round-trips arbitrary Go values through JSON so the validator
// always sees the generic form it expects.
func normalize(v any) any {
	switch v.(type) {
	case map[string]any, []any, string, bool, nil, json.Number, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

func wrapValidation(scope string, err error) error {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if ok := jsonschemaAs(err, &ve); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return jacserr.DocumentMalformed(leaf.InstanceLocation, fmt.Sprintf("%s schema: %s", scope, leaf.Message))
	}
	return jacserr.DocumentMalformed(scope, err.Error())
}

func jsonschemaAs(err error, target **jsonschema.ValidationError) bool {
	ve, ok := err.(*jsonschema.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}
