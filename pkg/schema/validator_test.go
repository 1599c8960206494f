package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidateBody_Agent(t *testing.T) {
	v := newValidator(t)

	require.NoError(t, v.ValidateBody("agent", map[string]any{
		"jacsAgentType": "ai",
		"name":          "test agent",
	}))

	err := v.ValidateBody("agent", map[string]any{"jacsAgentType": "robot"})
	require.Error(t, err)
	require.Equal(t, jacserr.KindDocumentMalformed, jacserr.KindOf(err))

	err = v.ValidateBody("agent", map[string]any{})
	require.Error(t, err)
}

func TestValidateBody_UnknownKind(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateBody("no-such-kind", map[string]any{})
	require.Error(t, err)
	require.Equal(t, jacserr.KindValidationError, jacserr.KindOf(err))
}

func TestValidateDocument_Header(t *testing.T) {
	v := newValidator(t)

	doc := map[string]any{
		"jacsId":              "550e8400-e29b-41d4-a716-446655440000",
		"jacsVersion":         "550e8400-e29b-41d4-a716-446655440001",
		"jacsOriginalVersion": "550e8400-e29b-41d4-a716-446655440001",
		"jacsVersionDate":     "2026-08-02T10:00:00Z",
		"jacsType":            "message",
		"jacsLevel":           "raw",
		"content":             "hello",
	}
	require.NoError(t, v.ValidateDocument("message", doc))

	doc["jacsLevel"] = "mutable"
	require.Error(t, v.ValidateDocument("message", doc))

	delete(doc, "jacsLevel")
	require.Error(t, v.ValidateDocument("message", doc))
}

func TestValidateDocument_UnknownFieldsPreserved(t *testing.T) {
	v := newValidator(t)
	doc := map[string]any{
		"jacsId":              "550e8400-e29b-41d4-a716-446655440000",
		"jacsVersion":         "550e8400-e29b-41d4-a716-446655440001",
		"jacsOriginalVersion": "550e8400-e29b-41d4-a716-446655440001",
		"jacsVersionDate":     "2026-08-02T10:00:00Z",
		"jacsType":            "message",
		"jacsLevel":           "raw",
		"content":             "hello",
		"customVendorField":   map[string]any{"anything": true},
	}
	require.NoError(t, v.ValidateDocument("message", doc))
}

func TestRegisterSchema_Custom(t *testing.T) {
	v := newValidator(t)
	const url = "https://example.com/custom.schema.json"
	require.NoError(t, v.RegisterSchema(url, []byte(`{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"properties": {"count": {"type": "integer", "minimum": 0}},
		"required": ["count"]
	}`)))

	require.NoError(t, v.ValidateCustom(url, map[string]any{"count": 3}))
	require.Error(t, v.ValidateCustom(url, map[string]any{"count": -1}))
	require.Error(t, v.ValidateCustom(url, map[string]any{}))

	require.Error(t, v.ValidateCustom("https://example.com/unregistered.json", map[string]any{}))
}

func TestRegisterSchemaFile_Gated(t *testing.T) {
	v := newValidator(t)
	dir := t.TempDir()
	v.AllowedDir = dir
	path := filepath.Join(dir, "user.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"$id":"https://example.com/user.schema.json","type":"object"}`), 0o644))

	// Disabled by default.
	require.Error(t, v.RegisterSchemaFile(path))

	jenv.Set("JACS_ALLOW_FILESYSTEM_SCHEMAS", "true")
	defer jenv.Clear("JACS_ALLOW_FILESYSTEM_SCHEMAS")
	require.NoError(t, v.RegisterSchemaFile(path))

	// Containment is segment-wise: an escaping path is rejected even with
	// the gate open.
	require.Error(t, v.RegisterSchemaFile(filepath.Join(dir, "..", "outside.schema.json")))
}
