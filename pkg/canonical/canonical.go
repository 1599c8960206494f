// Package canonical produces the deterministic byte form used for hashing
// JACS documents: RFC 8785 (JSON Canonicalization Scheme) serialization plus
// SHA-256 hex digests.
//
// The omit-list applies at the top level only. Nested signature-like fields
// (for example the entries of jacsAgreement.signatures) are hashed as-is,
// which makes each nested signature cover everything that existed at the
// moment it was appended.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 canonical JSON form of v.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: jcs transform failed: %w", err)
	}
	return out, nil
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashValue canonicalizes v and returns its hex SHA-256 digest.
func HashValue(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashDocument hashes doc with the named top-level fields removed.
func HashDocument(doc map[string]any, omit ...string) (string, error) {
	return HashValue(withoutFields(doc, omit))
}

// HashFields hashes the sub-document of doc containing exactly the named
// top-level fields. Missing fields are skipped, so verifiers reproduce the
// precise input a signer recorded in its fields list.
func HashFields(doc map[string]any, fields []string) (string, error) {
	sub := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			sub[f] = v
		}
	}
	return HashValue(sub)
}

// SignedFields returns the sorted top-level field names of doc that survive
// the omit-list. This is the fields list recorded inside a Signature.
func SignedFields(doc map[string]any, omit ...string) []string {
	omitted := toSet(omit)
	fields := make([]string, 0, len(doc))
	for k := range doc {
		if !omitted[k] {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// Decode parses raw JSON into a document map, preserving number precision
// via json.Number so re-serialization cannot change what gets hashed.
func Decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("canonical: decode failed: %w", err)
	}
	return doc, nil
}

// Encode serializes a document for storage. Whitespace is free in storage
// and irrelevant to hashing.
func Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("canonical: encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func withoutFields(doc map[string]any, omit []string) map[string]any {
	omitted := toSet(omit)
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if !omitted[k] {
			out[k] = v
		}
	}
	return out
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
