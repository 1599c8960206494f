package document

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/HumanAssisted/jacs-go/pkg/canonical"
	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/mimeutil"
)

// FileRecord is one attachment entry under jacsFiles.
type FileRecord struct {
	Path     string `json:"path"`
	Mimetype string `json:"mimetype"`
	Sha256   string `json:"sha256"`
	Embed    bool   `json:"embed"`
	Contents string `json:"contents,omitempty"`
}

// attachFiles computes per-file hashes and mimetypes and records the
// attachments under jacsFiles, embedding Base64 content when asked. Total
// embedded content is bounded by MaxEmbedBytes.
func (e *Engine) attachFiles(doc Document, filePaths []string, embed bool) error {
	maxEmbed := e.MaxEmbedBytes
	if maxEmbed <= 0 {
		maxEmbed = 16 << 20
	}
	var embedded int64
	records := make([]any, 0, len(filePaths))
	for _, p := range filePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				return jacserr.FileNotFound(p)
			}
			return jacserr.FileReadFailed(p, err)
		}
		record := map[string]any{
			"path":     p,
			"mimetype": mimeutil.FromExtension(p),
			"sha256":   canonical.HashBytes(data),
			"embed":    embed,
		}
		if embed {
			embedded += int64(len(data))
			if embedded > maxEmbed {
				return jacserr.ValidationError(fmt.Sprintf("embedded attachments exceed the %d byte limit", maxEmbed))
			}
			record["contents"] = base64.StdEncoding.EncodeToString(data)
		}
		records = append(records, record)
	}
	doc[FieldFiles] = records
	return nil
}

// verifyEmbeddedFiles recomputes the hash of every embedded attachment; a
// mismatch fails structural validation.
func (e *Engine) verifyEmbeddedFiles(doc Document) error {
	raw, ok := doc[FieldFiles]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return jacserr.DocumentMalformed(FieldFiles, "not an array")
	}
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return jacserr.DocumentMalformed(fmt.Sprintf("%s[%d]", FieldFiles, i), "not an object")
		}
		embed, _ := m["embed"].(bool)
		if !embed {
			continue
		}
		contents, _ := m["contents"].(string)
		recorded, _ := m["sha256"].(string)
		data, err := base64.StdEncoding.DecodeString(contents)
		if err != nil {
			return jacserr.DocumentMalformed(fmt.Sprintf("%s[%d].contents", FieldFiles, i), "not valid Base64")
		}
		if got := canonical.HashBytes(data); got != recorded {
			return jacserr.DocumentMalformed(fmt.Sprintf("%s[%d]", FieldFiles, i),
				fmt.Sprintf("embedded content hash mismatch: recorded %q, got %q", prefix(recorded), prefix(got)))
		}
	}
	return nil
}
