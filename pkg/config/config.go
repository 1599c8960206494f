// Package config loads JACS configuration with the documented precedence:
// in-process override > process environment > config file > built-in
// default. Reads go through the jenv overlay, never setenv.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
)

// Recognised environment keys.
const (
	EnvDataDirectory          = "JACS_DATA_DIRECTORY"
	EnvKeyDirectory           = "JACS_KEY_DIRECTORY"
	EnvPrivateKeyFilename     = "JACS_AGENT_PRIVATE_KEY_FILENAME"
	EnvPublicKeyFilename      = "JACS_AGENT_PUBLIC_KEY_FILENAME"
	EnvKeyAlgorithm           = "JACS_AGENT_KEY_ALGORITHM"
	EnvAgentIDAndVersion      = "JACS_AGENT_ID_AND_VERSION"
	EnvPrivateKeyPassword     = "JACS_PRIVATE_KEY_PASSWORD"
	EnvUseSecurity            = "JACS_USE_SECURITY"
	EnvMaxSignatureAgeSeconds = "JACS_MAX_SIGNATURE_AGE_SECONDS"
	EnvAllowFilesystemSchemas = "JACS_ALLOW_FILESYSTEM_SCHEMAS"
	EnvMaxEmbedTotalBytes     = "JACS_MAX_EMBED_TOTAL_BYTES"
)

// DefaultMaxEmbedTotalBytes caps embedded attachment content per document.
const DefaultMaxEmbedTotalBytes = 16 << 20

// Config is the resolved configuration for one agent.
type Config struct {
	DataDirectory          string `json:"jacs_data_directory,omitempty"`
	KeyDirectory           string `json:"jacs_key_directory,omitempty"`
	PrivateKeyFilename     string `json:"jacs_agent_private_key_filename,omitempty"`
	PublicKeyFilename      string `json:"jacs_agent_public_key_filename,omitempty"`
	KeyAlgorithm           string `json:"jacs_agent_key_algorithm,omitempty"`
	AgentIDAndVersion      string `json:"jacs_agent_id_and_version,omitempty"`
	PrivateKeyPassword     string `json:"jacs_private_key_password,omitempty"`
	UseSecurity            bool   `json:"jacs_use_security,omitempty"`
	MaxSignatureAgeSeconds int    `json:"jacs_max_signature_age_seconds,omitempty"`
	AllowFilesystemSchemas bool   `json:"jacs_allow_filesystem_schemas,omitempty"`
	MaxEmbedTotalBytes     int64  `json:"jacs_max_embed_total_bytes,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDirectory:      paths.DataDir(),
		KeyDirectory:       paths.KeysDir(),
		PrivateKeyFilename: "jacs.private.pem.enc",
		PublicKeyFilename:  "jacs.public.pem",
		KeyAlgorithm:       "ring-Ed25519",
		MaxEmbedTotalBytes: DefaultMaxEmbedTotalBytes,
	}
}

// Load reads the config file at path (or the project-local default when
// path is empty) and applies environment precedence on top. A missing file
// is only an error when the caller named it explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = paths.DefaultConfigPath()
	}

	cfg := Default()
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, jacserr.ConfigInvalid(path, fmt.Sprintf("unparseable JSON: %v", err))
		}
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return nil, jacserr.ConfigNotFound(path)
		}
	default:
		return nil, jacserr.FileReadFailed(path, err)
	}

	cfg.applyEnv()
	if cfg.MaxEmbedTotalBytes <= 0 {
		cfg.MaxEmbedTotalBytes = DefaultMaxEmbedTotalBytes
	}
	return cfg, nil
}

// applyEnv overlays environment values (jenv override first, then process
// environment) onto the file/default values.
func (c *Config) applyEnv() {
	overlayString(EnvDataDirectory, &c.DataDirectory)
	overlayString(EnvKeyDirectory, &c.KeyDirectory)
	overlayString(EnvPrivateKeyFilename, &c.PrivateKeyFilename)
	overlayString(EnvPublicKeyFilename, &c.PublicKeyFilename)
	overlayString(EnvKeyAlgorithm, &c.KeyAlgorithm)
	overlayString(EnvAgentIDAndVersion, &c.AgentIDAndVersion)
	overlayString(EnvPrivateKeyPassword, &c.PrivateKeyPassword)
	if v, ok := jenv.Lookup(EnvUseSecurity); ok {
		c.UseSecurity = v == "true" || v == "1"
	}
	if v, ok := jenv.Lookup(EnvMaxSignatureAgeSeconds); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxSignatureAgeSeconds = n
		}
	}
	if v, ok := jenv.Lookup(EnvAllowFilesystemSchemas); ok {
		c.AllowFilesystemSchemas = v == "true" || v == "1"
	}
	if v, ok := jenv.Lookup(EnvMaxEmbedTotalBytes); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxEmbedTotalBytes = n
		}
	}
}

func overlayString(key string, dst *string) {
	if v, ok := jenv.Lookup(key); ok && v != "" {
		*dst = v
	}
}

// Save writes the configuration file. The password is never written out.
func (c *Config) Save(path string) error {
	clone := *c
	clone.PrivateKeyPassword = ""
	raw, err := json.MarshalIndent(&clone, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config %q: %w", path, err)
	}
	return nil
}
