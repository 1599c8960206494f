// Package paths resolves the platform directories JACS reads and writes,
// and enforces path safety for untrusted filename components.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/jenv"
)

// TrustStoreDir returns the directory holding trusted agent files.
//
//   - macOS:   ~/Library/Application Support/jacs/trusted_agents
//   - Linux:   $XDG_DATA_HOME/jacs/trusted_agents or ~/.local/share/jacs/trusted_agents
//   - Windows: %APPDATA%\jacs\trusted_agents
//
// Falls back to ~/.jacs/trusted_agents, then ./.jacs/trusted_agents.
func TrustStoreDir() string { return platformDir("trusted_agents") }

// DataDir returns the directory holding documents and other agent data.
func DataDir() string { return platformDir("data") }

// KeysDir returns the directory holding encrypted private keys.
func KeysDir() string { return platformDir("keys") }

func platformDir(leaf string) string {
	switch runtime.GOOS {
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "jacs", leaf)
		}
	case "windows":
		if appdata := jenv.Get("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "jacs", leaf)
		}
	default:
		if xdg := jenv.Get("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "jacs", leaf)
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "jacs", leaf)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".jacs", leaf)
	}
	return filepath.Join(".", ".jacs", leaf)
}

// DefaultConfigPath is the project-local configuration file. Configuration
// is project-local by design.
func DefaultConfigPath() string { return "./jacs.config.json" }

// DefaultAgentPath is the project-local agent file.
func DefaultAgentPath() string { return "./jacs.agent.json" }

// LocalKeysDir is the project-local keys directory used when creating
// agents with local storage.
func LocalKeysDir() string { return "./jacs_keys" }

// LocalDataDir is the project-local data directory.
func LocalDataDir() string { return "./jacs_data" }

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	return nil
}

// ValidateComponent rejects any string that cannot safely be used as a
// single path component. The string is split on both separator styles and
// every segment must be non-empty, not "." or "..", and free of NUL bytes.
// This must be applied to every untrusted value (publicKeyHash, filename)
// before it touches filepath.Join.
func ValidateComponent(name string) error {
	if name == "" {
		return jacserr.ValidationError("empty path component")
	}
	if strings.ContainsRune(name, 0) {
		return jacserr.ValidationError("path component contains NUL byte")
	}
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == "." || seg == ".." {
			return jacserr.ValidationError(fmt.Sprintf("path component %q contains traversal segment", name))
		}
	}
	// FieldsFunc drops empty segments; any separator at all means the value
	// is not a single component.
	if strings.ContainsAny(name, "/\\") {
		return jacserr.ValidationError(fmt.Sprintf("path component %q contains separator", name))
	}
	return nil
}

// SafeJoin joins base with the given untrusted components, validating each.
func SafeJoin(base string, components ...string) (string, error) {
	for _, c := range components {
		if err := ValidateComponent(c); err != nil {
			return "", err
		}
	}
	return filepath.Join(append([]string{base}, components...)...), nil
}

// WriteAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jacs-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %q: %w", path, err)
	}
	return nil
}

// ContainedIn reports whether path resolves inside dir. Containment is
// checked segment-wise: "allowed_evil" is not inside "allowed".
func ContainedIn(path, dir string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %q: %w", dir, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	if rel == "." {
		return true, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
