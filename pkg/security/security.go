// Package security implements the optional defensive checks enabled by
// JACS_USE_SECURITY: scanning the data directory for executable files and
// moving them into quarantine.
package security

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/HumanAssisted/jacs-go/pkg/jenv"
)

// Enabled reports whether the defensive checks are switched on.
func Enabled() bool { return jenv.Bool("JACS_USE_SECURITY") }

// CheckDataDirectory walks dataDir and quarantines any file that looks
// executable. Documents are data; an executable in the data directory is
// either an accident or an attack.
func CheckDataDirectory(dataDir string) error {
	logger := slog.Default().With("component", "security")
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil
	}
	quarantineDir := filepath.Join(dataDir, "quarantine")

	return filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == quarantineDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !isExecutable(path) {
			return nil
		}
		logger.Warn("quarantining possibly executable file", "path", path)
		return quarantine(path, quarantineDir)
	})
}

func isExecutable(path string) bool {
	if runtime.GOOS == "windows" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".exe", ".bat", ".cmd", ".ps1":
			return true
		}
		return hasPEHeader(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// hasPEHeader probes for the MZ magic at the start of the file.
func hasPEHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [2]byte
	if _, err := f.Read(magic[:]); err != nil {
		return false
	}
	return magic[0] == 0x4D && magic[1] == 0x5A
}

func quarantine(path, quarantineDir string) error {
	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		return fmt.Errorf("failed to create quarantine directory: %w", err)
	}
	dest := filepath.Join(quarantineDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to quarantine %q: %w", path, err)
	}
	return os.Chmod(dest, 0o644)
}
