package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/jenv"
)

func TestEnabled(t *testing.T) {
	jenv.Clear("JACS_USE_SECURITY")
	require.False(t, Enabled())
	jenv.Set("JACS_USE_SECURITY", "true")
	defer jenv.Clear("JACS_USE_SECURITY")
	require.True(t, Enabled())
}

func TestCheckDataDirectory_QuarantinesExecutables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "evil.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho pwned\n"), 0o755))
	data := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(data, []byte("{}"), 0o644))

	require.NoError(t, CheckDataDirectory(dir))

	_, err := os.Stat(script)
	require.True(t, os.IsNotExist(err), "executable should be moved")
	_, err = os.Stat(filepath.Join(dir, "quarantine", "evil.sh"))
	require.NoError(t, err)

	info, err := os.Stat(data)
	require.NoError(t, err)
	require.NotNil(t, info)
}

func TestCheckDataDirectory_MissingDirIsNoop(t *testing.T) {
	require.NoError(t, CheckDataDirectory(filepath.Join(t.TempDir(), "nope")))
}
