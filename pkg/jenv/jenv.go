// Package jenv provides a thread-safe environment variable abstraction.
//
// Instead of mutating the process environment at runtime (setenv is not safe
// under concurrent getenv), overrides live in an in-process map guarded by a
// RWMutex. Reads consult the override map first and fall back to the real
// environment.
package jenv

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

var (
	mu        sync.RWMutex
	overrides = map[string]string{}
)

// Lookup returns the value for key, checking the override map before the
// process environment. The second return reports whether the key was set
// in either layer.
func Lookup(key string) (string, bool) {
	mu.RLock()
	v, ok := overrides[key]
	mu.RUnlock()
	if ok {
		return v, true
	}
	return os.LookupEnv(key)
}

// Get returns the value for key, or "" when unset.
func Get(key string) string {
	v, _ := Lookup(key)
	return v
}

// GetRequired returns the value for key, failing when the key is unset or,
// if nonEmpty is set, when the value is blank.
func GetRequired(key string, nonEmpty bool) (string, error) {
	v, ok := Lookup(key)
	if !ok {
		return "", jacserr.ConfigInvalid(key, "environment variable not set")
	}
	if nonEmpty && strings.TrimSpace(v) == "" {
		return "", jacserr.ConfigInvalid(key, "environment variable is empty")
	}
	return v, nil
}

// Set installs an override for key. The process environment is not touched.
func Set(key, value string) {
	mu.Lock()
	overrides[key] = value
	mu.Unlock()
}

// SetDefault installs an override only when key is not already set in the
// override map or the process environment.
func SetDefault(key, value string) {
	if _, ok := Lookup(key); !ok {
		Set(key, value)
	}
}

// Clear removes an override; subsequent reads fall back to the process
// environment.
func Clear(key string) {
	mu.Lock()
	delete(overrides, key)
	mu.Unlock()
}

// Bool interprets the value for key as a flag: "true" and "1" (any case)
// are true, everything else false.
func Bool(key string) bool {
	switch strings.ToLower(Get(key)) {
	case "true", "1":
		return true
	}
	return false
}

// Int returns the integer value for key, or def when unset or unparseable.
func Int(key string, def int) int {
	v, ok := Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
