// Package crypt implements the pluggable signature-algorithm layer, the
// encrypted private-key vault, and the ML-KEM payload encryption used by
// the document engine.
package crypt

import (
	"fmt"
	"runtime"
)

// PrivateKey wraps decrypted private-key material in memory. It is the only
// type allowed to hand raw key bytes to the algorithm layer. Destroy
// overwrites the buffer; a finalizer does the same as a backstop when the
// owner forgets. The wrapper refuses to render its contents in any output.
type PrivateKey struct {
	data []byte
}

// NewPrivateKey takes ownership of data. Callers must not retain or reuse
// the slice after handing it over.
func NewPrivateKey(data []byte) *PrivateKey {
	k := &PrivateKey{data: data}
	runtime.SetFinalizer(k, func(k *PrivateKey) { k.Destroy() })
	return k
}

// Bytes exposes the raw key material to the algorithm implementations.
// Returns nil after Destroy.
func (k *PrivateKey) Bytes() []byte { return k.data }

// Len returns the key material length in bytes.
func (k *PrivateKey) Len() int { return len(k.data) }

// IsDestroyed reports whether the material has been erased.
func (k *PrivateKey) IsDestroyed() bool { return k.data == nil }

// Destroy overwrites the key material and releases it. Safe to call more
// than once.
func (k *PrivateKey) Destroy() {
	for i := range k.data {
		k.data[i] = 0
	}
	k.data = nil
}

func (k *PrivateKey) String() string {
	return fmt.Sprintf("PrivateKey([REDACTED, %d bytes])", len(k.data))
}

// GoString keeps %#v output redacted as well.
func (k *PrivateKey) GoString() string { return k.String() }
