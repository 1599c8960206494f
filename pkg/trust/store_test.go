package trust

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

func testStores(t *testing.T) map[string]Registry {
	fileStore, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Registry{
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}
}

const testHash = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"

func TestPutAndResolveKey(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.PutKey(testHash, []byte("PEM BYTES"), "ring-Ed25519"))
			require.True(t, store.HasKey(testHash))

			pub, alg, err := store.ResolveKey(testHash)
			require.NoError(t, err)
			require.Equal(t, []byte("PEM BYTES"), pub)
			require.Equal(t, "ring-Ed25519", alg)
		})
	}
}

func TestResolveKey_Unknown(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			missing := strings.Repeat("ab", 32)
			_, _, err := store.ResolveKey(missing)
			require.Error(t, err)
			require.Equal(t, jacserr.KindSignerUnknown, jacserr.KindOf(err))
			require.False(t, store.HasKey(missing))
		})
	}
}

func TestResolveKey_PathSafety(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			hostile := []string{
				"../../../etc/passwd",
				"..",
				"",
				"a665a459\x0020422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3",
				"not-hex-" + strings.Repeat("z", 56),
				"abcd", // wrong length
			}
			for _, h := range hostile {
				_, _, err := store.ResolveKey(h)
				require.Error(t, err, "%q must be rejected", h)
				require.Equal(t, jacserr.KindValidationError, jacserr.KindOf(err), "%q", h)
				require.Error(t, store.PutKey(h, []byte("x"), "alg"))
			}
		})
	}
}

func TestAgentLifecycle(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			agentID := "550e8400-e29b-41d4-a716-446655440000"
			raw := []byte(`{"jacsId":"` + agentID + `"}`)
			require.NoError(t, store.AddAgent(raw, TrustedAgent{
				AgentID:       agentID,
				Name:          "tester",
				PublicKeyHash: testHash,
				Algorithm:     "ring-Ed25519",
			}))

			require.True(t, store.IsTrusted(agentID))
			got, err := store.GetAgent(agentID)
			require.NoError(t, err)
			require.Equal(t, raw, got)

			meta, err := store.GetMeta(agentID)
			require.NoError(t, err)
			require.Equal(t, "tester", meta.Name)
			require.NotEmpty(t, meta.TrustedAt)

			ids, err := store.List()
			require.NoError(t, err)
			require.Equal(t, []string{agentID}, ids)

			require.NoError(t, store.Remove(agentID))
			require.False(t, store.IsTrusted(agentID))
			err = store.Remove(agentID)
			require.Equal(t, jacserr.KindAgentNotTrusted, jacserr.KindOf(err))
		})
	}
}

func TestList_SkipsMetaFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	agentID := "550e8400-e29b-41d4-a716-446655440000"
	require.NoError(t, store.AddAgent([]byte("{}"), TrustedAgent{AgentID: agentID, PublicKeyHash: testHash}))

	ids, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{agentID}, ids)
}
