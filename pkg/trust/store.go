// Package trust implements the content-addressed public-key store used to
// resolve publicKeyHash values during verification, and the trusted-agent
// registry that backs peer-to-peer key exchange without a central
// authority.
//
// Layout: per trusted key, {hash}.pem with the public key bytes and
// {hash}.enc_type with the algorithm label. Per trusted agent, the full
// signed agent JSON under {jacsId}.json and a {jacsId}.meta.json sidecar.
// All writes go through an atomic temp-file rename so readers never see a
// partial file.
package trust

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
)

const (
	keyFileExt  = ".pem"
	algFileExt  = ".enc_type"
	metaFileExt = ".meta.json"
)

// TrustedAgent is the metadata sidecar written next to a trusted agent.
type TrustedAgent struct {
	AgentID       string `json:"agent_id"`
	Name          string `json:"name,omitempty"`
	PublicKeyHash string `json:"public_key_hash"`
	Algorithm     string `json:"algorithm,omitempty"`
	TrustedAt     string `json:"trusted_at"`
}

// Store is a trust store rooted at a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore opens (creating if needed) a trust store at dir.
func NewStore(dir string) (*Store, error) {
	if err := paths.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "truststore"),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// PutKey records a public key under its hex hash together with its
// algorithm label. Every call rewrites both files, so putting the same hash
// again replaces the stored algorithm label.
func (s *Store) PutKey(publicKeyHash string, pub []byte, algorithm string) error {
	if err := validateHash(publicKeyHash); err != nil {
		return err
	}
	keyPath, err := paths.SafeJoin(s.dir, publicKeyHash+keyFileExt)
	if err != nil {
		return err
	}
	algPath, err := paths.SafeJoin(s.dir, publicKeyHash+algFileExt)
	if err != nil {
		return err
	}
	if err := paths.WriteAtomic(keyPath, pub); err != nil {
		return err
	}
	if err := paths.WriteAtomic(algPath, []byte(algorithm)); err != nil {
		return err
	}
	s.logger.Info("public key trusted", "publicKeyHash", publicKeyHash, "algorithm", algorithm)
	return nil
}

// ResolveKey looks up the public key and algorithm label for a hash. An
// unknown hash is reported as SignerUnknown; callers decide whether that is
// an error or an Unverified verification status.
func (s *Store) ResolveKey(publicKeyHash string) ([]byte, string, error) {
	if err := validateHash(publicKeyHash); err != nil {
		return nil, "", err
	}
	keyPath, err := paths.SafeJoin(s.dir, publicKeyHash+keyFileExt)
	if err != nil {
		return nil, "", err
	}
	pub, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", jacserr.SignerUnknown(publicKeyHash)
		}
		return nil, "", jacserr.FileReadFailed(keyPath, err)
	}
	algPath, err := paths.SafeJoin(s.dir, publicKeyHash+algFileExt)
	if err != nil {
		return nil, "", err
	}
	alg, err := os.ReadFile(algPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", jacserr.SignerUnknown(publicKeyHash)
		}
		return nil, "", jacserr.FileReadFailed(algPath, err)
	}
	return pub, strings.TrimSpace(string(alg)), nil
}

// HasKey reports whether a public key hash resolves in this store.
func (s *Store) HasKey(publicKeyHash string) bool {
	_, _, err := s.ResolveKey(publicKeyHash)
	return err == nil
}

// AddAgent stores the full agent JSON for audit plus the metadata sidecar.
// Callers must have verified the agent's self-signature first.
func (s *Store) AddAgent(agentJSON []byte, meta TrustedAgent) error {
	if err := paths.ValidateComponent(meta.AgentID); err != nil {
		return err
	}
	if meta.TrustedAt == "" {
		meta.TrustedAt = time.Now().UTC().Format(time.RFC3339)
	}
	agentPath, err := paths.SafeJoin(s.dir, meta.AgentID+".json")
	if err != nil {
		return err
	}
	metaPath, err := paths.SafeJoin(s.dir, meta.AgentID+metaFileExt)
	if err != nil {
		return err
	}
	if err := paths.WriteAtomic(agentPath, agentJSON); err != nil {
		return err
	}
	metaRaw, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize trust metadata: %w", err)
	}
	if err := paths.WriteAtomic(metaPath, metaRaw); err != nil {
		return err
	}
	s.logger.Info("agent trusted", "agentID", meta.AgentID, "publicKeyHash", meta.PublicKeyHash)
	return nil
}

// GetAgent returns the stored agent JSON.
func (s *Store) GetAgent(agentID string) ([]byte, error) {
	if err := paths.ValidateComponent(agentID); err != nil {
		return nil, err
	}
	agentPath, err := paths.SafeJoin(s.dir, agentID+".json")
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(agentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jacserr.AgentNotTrusted(agentID)
		}
		return nil, jacserr.FileReadFailed(agentPath, err)
	}
	return raw, nil
}

// GetMeta returns the metadata sidecar for a trusted agent.
func (s *Store) GetMeta(agentID string) (*TrustedAgent, error) {
	if err := paths.ValidateComponent(agentID); err != nil {
		return nil, err
	}
	metaPath, err := paths.SafeJoin(s.dir, agentID+metaFileExt)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jacserr.AgentNotTrusted(agentID)
		}
		return nil, jacserr.FileReadFailed(metaPath, err)
	}
	var meta TrustedAgent
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, jacserr.DocumentMalformed("meta", err.Error())
	}
	return &meta, nil
}

// List returns the IDs of all trusted agents.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, jacserr.FileReadFailed(s.dir, err)
	}
	var agents []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, metaFileExt) {
			continue
		}
		agents = append(agents, strings.TrimSuffix(name, ".json"))
	}
	return agents, nil
}

// Remove untrusts an agent, deleting its JSON and metadata. The key files
// are left in place: other trusted agents may share provenance with them.
func (s *Store) Remove(agentID string) error {
	if err := paths.ValidateComponent(agentID); err != nil {
		return err
	}
	agentPath, err := paths.SafeJoin(s.dir, agentID+".json")
	if err != nil {
		return err
	}
	if _, err := os.Stat(agentPath); os.IsNotExist(err) {
		return jacserr.AgentNotTrusted(agentID)
	}
	metaPath, _ := paths.SafeJoin(s.dir, agentID+metaFileExt)
	if err := os.Remove(agentPath); err != nil {
		return fmt.Errorf("failed to remove agent file: %w", err)
	}
	_ = os.Remove(metaPath)
	s.logger.Info("agent untrusted", "agentID", agentID)
	return nil
}

// IsTrusted reports whether an agent ID is in the store.
func (s *Store) IsTrusted(agentID string) bool {
	if err := paths.ValidateComponent(agentID); err != nil {
		return false
	}
	agentPath, err := paths.SafeJoin(s.dir, agentID+".json")
	if err != nil {
		return false
	}
	_, statErr := os.Stat(agentPath)
	return statErr == nil
}

func validateHash(publicKeyHash string) error {
	if err := paths.ValidateComponent(publicKeyHash); err != nil {
		return err
	}
	if len(publicKeyHash) != 64 {
		return jacserr.ValidationError(fmt.Sprintf("invalid public key hash length: expected 64 hex characters, got %d", len(publicKeyHash)))
	}
	if _, err := hex.DecodeString(publicKeyHash); err != nil {
		return jacserr.ValidationError("public key hash is not hex: " + publicKeyHash)
	}
	return nil
}
