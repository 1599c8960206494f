package trust

import (
	"sync"
	"time"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
)

// Registry is the trust-store surface the rest of the module consumes.
// Store implements it on the filesystem; MemoryStore implements it for
// ephemeral agents that must never touch disk.
type Registry interface {
	PutKey(publicKeyHash string, pub []byte, algorithm string) error
	ResolveKey(publicKeyHash string) ([]byte, string, error)
	HasKey(publicKeyHash string) bool
	AddAgent(agentJSON []byte, meta TrustedAgent) error
	GetAgent(agentID string) ([]byte, error)
	GetMeta(agentID string) (*TrustedAgent, error)
	List() ([]string, error)
	Remove(agentID string) error
	IsTrusted(agentID string) bool
}

var (
	_ Registry = (*Store)(nil)
	_ Registry = (*MemoryStore)(nil)
)

type memoryKey struct {
	pub       []byte
	algorithm string
}

type memoryAgent struct {
	raw  []byte
	meta TrustedAgent
}

// MemoryStore is an in-process trust store with the same semantics as the
// file-backed Store.
type MemoryStore struct {
	mu     sync.RWMutex
	keys   map[string]memoryKey
	agents map[string]memoryAgent
}

// NewMemoryStore returns an empty in-memory trust store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[string]memoryKey),
		agents: make(map[string]memoryAgent),
	}
}

func (s *MemoryStore) PutKey(publicKeyHash string, pub []byte, algorithm string) error {
	if err := validateHash(publicKeyHash); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(pub))
	copy(buf, pub)
	s.keys[publicKeyHash] = memoryKey{pub: buf, algorithm: algorithm}
	return nil
}

func (s *MemoryStore) ResolveKey(publicKeyHash string) ([]byte, string, error) {
	if err := validateHash(publicKeyHash); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.keys[publicKeyHash]
	if !ok {
		return nil, "", jacserr.SignerUnknown(publicKeyHash)
	}
	return entry.pub, entry.algorithm, nil
}

func (s *MemoryStore) HasKey(publicKeyHash string) bool {
	_, _, err := s.ResolveKey(publicKeyHash)
	return err == nil
}

func (s *MemoryStore) AddAgent(agentJSON []byte, meta TrustedAgent) error {
	if meta.TrustedAt == "" {
		meta.TrustedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(agentJSON))
	copy(buf, agentJSON)
	s.agents[meta.AgentID] = memoryAgent{raw: buf, meta: meta}
	return nil
}

func (s *MemoryStore) GetAgent(agentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.agents[agentID]
	if !ok {
		return nil, jacserr.AgentNotTrusted(agentID)
	}
	return entry.raw, nil
}

func (s *MemoryStore) GetMeta(agentID string) (*TrustedAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.agents[agentID]
	if !ok {
		return nil, jacserr.AgentNotTrusted(agentID)
	}
	meta := entry.meta
	return &meta, nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Remove(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agentID]; !ok {
		return jacserr.AgentNotTrusted(agentID)
	}
	delete(s.agents, agentID)
	return nil
}

func (s *MemoryStore) IsTrusted(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.agents[agentID]
	return ok
}
