// Package storage persists signed documents under their placement keys.
// The in-scope backend is the local filesystem; remote backends are
// external collaborators and plug in behind the same interface.
package storage

import (
	"os"
	"strings"

	"github.com/HumanAssisted/jacs-go/pkg/jacserr"
	"github.com/HumanAssisted/jacs-go/pkg/paths"
)

// Store is a flat keyed blob store. Keys are placement keys of the form
// "{jacsId}:{jacsVersion}".
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	List() ([]string, error)
	Delete(key string) error
}

// FileStore keeps one file per placement key inside a directory. Writes are
// atomic-rename so concurrent readers never observe partial documents.
type FileStore struct {
	dir string
}

// NewFileStore opens (creating if needed) a document store at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := paths.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Put(key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	return paths.WriteAtomic(path, data)
}

func (s *FileStore) Get(key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jacserr.FileNotFound(path)
		}
		return nil, jacserr.FileReadFailed(path, err)
	}
	return data, nil
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, jacserr.FileReadFailed(s.dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

func (s *FileStore) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return jacserr.FileNotFound(path)
		}
		return jacserr.FileReadFailed(path, err)
	}
	return nil
}

func (s *FileStore) keyPath(key string) (string, error) {
	if err := paths.ValidateComponent(key); err != nil {
		return "", err
	}
	return paths.SafeJoin(s.dir, key+".json")
}
