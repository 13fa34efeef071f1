package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sunschool/sunschool-go/internal/observability/logger"
	"github.com/sunschool/sunschool-go/internal/util/atomicwrite"
)

const stateFile = "state.json"

// fileStore implementa Store sobre un único archivo JSON.
// Cada Set/Remove reescribe el archivo completo de forma atómica.
type fileStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// NewFile crea un Store respaldado por <dir>/state.json.
// Un archivo ausente o ilegible arranca como store vacío: el estado local
// ambiguo se trata como "sin sesión", no se adivina.
func NewFile(dir string) Store {
	s := &fileStore{
		path: filepath.Join(dir, stateFile),
		data: map[string]string{},
	}
	s.load()
	return s
}

func (s *fileStore) load() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		logger.Named("storage").Warn("state file corrupted, starting empty",
			logger.Key(s.path), logger.Err(err))
		return
	}
	s.data = m
}

func (s *fileStore) flush() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	// 0600: el archivo contiene el bearer token
	return atomicwrite.AtomicWriteFile(s.path, b, 0o600)
}

func (s *fileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *fileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

func (s *fileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}
