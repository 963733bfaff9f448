package retriever

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"veld/internal/project"
	"veld/internal/stub"
)

// Current schema version - increment when stubPayload format changes.
const stubCacheSchemaVersion uint16 = 1

// StubCache хранит извлечённые стабы по дайджесту исходников на диске.
// Thread-safe for concurrent access.
type StubCache struct {
	mu  sync.RWMutex
	dir string
}

type stubPayload struct {
	Schema    uint16
	Program   string
	Functions []stub.Function
	Records   []stub.Record
}

// OpenStubCache initializes the stub cache under homePath.
func OpenStubCache(homePath string) (*StubCache, error) {
	dir := filepath.Join(homePath, "cache", "stubs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to open stub cache: %w", err)
	}
	return &StubCache{dir: dir}, nil
}

func (c *StubCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a stub to the cache.
func (c *StubCache) Put(key project.Digest, st stub.Stub) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	payload := stubPayload{
		Schema:    stubCacheSchemaVersion,
		Program:   st.Program,
		Functions: st.Functions,
		Records:   st.Records,
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmpName, c.pathFor(key))
}

// Get reads a stub from the cache. The boolean reports a hit.
func (c *StubCache) Get(key project.Digest) (stub.Stub, bool, error) {
	if c == nil {
		return stub.Stub{}, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stub.Stub{}, false, nil
		}
		return stub.Stub{}, false, err
	}
	defer func() { _ = f.Close() }()

	var payload stubPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return stub.Stub{}, false, err
	}
	if payload.Schema != stubCacheSchemaVersion {
		// Stale schema entries are treated as misses and rewritten.
		return stub.Stub{}, false, nil
	}
	return stub.Stub{
		Program:   payload.Program,
		Functions: payload.Functions,
		Records:   payload.Records,
	}, true, nil
}
