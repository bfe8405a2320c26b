// Package keystore holds raw key material for the duration of one session.
// Nothing in here is durable: the process exiting is the erasure policy.
// Raw keys must never reach long-term storage unencrypted, so this cache is
// the only place they live outside a function frame.
package keystore

import (
	"strings"
	"sync"

	"github.com/couplesdiary/cryptocore/internal/common"
)

const (
	keyPrefix = "couple_key_"

	// archivePasswordPrefix matches the session-storage key pattern the
	// surrounding application uses: archive_password_{archiveId}.
	archivePasswordPrefix = "archive_password_"
)

// KeyStore is a namespaced, session-scoped store for raw key bytes and
// ephemeral archive passwords. Safe for concurrent use.
type KeyStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// New returns an empty KeyStore.
func New() *KeyStore {
	return &KeyStore{entries: make(map[string][]byte)}
}

// Store caches key bytes under keyID. The store keeps its own copy so a
// caller wiping its slice does not corrupt the cache, and vice versa.
func (s *KeyStore) Store(keyID string, key []byte) {
	cp := make([]byte, len(key))
	copy(cp, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[keyPrefix+keyID]; ok {
		common.WipeByteArray(old)
	}
	s.entries[keyPrefix+keyID] = cp
}

// Retrieve returns a copy of the key bytes, or nil when absent. Absence is
// an expected state (fresh session, cleared keys), not an error.
func (s *KeyStore) Retrieve(keyID string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.entries[keyPrefix+keyID]
	if !ok {
		return nil
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return cp
}

// Remove wipes and deletes one key.
func (s *KeyStore) Remove(keyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.entries[keyPrefix+keyID]; ok {
		common.WipeByteArray(key)
		delete(s.entries, keyPrefix+keyID)
	}
}

// StoreArchivePassword caches a breakup-archive password for the session.
func (s *KeyStore) StoreArchivePassword(archiveID, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[archivePasswordPrefix+archiveID] = []byte(password)
}

// ArchivePassword returns the cached password for archiveID, or "".
func (s *KeyStore) ArchivePassword(archiveID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.entries[archivePasswordPrefix+archiveID])
}

// RemoveArchivePassword wipes the cached password. Called on both
// successful and failed recovery.
func (s *KeyStore) RemoveArchivePassword(archiveID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.entries[archivePasswordPrefix+archiveID]; ok {
		common.WipeByteArray(pw)
		delete(s.entries, archivePasswordPrefix+archiveID)
	}
}

// ClearKeys wipes every cached key whose ID has the given prefix, leaving
// archive passwords untouched. Used to erase one couple's key generation.
func (s *KeyStore) ClearKeys(idPrefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.entries {
		if strings.HasPrefix(k, keyPrefix+idPrefix) {
			common.WipeByteArray(v)
			delete(s.entries, k)
		}
	}
}

// ClearAll wipes and removes every entry in this subsystem's namespace.
func (s *KeyStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.entries {
		common.WipeByteArray(v)
		delete(s.entries, k)
	}
}

// Len reports the number of cached items. Intended for tests and status
// output only.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
