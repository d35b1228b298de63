package job

import (
	"strings"
	"sync"

	"github.com/jaki95/feedback-importer/internal/dataset"
)

// RecordStore remembers the dedup key of every imported record across
// batches. A record whose key is already present counts as a duplicate.
type RecordStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewRecordStore() *RecordStore {
	return &RecordStore{keys: make(map[string]string)}
}

// Add stores key for batchID and reports whether it was new.
func (s *RecordStore) Add(key, batchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = batchID
	return true
}

// Owner returns the batch that first imported key.
func (s *RecordStore) Owner(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	return id, ok
}

func (s *RecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// DedupKey derives the identity of a row from the dedup column values, or
// from the whole record when no dedup columns were chosen.
func DedupKey(source string, values []string) string {
	parts := make([]string, 0, len(values)+1)
	parts = append(parts, strings.ToLower(source))
	for _, v := range values {
		parts = append(parts, strings.ToLower(strings.TrimSpace(v)))
	}
	return dataset.Fingerprint([]byte(strings.Join(parts, "\x1f")))
}
