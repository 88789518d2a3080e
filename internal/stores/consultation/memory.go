package consultation

import (
	"context"
	"sync"

	"github.com/jkim999/primary-care-consultant/pkg/consultation"
)

// InMemoryStore keeps consultations in memory for tests and the offline self-test
type InMemoryStore struct {
	entries []*consultation.LogEntry
	mutex   sync.RWMutex

	// Err, when set, fails every write
	Err error
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// LogConsultation stores a copy of entry
func (s *InMemoryStore) LogConsultation(_ context.Context, entry *consultation.LogEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.Err != nil {
		return consultation.E(consultation.CodePersistence, "InMemoryStore.LogConsultation", "failed to save consultation", s.Err)
	}

	// Store a copy to avoid shared references
	entryCopy := *entry
	entryCopy.Record = entry.Record.Clone()
	entryCopy.Transcript = append([]consultation.Entry(nil), entry.Transcript...)

	s.entries = append(s.entries, &entryCopy)
	return nil
}

// ListRecent returns the most recent summaries, oldest first
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]consultation.Summary, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summaries := make([]consultation.Summary, 0, len(s.entries))
	for _, e := range s.entries {
		summaries = append(summaries, e.Summary())
	}
	return recent(summaries, limit), nil
}

// Entries returns every stored entry
func (s *InMemoryStore) Entries() []*consultation.LogEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]*consultation.LogEntry(nil), s.entries...)
}

// Close is a no-op
func (s *InMemoryStore) Close() error {
	return nil
}
