package storage

import (
	"sync"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"go.uber.org/zap"
)

// TitleStore remembers the last published title per (source key, category).
// Reads never fail: missing or unreadable state reads as "no memory".
// Writes never fail either: errors are logged and the caller carries on.
type TitleStore interface {
	// LoadTitle returns the remembered title, or "" when none is recorded
	LoadTitle(sourceKey, category string) string
	// SaveTitle records title as the latest one for the pair
	SaveTitle(sourceKey, category, title string)
}

// Snapshotter exposes the whole persisted state for inspection.
type Snapshotter interface {
	Snapshot() (Document, error)
}

// Document is the persisted shape: {sourceKey: {category: lastTitle}}.
type Document map[string]map[string]string

// Get returns the title stored for the pair.
func (d Document) Get(sourceKey, category string) string {
	return d[sourceKey][category]
}

// Set stores title for the pair, creating the source map if needed.
func (d Document) Set(sourceKey, category, title string) {
	if d[sourceKey] == nil {
		d[sourceKey] = make(map[string]string)
	}
	d[sourceKey][category] = title
}

// Backing persists a whole Document. Save must be atomic: a crash mid-write
// leaves either the previous document or the new one.
type Backing interface {
	Load() (Document, error)
	Save(doc Document) error
}

// DocumentTitleStore implements TitleStore as read-modify-write over a Backing.
type DocumentTitleStore struct {
	backing Backing
	log     *zap.SugaredLogger
	mu      sync.Mutex
}

// NewDocumentTitleStore creates a title store over backing.
func NewDocumentTitleStore(backing Backing, log *zap.SugaredLogger) *DocumentTitleStore {
	return &DocumentTitleStore{
		backing: backing,
		log:     logger.OrNop(log),
	}
}

// LoadTitle returns the remembered title or "".
func (s *DocumentTitleStore) LoadTitle(sourceKey, category string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load().Get(sourceKey, category)
}

// SaveTitle reloads the document, sets the pair and writes it back.
func (s *DocumentTitleStore) SaveTitle(sourceKey, category, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	doc.Set(sourceKey, category, title)

	if err := s.backing.Save(doc); err != nil {
		s.log.Errorf("Failed to save last title for %s/%s: %v", sourceKey, category, err)
		return
	}

	s.log.Debugf("Saved last title for %s/%s: %q", sourceKey, category, title)
}

// Snapshot returns the current document.
func (s *DocumentTitleStore) Snapshot() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backing.Load()
}

func (s *DocumentTitleStore) load() Document {
	doc, err := s.backing.Load()
	if err != nil {
		s.log.Warnf("Failed to load title state, treating it as empty: %v", err)
		return Document{}
	}
	if doc == nil {
		return Document{}
	}
	return doc
}
