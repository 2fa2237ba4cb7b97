package storage

import "sync"

// MemoryBacking keeps the document in process memory. Used by tests and by
// STORE_BACKEND=memory for dry runs.
type MemoryBacking struct {
	mu  sync.Mutex
	doc Document
	// SaveErr, when set, is returned by every Save
	SaveErr error
}

// NewMemoryBacking creates a backing seeded with a copy of initial (may be nil).
func NewMemoryBacking(initial Document) *MemoryBacking {
	return &MemoryBacking{doc: copyDocument(initial)}
}

// Load returns a copy of the current document.
func (b *MemoryBacking) Load() (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyDocument(b.doc), nil
}

// Save replaces the current document with a copy of doc.
func (b *MemoryBacking) Save(doc Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.doc = copyDocument(doc)
	return nil
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for key, categories := range doc {
		inner := make(map[string]string, len(categories))
		for category, title := range categories {
			inner[category] = title
		}
		out[key] = inner
	}
	return out
}
