package document

import (
	"slices"
	"sync"
	"time"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Store holds processed documents, most recent first, and the current
// multi-select state. Readers get copies of the ordering, never the
// backing slice.
type Store struct {
	mu       sync.RWMutex
	docs     []*Document
	selected map[string]struct{}
	clock    TimeSource
}

// NewStore creates an empty Store using the wall clock
func NewStore() *Store {
	return NewStoreWithClock(defaultTimeSource{})
}

// NewStoreWithClock creates an empty Store with a custom time source for
// the calendar filters
func NewStoreWithClock(clock TimeSource) *Store {
	return &Store{
		selected: make(map[string]struct{}),
		clock:    clock,
	}
}

// Insert places doc at the front
func (s *Store) Insert(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = slices.Insert(s.docs, 0, doc)
}

// Merge adds the documents whose ids are not already present and returns
// how many were added. Each one goes before the first document captured
// strictly earlier, so the store stays most recent first. Existing
// documents are never overwritten.
func (s *Store) Merge(docs []*Document) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.docs))
	for _, doc := range s.docs {
		known[doc.ID] = struct{}{}
	}

	added := 0
	for _, doc := range docs {
		if _, ok := known[doc.ID]; ok {
			continue
		}
		known[doc.ID] = struct{}{}
		at := slices.IndexFunc(s.docs, func(existing *Document) bool {
			return existing.CreatedAt.Before(doc.CreatedAt)
		})
		if at < 0 {
			at = len(s.docs)
		}
		s.docs = slices.Insert(s.docs, at, doc)
		added++
	}
	return added
}

// Get returns the document with id
func (s *Store) Get(id string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return nil, false
}

// Len returns the number of documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Documents returns a snapshot of every document
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.docs)
}

// Delete removes the documents with the given ids, dropping them from the
// selection too, and returns how many were removed
func (s *Store) Delete(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ids)
}

func (s *Store) deleteLocked(ids []string) int {
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
		delete(s.selected, id)
	}
	before := len(s.docs)
	s.docs = slices.DeleteFunc(s.docs, func(doc *Document) bool {
		_, ok := remove[doc.ID]
		return ok
	})
	return before - len(s.docs)
}

// DeleteAt removes the documents at the given offsets of the full ordering.
// Out of range offsets are ignored.
func (s *Store) DeleteAt(offsets ...int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(offsets))
	for _, offset := range offsets {
		if offset >= 0 && offset < len(s.docs) {
			ids = append(ids, s.docs[offset].ID)
		}
	}
	return s.deleteLocked(ids)
}

// Clear removes every document and resets the selection
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.selected = make(map[string]struct{})
}

// View applies filter and then narrows by query
func (s *Store) View(filter ScanFilter, query string) []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(filter, query)
}

func (s *Store) viewLocked(filter ScanFilter, query string) []*Document {
	now := s.clock.Now()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.Match(doc, now) && doc.MatchesQuery(query) {
			out = append(out, doc)
		}
	}
	return out
}

// Search is View over every document
func (s *Store) Search(query string) []*Document {
	return s.View(FilterAll, query)
}

// FolderContents returns the documents matching folder
func (s *Store) FolderContents(folder *SmartFolder) []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0)
	for _, doc := range s.docs {
		if folder.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// ToggleSelection flips the selection state of id and reports whether it
// is now selected. Unknown ids are never selected.
func (s *Store) ToggleSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	for _, doc := range s.docs {
		if doc.ID == id {
			s.selected[id] = struct{}{}
			return true
		}
	}
	return false
}

// IsSelected reports whether id is selected
func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// SelectAll replaces the selection with the current filtered view
func (s *Store) SelectAll(filter ScanFilter, query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.viewLocked(filter, query)
	s.selected = make(map[string]struct{}, len(view))
	for _, doc := range view {
		s.selected[doc.ID] = struct{}{}
	}
	return len(view)
}

// Selected returns the selected documents in store order
func (s *Store) Selected() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.selected))
	for _, doc := range s.docs {
		if _, ok := s.selected[doc.ID]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// ClearSelection empties the selection
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]struct{})
}

// DeleteSelected removes every selected document
func (s *Store) DeleteSelected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	return s.deleteLocked(ids)
}
