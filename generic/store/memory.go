// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopbook/shopbook/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	docs map[generic.Ref]generic.Document
	seq  int64
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[generic.Ref]generic.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(_ context.Context, ref generic.Ref) (*generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ref]
	if !ok {
		return nil, nil
	}
	doc = cloneDoc(doc)
	return &doc, nil
}

func (m *Memory) Query(_ context.Context, collection generic.Collection, filters ...generic.Filter) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Document
	for ref, doc := range m.docs {
		if ref.Collection != collection {
			continue
		}
		ok, err := generic.Matches(doc.Data, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, cloneDoc(doc))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (m *Memory) Create(_ context.Context, ref generic.Ref, data any) error {
	body, err := generic.Encode(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[ref]; exists {
		return generic.ErrAlreadyExists
	}
	m.seq++
	now := m.now()
	m.docs[ref] = generic.Document{Ref: ref, Seq: m.seq, Data: body, CreatedAt: now, UpdatedAt: now}
	return nil
}

// Update holds the write lock for the whole read-modify-write, so fn must
// not call back into the store.
func (m *Memory) Update(_ context.Context, ref generic.Ref, fn generic.UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref]
	if !ok {
		return generic.ErrDocumentNotFound
	}
	next, err := fn(cloneDoc(doc))
	if err != nil {
		return err
	}
	body, err := generic.Encode(next)
	if err != nil {
		return err
	}
	doc.Data = body
	doc.UpdatedAt = m.now()
	m.docs[ref] = doc
	return nil
}

// BatchWrite stages every write against a scratch map and only swaps it
// in once all of them succeeded.
func (m *Memory) BatchWrite(_ context.Context, writes []generic.Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[generic.Ref]generic.Document, len(writes))
	deleted := make(map[generic.Ref]bool)
	now := m.now()

	for _, w := range writes {
		if w.Delete {
			deleted[w.Ref] = true
			delete(staged, w.Ref)
			continue
		}
		doc, ok := staged[w.Ref]
		if !ok {
			doc, ok = m.docs[w.Ref]
		}
		if !ok || deleted[w.Ref] {
			return generic.ErrDocumentNotFound
		}
		body, err := generic.MergeFields(doc.Data, w.Fields)
		if err != nil {
			return err
		}
		doc.Data = body
		doc.UpdatedAt = now
		staged[w.Ref] = doc
	}

	for ref := range deleted {
		delete(m.docs, ref)
	}
	for ref, doc := range staged {
		m.docs[ref] = doc
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, ref generic.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, ref)
	return nil
}

// Len returns the number of documents in a collection.
func (m *Memory) Len(collection generic.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for ref := range m.docs {
		if ref.Collection == collection {
			n++
		}
	}
	return n
}

func cloneDoc(d generic.Document) generic.Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
