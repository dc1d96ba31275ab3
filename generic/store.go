/*
store.go - Document store contract

PURPOSE:
  Defines the interface between the ledger logic and persistence. The
  store holds collections of JSON documents; domain packages encode their
  typed records into it and decode them back out.

KEY OPERATIONS:
  Get:         Read one document (nil when absent)
  Query:       Equality-filtered scan of one collection, in creation order
  Create:      Insert a new document, fails on id clash
  Update:      Transactional read-modify-write of one document
  BatchWrite:  All-or-nothing list of field merges and deletes
  Delete:      Remove one document (no-op when absent)

ATOMICITY:
  Each call is atomic on its own. Multi-step sequences built from several
  calls (write, then recalculate, then mirror sync) are NOT wrapped in one
  transaction; see errors.go for how partial failures heal.

CREATION SEQUENCE:
  Every document gets a store-assigned, strictly increasing Seq on Create.
  Ledgers use it to order transactions that share the same date.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, for tests and demos
  - store/sqlstore/sqlstore.go: SQLite and PostgreSQL

SEE ALSO:
  - bookkeeping/: The only writer of ledger documents
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// REFERENCES AND DOCUMENTS
// =============================================================================

// Collection names a group of documents of the same kind.
type Collection string

// Ref addresses one document.
type Ref struct {
	Collection Collection
	ID         string
}

func (r Ref) String() string { return string(r.Collection) + "/" + r.ID }

// Document is a stored record with its store-maintained metadata.
type Document struct {
	Ref       Ref
	Seq       int64
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.Ref, err)
	}
	return nil
}

// Filter is an equality predicate on a top-level string field.
// An empty Value also matches documents where the field is absent.
type Filter struct {
	Field string
	Value string
}

// Eq builds a Filter.
func Eq(field, value string) Filter { return Filter{Field: field, Value: value} }

// Fields is a partial update: each key replaces the top-level field of the
// same name.
type Fields map[string]any

// Write is one element of a batch.
type Write struct {
	Ref    Ref
	Fields Fields
	Delete bool
}

// SetFields builds a merge write.
func SetFields(ref Ref, fields Fields) Write { return Write{Ref: ref, Fields: fields} }

// DeleteDoc builds a delete write.
func DeleteDoc(ref Ref) Write { return Write{Ref: ref, Delete: true} }

// UpdateFunc receives the current document and returns its replacement
// body. Returning an error aborts the update and is passed through as-is.
type UpdateFunc func(current Document) (any, error)

// =============================================================================
// STORE
// =============================================================================

// Store is the document store every service persists through.
type Store interface {
	// Get returns the document, or nil with no error when it does not exist.
	Get(ctx context.Context, ref Ref) (*Document, error)

	// Query returns the documents of a collection matching every filter,
	// ordered by creation sequence.
	Query(ctx context.Context, collection Collection, filters ...Filter) ([]Document, error)

	// Create inserts data under ref. Returns ErrAlreadyExists on clash.
	Create(ctx context.Context, ref Ref, data any) error

	// Update atomically reads the document, calls fn, and stores its result.
	// Returns ErrDocumentNotFound if the document does not exist.
	Update(ctx context.Context, ref Ref, fn UpdateFunc) error

	// BatchWrite applies all writes or none. A merge into a missing
	// document fails the whole batch with ErrDocumentNotFound; deleting a
	// missing document is not an error.
	BatchWrite(ctx context.Context, writes []Write) error

	// Delete removes the document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, ref Ref) error
}

// =============================================================================
// ENCODING HELPERS - Shared by store implementations
// =============================================================================

// Encode marshals a document body. json.RawMessage passes through.
func Encode(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// MergeFields applies a partial update to an encoded document body.
func MergeFields(data json.RawMessage, fields Fields) (json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("merge fields: %w", err)
		}
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("merge field %q: %w", k, err)
		}
		body[k] = b
	}
	return json.Marshal(body)
}

// Matches reports whether an encoded body satisfies every filter.
func Matches(data json.RawMessage, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		return false, fmt.Errorf("match filters: %w", err)
	}
	for _, f := range filters {
		if fieldString(body[f.Field]) != f.Value {
			return false, nil
		}
	}
	return true, nil
}

func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// ValidField reports whether name is safe to use as a filter field. SQL
// stores embed it in a JSON path expression.
func ValidField(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
