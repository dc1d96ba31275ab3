package store_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbook/shopbook/generic"
	"github.com/shopbook/shopbook/generic/store"
)

type note struct {
	Owner string `json:"owner"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func ref(id string) generic.Ref { return generic.Ref{Collection: "notes", ID: id} }

func get(t *testing.T, m *store.Memory, id string) (note, bool) {
	t.Helper()
	doc, err := m.Get(context.Background(), ref(id))
	require.NoError(t, err)
	if doc == nil {
		return note{}, false
	}
	var n note
	require.NoError(t, doc.Decode(&n))
	return n, true
}

func TestMemory_CreateAssignsIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.Create(ctx, ref("b"), note{Owner: "x"}))
	require.NoError(t, m.Create(ctx, ref("a"), note{Owner: "x"}))
	require.NoError(t, m.Create(ctx, generic.Ref{Collection: "other", ID: "z"}, note{Owner: "x"}))

	assert.ErrorIs(t, m.Create(ctx, ref("a"), note{}), generic.ErrAlreadyExists)

	docs, err := m.Query(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].Ref.ID, "creation order, not id order")
	assert.Equal(t, "a", docs[1].Ref.ID)
	assert.Less(t, docs[0].Seq, docs[1].Seq)
}

func TestMemory_QueryFilters(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Create(ctx, ref("1"), note{Owner: "ann", Text: "hi"}))
	require.NoError(t, m.Create(ctx, ref("2"), note{Owner: "bob", Text: "hi"}))
	require.NoError(t, m.Create(ctx, ref("3"), note{Owner: "ann", Text: "yo"}))

	docs, err := m.Query(ctx, "notes", generic.Eq("owner", "ann"), generic.Eq("text", "hi"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].Ref.ID)
}

func TestMemory_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Create(ctx, ref("1"), note{Text: "orig"}))

	doc, err := m.Get(ctx, ref("1"))
	require.NoError(t, err)
	copy(doc.Data[bytes.Index(doc.Data, []byte("orig")):], "XXXX")

	n, ok := get(t, m, "1")
	require.True(t, ok)
	assert.Equal(t, "orig", n.Text)

	missing, err := m.Get(ctx, ref("nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_Update(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Create(ctx, ref("1"), note{Text: "a", Count: 1}))

	err := m.Update(ctx, ref("1"), func(doc generic.Document) (any, error) {
		var n note
		if err := doc.Decode(&n); err != nil {
			return nil, err
		}
		n.Count++
		return n, nil
	})
	require.NoError(t, err)
	n, _ := get(t, m, "1")
	assert.Equal(t, 2, n.Count)

	boom := errors.New("boom")
	err = m.Update(ctx, ref("1"), func(generic.Document) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom, "fn errors pass through unchanged")
	n, _ = get(t, m, "1")
	assert.Equal(t, 2, n.Count)

	err = m.Update(ctx, ref("missing"), func(generic.Document) (any, error) { return note{}, nil })
	assert.ErrorIs(t, err, generic.ErrDocumentNotFound)
}

func TestMemory_BatchWriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Create(ctx, ref("1"), note{Text: "one"}))
	require.NoError(t, m.Create(ctx, ref("2"), note{Text: "two"}))

	// WHEN: a batch whose last write targets a missing document
	err := m.BatchWrite(ctx, []generic.Write{
		generic.SetFields(ref("1"), generic.Fields{"count": 10}),
		generic.DeleteDoc(ref("2")),
		generic.SetFields(ref("ghost"), generic.Fields{"count": 1}),
	})

	// THEN: nothing was applied
	assert.ErrorIs(t, err, generic.ErrDocumentNotFound)
	n, _ := get(t, m, "1")
	assert.Equal(t, 0, n.Count)
	_, ok := get(t, m, "2")
	assert.True(t, ok)

	// WHEN: a valid batch
	require.NoError(t, m.BatchWrite(ctx, []generic.Write{
		generic.SetFields(ref("1"), generic.Fields{"count": 10}),
		generic.SetFields(ref("1"), generic.Fields{"text": "uno"}),
		generic.DeleteDoc(ref("2")),
		generic.DeleteDoc(ref("never-existed")),
	}))

	// THEN: merges stack and the delete landed
	n, _ = get(t, m, "1")
	assert.Equal(t, note{Text: "uno", Count: 10}, n)
	_, ok = get(t, m, "2")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len("notes"))
}

func TestMemory_BatchWriteRejectsMergeAfterDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Create(ctx, ref("1"), note{}))

	err := m.BatchWrite(ctx, []generic.Write{
		generic.DeleteDoc(ref("1")),
		generic.SetFields(ref("1"), generic.Fields{"count": 1}),
	})
	assert.ErrorIs(t, err, generic.ErrDocumentNotFound)
	_, ok := get(t, m, "1")
	assert.True(t, ok)
}

func TestMemory_DeleteMissingIsNoop(t *testing.T) {
	m := store.NewMemory()
	assert.NoError(t, m.Delete(context.Background(), ref("nope")))
}
