package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiori/internal/cluster"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/keyword"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 64

func newTestEngine(t *testing.T) (*Engine, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	enc := embedding.NewEncoder(embedding.NewMockEmbedder(testDims), embedding.MockModelTag(testDims), embedding.WithCacheSize(100))
	t.Cleanup(func() { _ = enc.Close() })

	extractor, err := keyword.New()
	require.NoError(t, err)

	eng := NewEngine(store, enc, cluster.NewEngine(extractor),
		config.SearchConfig{DefaultLimit: 10, MaxLimit: 50},
		config.ClusterConfig{DefaultK: 2, DefaultPerCluster: 2, Keywords: 5})
	return eng, store
}

func intPtr(v int) *int { return &v }

func addNotes(t *testing.T, eng *Engine, owner string, texts ...string) []*models.Note {
	t.Helper()
	notes := make([]*models.Note, len(texts))
	for i, text := range texts {
		n, err := eng.CreateNote(context.Background(), owner, &models.NoteInput{Text: text})
		require.NoError(t, err)
		notes[i] = n
	}
	return notes
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "a b c", Preprocess("  a \n\t b   c  "))
	assert.Equal(t, "", Preprocess(" \n "))
}

func TestEngine_CreateNoteEmbeds(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	note, err := eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "  tides  and\ncurrents "})
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "tides and currents", note.Text)

	n, err := store.CountEmbeddings(ctx, "alice", eng.Model())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEngine_CreateNoteValidation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	_, err := eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "   "})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)

	missing := "no-such-book"
	_, err = eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "x", BookID: &missing})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_BookOwnership(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	book, err := eng.CreateBook(ctx, "alice", &models.BookInput{Title: "Moby Dick"})
	require.NoError(t, err)

	_, err = eng.CreateNote(ctx, "bob", &models.NoteInput{Text: "whales", BookID: &book.ID})
	assert.ErrorIs(t, err, storage.ErrNotFound, "notes cannot be attached to another owner's book")

	note, err := eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "whales", BookID: &book.ID})
	require.NoError(t, err)
	require.NotNil(t, note.BookID)
	assert.Equal(t, book.ID, *note.BookID)

	books, err := eng.ListBooks(ctx, "alice", models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestEngine_SearchRanksExactMatchFirst(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	notes := addNotes(t, eng, "alice",
		"ocean tides and currents",
		"baking sourdough bread",
		"mountain hiking trails",
	)

	resp, err := eng.Search(ctx, "alice", &models.SearchQuery{Query: "baking sourdough bread", K: intPtr(2)})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, notes[1].ID, resp.Results[0].NoteID)
	assert.Equal(t, "baking sourdough bread", resp.Results[0].Text)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)
	assert.GreaterOrEqual(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.Equal(t, embedding.MockModelTag(testDims), resp.Model)
	assert.Equal(t, 2, resp.Total)
}

func TestEngine_SearchDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	addNotes(t, eng, "alice", "one", "two", "three")

	resp, err := eng.Search(ctx, "alice", &models.SearchQuery{Query: "one"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3, "fewer notes than the default k")

	_, err = eng.Search(ctx, "alice", &models.SearchQuery{Query: ""})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)
	_, err = eng.Search(ctx, "alice", &models.SearchQuery{Query: "one", K: intPtr(0)})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)
	_, err = eng.Search(ctx, "alice", &models.SearchQuery{Query: "one", K: intPtr(51)})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)
}

func TestEngine_SearchIsolatesOwners(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	addNotes(t, eng, "alice", "private thoughts")

	resp, err := eng.Search(ctx, "bob", &models.SearchQuery{Query: "private thoughts"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestEngine_SearchBookFilter(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	book, err := eng.CreateBook(ctx, "alice", &models.BookInput{Title: "Sea"})
	require.NoError(t, err)

	inBook, err := eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "waves", BookID: &book.ID})
	require.NoError(t, err)
	addNotes(t, eng, "alice", "waves crashing")

	resp, err := eng.Search(ctx, "alice", &models.SearchQuery{Query: "waves", BookID: &book.ID})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, inBook.ID, resp.Results[0].NoteID)
}

func TestEngine_Cluster(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	addNotes(t, eng, "alice",
		"ocean tides ocean currents",
		"ocean waves ocean tides",
		"sourdough bread baking",
		"bread baking yeast",
	)

	resp, err := eng.Cluster(ctx, "alice", &models.ClusterRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Notes)
	require.NotEmpty(t, resp.Clusters)

	total := 0
	for _, c := range resp.Clusters {
		total += c.Size
		assert.LessOrEqual(t, len(c.Representatives), 2)
		for _, r := range c.Representatives {
			assert.NotEmpty(t, r.Text)
		}
	}
	assert.Equal(t, 4, total)
}

func TestEngine_ClusterErrors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	addNotes(t, eng, "alice", "only one note")

	_, err := eng.Cluster(ctx, "alice", &models.ClusterRequest{K: intPtr(2)})
	var insufficient *cluster.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 2, insufficient.Required)
	assert.Equal(t, 1, insufficient.Got)

	_, err = eng.Cluster(ctx, "alice", &models.ClusterRequest{K: intPtr(1)})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)
	_, err = eng.Cluster(ctx, "alice", &models.ClusterRequest{K: intPtr(2), PerCluster: intPtr(11)})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)
}

func TestEngine_ImportNote(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	_, err := eng.ImportNote(ctx, "alice", &models.NoteInput{Text: "no id"})
	assert.ErrorIs(t, err, vector.ErrInvalidParameter)

	first, err := eng.ImportNote(ctx, "alice", &models.NoteInput{ID: "file-1", Text: "first draft"})
	require.NoError(t, err)
	again, err := eng.ImportNote(ctx, "alice", &models.NoteInput{ID: "file-1", Text: "first draft"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = eng.ImportNote(ctx, "alice", &models.NoteInput{ID: "file-1", Text: "second draft"})
	require.NoError(t, err)
	got, err := eng.GetNote(ctx, "alice", "file-1")
	require.NoError(t, err)
	assert.Equal(t, "second draft", got.Text)

	n, err := store.CountNotes(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = store.CountEmbeddings(ctx, "alice", eng.Model())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	resp, err := eng.Search(ctx, "alice", &models.SearchQuery{Query: "second draft", K: intPtr(1)})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)
}

func TestEngine_Reembed(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateNote(ctx, &models.Note{ID: fmt.Sprintf("n%d", i), OwnerID: "alice", Text: fmt.Sprintf("note %d", i)}))
	}
	res, err := eng.Reembed(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Embedded)
	assert.Equal(t, eng.Model(), res.Model)

	res, err = eng.Reembed(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, res.Embedded)
}

func TestEngine_DeleteAndStatus(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	notes := addNotes(t, eng, "alice", "keep", "drop")

	require.NoError(t, eng.DeleteNote(ctx, "alice", notes[1].ID))
	assert.ErrorIs(t, eng.DeleteNote(ctx, "alice", notes[1].ID), storage.ErrNotFound)
	_, err := eng.GetNote(ctx, "alice", notes[1].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listed, err := eng.ListNotes(ctx, "alice", models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, notes[0].ID, listed[0].ID)

	status, err := eng.Status(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, status.Notes)
	assert.EqualValues(t, 1, status.EmbeddedNotes)
	assert.Equal(t, testDims, status.Dimensions)
	assert.Equal(t, "sqlite", status.StorageDriver)
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }
func (f failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}
func (f failingEmbedder) Dimensions() int { return testDims }
func (f failingEmbedder) Close() error    { return nil }

func TestEngine_EncoderFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	enc := embedding.NewEncoder(failingEmbedder{err: embedding.ErrCircuitOpen}, embedding.MockModelTag(testDims))
	extractor, err := keyword.New()
	require.NoError(t, err)
	eng := NewEngine(store, enc, cluster.NewEngine(extractor),
		config.SearchConfig{DefaultLimit: 10, MaxLimit: 50},
		config.ClusterConfig{DefaultK: 2, DefaultPerCluster: 2, Keywords: 5})

	_, err = eng.CreateNote(ctx, "alice", &models.NoteInput{Text: "tides and currents"})
	require.ErrorIs(t, err, embedding.ErrCircuitOpen)

	_, err = eng.ImportNote(ctx, "alice", &models.NoteInput{ID: "file-1", Text: "imported text"})
	require.ErrorIs(t, err, embedding.ErrCircuitOpen)

	n, err := store.CountNotes(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n, "a note that cannot be embedded is not stored")
}
