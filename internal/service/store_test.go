package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/database"
	"github.com/jask/glossalign/internal/database/repository"
	"github.com/jask/glossalign/internal/partition"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, nil)
}

const book = `\id JHN
\c 1
\v 1 In the beginning was the Word.
\v 2 He was with God.
`

func TestStoreImportUSFM(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	res, err := st.Import(ctx, "/books/john.usfm", strings.NewReader(book))
	require.NoError(t, err)
	require.Equal(t, DocumentID("/books/john.usfm"), res.ID)
	require.Equal(t, "john.usfm", res.Name)
	require.Equal(t, 2, res.Sentences)

	doc, err := st.Load(ctx, res.ID)
	require.NoError(t, err)
	require.Equal(t, "john.usfm", doc.Name)
	require.Len(t, doc.Sentences, 2)
	require.Equal(t, "He was with God.", doc.Sentences[1].SourceString)

	// importing the same path again replaces rather than duplicates
	_, err = st.Import(ctx, "/books/john.usfm", strings.NewReader(book))
	require.NoError(t, err)
	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, list[0].Sentences)
}

func TestStoreImportJSONKeepsID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	src := `{"id":"saved-1","name":"John 1","sentences":[{"chunks":[{"source":[{"id":"a","content":"Amen"}],"gloss":"truly"}],"sourceString":"Amen"}]}`
	res, err := st.Import(ctx, "/x/john.JSON", strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, "saved-1", res.ID)
	require.Equal(t, "John 1", res.Name)

	doc, err := st.Load(ctx, "saved-1")
	require.NoError(t, err)
	require.Equal(t, "truly", doc.Sentences[0].Chunks[0].Gloss)
}

func TestStoreImportRejectsBadInput(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	_, err := st.Import(context.Background(), "broken.json", strings.NewReader("{"))
	require.Error(t, err)
	_, err = st.Import(context.Background(), "broken.usfm", strings.NewReader("\\c\n"))
	require.Error(t, err)
}

func TestStoreLoadMissing(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	_, err := st.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrDocumentNotFound)
	require.ErrorIs(t, st.Delete(context.Background(), "nope"), ErrDocumentNotFound)
}

func TestStoreSaveSessionPersistsEdits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	res, err := st.Import(ctx, "john.usfm", strings.NewReader(book))
	require.NoError(t, err)
	doc, err := st.Load(ctx, res.ID)
	require.NoError(t, err)

	sess := NewSession(nil)
	sess.Open(doc, 1)
	require.Equal(t, partition.ChangeSplit, sess.Apply(partition.Boundary(0, 2)))
	require.NoError(t, sess.SetGloss(0, "he was"))
	require.NoError(t, st.SaveSession(ctx, sess))
	require.Empty(t, sess.Dirty())

	reloaded, err := st.Load(ctx, res.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sess.Document().Sentences, reloaded.Sentences, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("reloaded sentences differ (-session +db):\n%s", diff)
	}
	require.Equal(t, []string{"he was", ""}, reloaded.Sentences[1].Glosses())

	require.Error(t, st.Save(ctx, reloaded, []int{7}))
}

func TestStoreSaveIsAllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	res, err := st.Import(ctx, "john.usfm", strings.NewReader(book))
	require.NoError(t, err)
	doc, err := st.Load(ctx, res.ID)
	require.NoError(t, err)

	sess := NewSession(nil)
	sess.Open(doc, 0)
	require.Equal(t, partition.ChangeSplit, sess.Apply(partition.Boundary(0, 2)))
	require.True(t, sess.Next())
	require.Equal(t, partition.ChangeSplit, sess.Apply(partition.Boundary(0, 2)))

	_, err = st.DB.ExecContext(ctx, `CREATE TRIGGER reject_chunks BEFORE INSERT ON chunks
	WHEN NEW.sentence_id = '`+repository.SentenceID(res.ID, 1)+`'
	BEGIN SELECT RAISE(ABORT, 'chunk rejected'); END`)
	require.NoError(t, err)

	err = st.SaveSession(ctx, sess)
	require.ErrorContains(t, err, "chunk rejected")
	require.Equal(t, []int{0, 1}, sess.Dirty())
	stored, err := st.Load(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, stored.Sentences[0].Chunks, 1, "first sentence must roll back with the second")

	_, err = st.DB.ExecContext(ctx, `DROP TRIGGER reject_chunks`)
	require.NoError(t, err)
	require.NoError(t, st.SaveSession(ctx, sess))
	stored, err = st.Load(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, stored.Sentences[0].Chunks, 2)
	require.Len(t, stored.Sentences[1].Chunks, 2)
}

func TestStoreExportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	res, err := st.Import(ctx, "john.usfm", strings.NewReader(book))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "john.json")
	require.NoError(t, st.ExportFile(ctx, res.ID, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	doc, err := alignment.ReadJSON(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, res.ID, doc.ID)
	require.Len(t, doc.Sentences, 2)
	require.Equal(t, "1:1:0", doc.Sentences[0].Sources()[0].ID)
}

func TestStoreDeleteAndReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	core, logs := observer.New(zapcore.InfoLevel)
	st.Log = zap.New(core)
	a, err := st.Import(ctx, "a.usfm", strings.NewReader(book))
	require.NoError(t, err)
	_, err = st.Import(ctx, "b.usfm", strings.NewReader(book))
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, a.ID))
	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, st.Reset(ctx))
	require.Equal(t, 1, logs.FilterMessage("documents reset").Len())
	require.Zero(t, logs.FilterMessage("vacuum after reset").Len())
	list, err = st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}
