package artifacts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sameep-scrape/docstore"
	"github.com/sameep-scrape/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func pdf(body string) []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte(body), 200)...)
}

func tree(invoice string) (*model.Account, *model.SupplyPoint, *model.Statement) {
	acc := &model.Account{ID: "61141", ListingID: "0001", DisplayName: "PEREZ, JUAN"}
	sp := &model.SupplyPoint{ID: "61141_1", AccountID: "61141", SupplyNumber: "1"}
	st := &model.Statement{
		ID: "61141_1_0", AccountID: "61141", SupplyPointID: "61141_1",
		InvoiceNumber: invoice, HasDocument: true,
		SuggestedFilename: model.SuggestedFilename(invoice),
	}
	return acc, sp, st
}

type recordingMirror struct {
	names []string
}

func (m *recordingMirror) Put(_ context.Context, name string, _ []byte) error {
	m.names = append(m.names, name)
	return nil
}

func (m *recordingMirror) Close() error { return nil }

func countFiles(t *testing.T, dir string) int {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func TestSaveWritesFileRecordAndMirror(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs := docstore.NewMemory(false)
	mirror := &recordingMirror{}
	s := New(dir, docs, mirror, testLogger())

	acc, sp, st := tree("1-61141-1-23/06/25-3-B-1-84919364")
	out, err := s.Save(ctx, acc, sp, st, pdf("a"))
	require.NoError(t, err)
	require.Equal(t, Saved, out)

	want := filepath.Join(dir, "PEREZ__JUAN", "1-61141-1-23_06_25-3-B-1-84919364.pdf")
	require.Equal(t, want, st.FilePath)
	require.Equal(t, Hash(pdf("a")), st.Hash)
	require.Empty(t, st.Content)
	require.FileExists(t, want)

	require.Len(t, docs.Accounts, 1)
	require.Len(t, docs.SupplyPoints, 1)
	require.Len(t, docs.Statements, 1)
	require.Equal(t, []string{filepath.Join("PEREZ__JUAN", "1-61141-1-23_06_25-3-B-1-84919364.pdf")}, mirror.names)
}

// Two statements in different runs with the same content end up as one
// file and one record.
func TestSameContentAcrossRunsIsStoredOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs := docstore.NewMemory(false)

	acc, sp, first := tree("1-61141-1-23/06/25-3-B-1-84919364")
	out, err := New(dir, docs, nil, testLogger()).Save(ctx, acc, sp, first, pdf("same"))
	require.NoError(t, err)
	require.Equal(t, Saved, out)

	acc, sp, second := tree("1-61141-1-23/07/25-3-B-1-85000000")
	out, err = New(dir, docs, nil, testLogger()).Save(ctx, acc, sp, second, pdf("same"))
	require.NoError(t, err)
	require.Equal(t, Duplicate, out)
	require.Equal(t, first.Hash, second.Hash)
	require.Equal(t, first.FilePath, second.FilePath)

	require.Equal(t, 1, countFiles(t, dir))
	require.Len(t, docs.Statements, 1)
}

func TestDocumentStoreHashShortCircuits(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory(false)

	acc, sp, st := tree("1-61141-1-23/06/25-3-B-1-84919364")
	_, err := New(t.TempDir(), docs, nil, testLogger()).Save(ctx, acc, sp, st, pdf("x"))
	require.NoError(t, err)

	dir := t.TempDir()
	acc, sp, again := tree("1-61141-1-23/06/25-3-B-1-84919364")
	out, err := New(dir, docs, nil, testLogger()).Save(ctx, acc, sp, again, pdf("x"))
	require.NoError(t, err)
	require.Equal(t, Duplicate, out)
	require.NotEmpty(t, again.Hash)
	require.Empty(t, again.FilePath)
	require.Equal(t, 0, countFiles(t, dir))
	require.Len(t, docs.Statements, 1)
}

// flakyDocs fails statement inserts while failInsert is set
type flakyDocs struct {
	*docstore.Memory
	failInsert bool
}

func (d *flakyDocs) InsertStatement(ctx context.Context, st *model.Statement) (bool, error) {
	if d.failInsert {
		return false, errors.New("deadline exceeded")
	}
	return d.Memory.InsertStatement(ctx, st)
}

// A record that could not be written leaves the statement pending, and the
// next Save of the same content writes the missing record.
func TestFailedRecordLeavesStatementPending(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs := &flakyDocs{Memory: docstore.NewMemory(false), failInsert: true}
	s := New(dir, docs, nil, testLogger())

	acc, sp, st := tree("1-61141-1-23/06/25-3-B-1-84919364")
	_, err := s.Save(ctx, acc, sp, st, pdf("a"))
	require.ErrorContains(t, err, "deadline exceeded")
	require.False(t, st.Fetched())
	require.Empty(t, st.FilePath)
	require.Empty(t, docs.Statements)
	require.Equal(t, 1, countFiles(t, dir))

	docs.failInsert = false
	out, err := s.Save(ctx, acc, sp, st, pdf("a"))
	require.NoError(t, err)
	require.Equal(t, Duplicate, out)
	require.True(t, st.Fetched())
	require.NotEmpty(t, st.FilePath)
	require.Len(t, docs.Statements, 1)
	require.Equal(t, 1, countFiles(t, dir))

	// a fresh store over the same directory finds both file and record
	acc, sp, again := tree("1-61141-1-23/06/25-3-B-1-84919364")
	out, err = New(dir, docs, nil, testLogger()).Save(ctx, acc, sp, again, pdf("a"))
	require.NoError(t, err)
	require.Equal(t, Duplicate, out)
	require.Len(t, docs.Statements, 1)
}

func TestNameCollisionGetsHashSuffix(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir, nil, nil, testLogger())

	acc, sp, a := tree("1-61141-1-23/06/25-3-B-1-84919364")
	_, err := s.Save(ctx, acc, sp, a, pdf("one"))
	require.NoError(t, err)

	acc, sp, b := tree("1-61141-1-23/06/25-3-B-1-84919364")
	out, err := s.Save(ctx, acc, sp, b, pdf("two"))
	require.NoError(t, err)
	require.Equal(t, Saved, out)
	require.NotEqual(t, a.FilePath, b.FilePath)
	require.Contains(t, filepath.Base(b.FilePath), b.Hash[:8])
	require.Equal(t, 2, countFiles(t, dir))
}

func TestSyncStructure(t *testing.T) {
	docs := docstore.NewMemory(false)
	acc, sp, _ := tree("1-61141-1-23/06/25-3-B-1-84919364")
	acc.SupplyPoints = []*model.SupplyPoint{sp}
	run := &model.CollectionRun{Accounts: []*model.Account{acc}}

	require.NoError(t, New(t.TempDir(), docs, nil, testLogger()).SyncStructure(context.Background(), run))
	require.Len(t, docs.Accounts, 1)
	require.Len(t, docs.SupplyPoints, 1)
	require.NoError(t, New(t.TempDir(), nil, nil, testLogger()).SyncStructure(context.Background(), run))
}
