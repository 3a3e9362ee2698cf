package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sameep-scrape/model"
	"github.com/stretchr/testify/require"
)

func sampleRun() *model.CollectionRun {
	run := model.NewCollectionRun(time.Date(2025, 6, 23, 10, 30, 0, 0, time.UTC))
	sp := &model.SupplyPoint{ID: "61141_1", AccountID: "61141", SupplyNumber: "1", Status: model.StatusDone}
	sp.Statements = []*model.Statement{{
		ID: "61141_1_0", AccountID: "61141", SupplyPointID: "61141_1",
		InvoiceNumber: "1-61141-1-23/06/25-3-B-1-84919364", HasDocument: true,
		DocumentURL: "https://apps8.chaco.gob.ar/sameepweb/servlet/aimprimirsaldo?1",
		TotalAmount: 37741.29,
	}}
	run.Accounts = []*model.Account{{
		ID: "61141", ListingID: "0001", DisplayName: "PEREZ JUAN", Status: model.StatusDone,
		SupplyPoints: []*model.SupplyPoint{sp},
	}}
	return run
}

func TestFilename(t *testing.T) {
	name := Filename("sameep-datos", time.Date(2025, 6, 23, 10, 30, 5, 0, time.UTC))
	require.Equal(t, "sameep-datos-2025-06-23T103005.000Z.json", name)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	run := sampleRun()

	path, err := Save(dir, "sameep-datos", run, run.CollectedAt)
	require.NoError(t, err)

	loaded, drift, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, drift)
	if diff := cmp.Diff(run, loaded); diff != "" {
		t.Fatalf("checkpoint mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRecountsDriftedCounters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sameep-datos-x.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"accounts":[{"id":"1","listingId":"1","status":"done","supplyPoints":[]}],"totalAccounts":7,"accountsProcessed":7}`), 0644))

	run, drift, err := Load(path)
	require.NoError(t, err)
	require.ErrorIs(t, drift, model.ErrCounterDrift)
	require.Equal(t, 1, run.TotalAccounts)
	require.Equal(t, 1, run.AccountsProcessed)
}

func TestLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	_, err := Latest(dir, "sameep-datos")
	require.ErrorIs(t, err, ErrNoCheckpoint)

	for _, ts := range []time.Time{
		time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 23, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	} {
		_, err := Save(dir, "sameep-datos", sampleRun(), ts)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other-2099-01-01.json"), []byte(`{}`), 0644))

	latest, err := Latest(dir, "sameep-datos")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sameep-datos-2025-06-23T090000.000Z.json"), latest)
}

func TestRewriteReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	run := sampleRun()
	path, err := Save(dir, "sameep-datos", run, run.CollectedAt)
	require.NoError(t, err)

	run.Accounts[0].SupplyPoints[0].Statements[0].Hash = "d41d8cd98f00b204e9800998ecf8427e"
	require.NoError(t, Rewrite(path, run))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.StatementsFetched)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}
