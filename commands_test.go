package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sameep-scrape/checkpoint"
	"github.com/sameep-scrape/config"
	"github.com/sameep-scrape/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func useTestConfig(t *testing.T) string {
	dir := t.TempDir()
	cfg = config.Config{
		DataDir:          dir,
		ArtifactDir:      filepath.Join(dir, "pdfs"),
		CheckpointPrefix: "sameep-datos",
		DocstoreDriver:   "none",
		Tunables:         config.DefaultTunables(),
	}
	logger = logrus.New()
	logger.SetOutput(io.Discard)
	return dir
}

// A checkpoint without any document still gets its summary.
func TestFetchPrintsSummaryWithNothingToDo(t *testing.T) {
	dir := useTestConfig(t)
	run := model.NewCollectionRun(time.Now())
	run.Accounts = []*model.Account{{
		ID: "61141", ListingID: "0001", Status: model.StatusDone,
		SupplyPoints: []*model.SupplyPoint{{
			ID: "61141_1", AccountID: "61141", SupplyNumber: "1", Status: model.StatusDone,
			Statements: []*model.Statement{{ID: "61141_1_0", AccountID: "61141", SupplyPointID: "61141_1"}},
		}},
	}}
	path, err := checkpoint.Save(dir, "sameep-datos", run, time.Now())
	require.NoError(t, err)

	var out bytes.Buffer
	fetchCmd.SetOut(&out)
	fetchCmd.SetContext(context.Background())
	t.Cleanup(func() { fetchCmd.SetOut(nil) })

	require.NoError(t, fetchCmd.RunE(fetchCmd, []string{path}))
	require.Contains(t, out.String(), "Already fetched")
	require.Contains(t, out.String(), "0.0%")
}

func TestFetchWithoutCheckpointPrintsNothing(t *testing.T) {
	useTestConfig(t)

	var out bytes.Buffer
	fetchCmd.SetOut(&out)
	fetchCmd.SetContext(context.Background())
	t.Cleanup(func() { fetchCmd.SetOut(nil) })

	err := fetchCmd.RunE(fetchCmd, nil)
	require.ErrorIs(t, err, checkpoint.ErrNoCheckpoint)
	require.Empty(t, out.String())
}
