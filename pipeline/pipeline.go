// Package pipeline wires configuration, the portal session and the stores
// into the two phases of a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sameep-scrape/artifacts"
	"github.com/sameep-scrape/checkpoint"
	"github.com/sameep-scrape/collector"
	"github.com/sameep-scrape/config"
	"github.com/sameep-scrape/docstore"
	"github.com/sameep-scrape/fetcher"
	"github.com/sameep-scrape/model"
	"github.com/sameep-scrape/scrapers"
	"github.com/sirupsen/logrus"
)

// Runner runs the phases with one configuration
type Runner struct {
	Config config.Config
	Logger logrus.FieldLogger
	// Launch starts the browser; nil means Chrome
	Launch scrapers.Launcher
	Now    func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// openPortal launches the browser and logs in
func (r *Runner) openPortal(ctx context.Context) (*scrapers.SameepPortal, error) {
	if err := r.Config.RequireCredentials(); err != nil {
		return nil, err
	}
	sess, err := scrapers.Open(r.Config.PortalConfig(), r.Logger, r.Launch)
	if err != nil {
		return nil, err
	}
	if err := sess.Login(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return scrapers.NewPortal(sess), nil
}

// Collect runs Phase 1 and writes its checkpoint. The checkpoint is written
// even when the context is cancelled mid walk.
func (r *Runner) Collect(ctx context.Context) (*model.CollectionRun, string, error) {
	portal, err := r.openPortal(ctx)
	if err != nil {
		return nil, "", err
	}
	defer portal.Close()

	walker := collector.NewWalker(portal, collector.Options{
		Retry:        r.Config.RetryPolicy(),
		AccountPause: r.Config.Tunables.AccountPause.Duration,
		Now:          r.Now,
	}, r.Logger)

	run, walkErr := walker.Collect(ctx)

	path, err := checkpoint.Save(r.Config.DataDir, r.Config.CheckpointPrefix, run, r.now())
	if err != nil {
		return run, "", errors.Join(walkErr, err)
	}
	r.Logger.Infof("Checkpoint written: %s", path)
	return run, path, walkErr
}

// Fetch runs Phase 2 on the checkpoint at path, or on the latest one when
// path is empty, and writes the results back into it.
func (r *Runner) Fetch(ctx context.Context, path string) (*model.CollectionRun, fetcher.Report, string, error) {
	var rep fetcher.Report

	if path == "" {
		latest, err := checkpoint.Latest(r.Config.DataDir, r.Config.CheckpointPrefix)
		if err != nil {
			return nil, rep, "", err
		}
		path = latest
	}
	run, drift, err := checkpoint.Load(path)
	if err != nil {
		return nil, rep, path, err
	}
	if drift != nil {
		r.Logger.Warnf("Checkpoint counters recomputed: %v", drift)
	}
	r.Logger.Infof("Loaded checkpoint %s (%d accounts)", path, run.TotalAccounts)

	store, closeStore, err := r.openArtifacts(ctx)
	if err != nil {
		return run, rep, path, err
	}
	defer closeStore()

	if err := store.SyncStructure(ctx, run); err != nil {
		return run, rep, path, fmt.Errorf("sync structure: %w", err)
	}

	pending := 0
	for _, acc := range run.Accounts {
		pending += acc.PendingDocuments()
	}

	var portal fetcher.Portal
	if pending > 0 {
		p, err := r.openPortal(ctx)
		if err != nil {
			return run, rep, path, err
		}
		defer p.Close()
		portal = p
	} else {
		r.Logger.Info("No pending documents, browser not started")
	}

	dl, err := fetcher.NewHTTPDownloader(r.Config.Tunables.DownloadTimeout.Duration, r.Config.Tunables.FetchRate)
	if err != nil {
		return run, rep, path, err
	}
	f := fetcher.New(portal, dl, store, fetcher.Options{
		Retry:   r.Config.RetryPolicy(),
		MinSize: r.Config.Tunables.MinDocumentSize,
	}, r.Logger)

	rep, fetchErr := f.FetchAll(ctx, run)
	if err := checkpoint.Rewrite(path, run); err != nil {
		return run, rep, path, errors.Join(fetchErr, err)
	}
	return run, rep, path, fetchErr
}

// openArtifacts connects the document store and the mirror configured.
// Connection failures are fatal for the run.
func (r *Runner) openArtifacts(ctx context.Context) (*artifacts.Store, func(), error) {
	dc, err := r.Config.DocstoreConfig()
	if err != nil {
		return nil, nil, err
	}
	docs, err := docstore.Open(ctx, dc, r.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("document store: %w", err)
	}

	var mirror artifacts.Mirror
	if r.Config.MirrorEnabled() {
		m, err := artifacts.NewGCSMirror(ctx, r.Config.ArtifactBucket, r.Config.ArtifactBucketPrefix, dc.CredentialsJSON)
		if err != nil {
			if docs != nil {
				docs.Close()
			}
			return nil, nil, fmt.Errorf("artifact mirror: %w", err)
		}
		mirror = m
	}

	closeAll := func() {
		if docs != nil {
			if err := docs.Close(); err != nil {
				r.Logger.Warnf("Closing document store: %v", err)
			}
		}
		if mirror != nil {
			mirror.Close()
		}
	}
	return artifacts.New(r.Config.ArtifactDir, docs, mirror, r.Logger), closeAll, nil
}
