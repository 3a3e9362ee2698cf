// Package fetcher runs Phase 2: it revisits every statement of a checkpoint
// that has a document not yet retrieved, captures a fresh reference,
// downloads and validates the document and hands it to the artifact store.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sameep-scrape/artifacts"
	"github.com/sameep-scrape/model"
	"github.com/sameep-scrape/retry"
	"github.com/sameep-scrape/scrapers"
	"github.com/sirupsen/logrus"
)

// Portal is what the fetcher needs from an authenticated portal session
type Portal interface {
	ReturnHome(ctx context.Context) error
	EnterAccount(ctx context.Context, listingID string) error
	StatementPositions(ctx context.Context) (map[string]int, error)
	EnterStatements(ctx context.Context, position int) error
	ListStatementRows(ctx context.Context) ([]scrapers.RawRow, error)
	CaptureDocument(ctx context.Context, row scrapers.RawRow) (*scrapers.DocumentRef, error)
	GoBack(ctx context.Context) error
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Saver persists a validated document
type Saver interface {
	Save(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, st *model.Statement, data []byte) (artifacts.Outcome, error)
}

// DefaultMinSize is the smallest accepted document, in bytes
const DefaultMinSize = 1000

type Options struct {
	Retry   retry.Policy
	MinSize int
}

// Report summarizes a FetchAll run
type Report struct {
	Pending    int
	Succeeded  int
	Duplicates int
	Failed     int
	Skipped    int
}

// Processed counts the statements attempted in this run
func (r Report) Processed() int {
	return r.Succeeded + r.Duplicates + r.Failed
}

// SuccessRate is the share of attempted statements that ended with a
// stored (or already stored) document, in percent.
func (r Report) SuccessRate() float64 {
	if r.Processed() == 0 {
		return 0
	}
	return float64(r.Succeeded+r.Duplicates) * 100 / float64(r.Processed())
}

// persistError marks a failure of the artifact store, which ends the run
type persistError struct {
	err error
}

func (e *persistError) Error() string { return "persist document: " + e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }

// Fetcher runs Phase 2 over one portal session
type Fetcher struct {
	portal     Portal
	downloader Downloader
	store      Saver
	opts       Options
	logger     logrus.FieldLogger
}

func New(portal Portal, downloader Downloader, store Saver, opts Options, logger logrus.FieldLogger) *Fetcher {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.MinSize == 0 {
		opts.MinSize = DefaultMinSize
	}
	return &Fetcher{
		portal:     portal,
		downloader: downloader,
		store:      store,
		opts:       opts,
		logger:     logger.WithField("component", "fetcher"),
	}
}

// FetchAll retrieves every pending document of run, updating the
// statements in place. Statements that already carry a hash are skipped
// without any navigation or download. Per statement failures are counted
// and left pending for the next run; the returned error is the context's
// or an artifact store failure.
func (f *Fetcher) FetchAll(ctx context.Context, run *model.CollectionRun) (Report, error) {
	var rep Report
	for _, acc := range run.Accounts {
		for _, sp := range acc.SupplyPoints {
			for _, st := range sp.Statements {
				if st.HasDocument && st.Fetched() {
					rep.Skipped++
				}
			}
		}
		rep.Pending += acc.PendingDocuments()
	}
	f.logger.Infof("%d document(s) pending, %d already fetched", rep.Pending, rep.Skipped)

	// statements finished in this run, successfully or not
	done := map[*model.Statement]bool{}

	for _, acc := range run.Accounts {
		if acc.PendingDocuments() == 0 {
			continue
		}
		log := f.logger.WithField("account", acc.ID)
		log.Infof("=== Fetching documents of %s ===", acc.DisplayName)

		var fatal error
		err := retry.Do(ctx, f.opts.Retry,
			func(attempt int) error {
				if attempt > 1 {
					log.WithField("attempt", attempt).Warn("Retrying account")
				}
				err := f.fetchAccount(ctx, acc, &rep, done)
				var pe *persistError
				if errors.As(err, &pe) {
					fatal = pe
					return nil
				}
				return err
			},
			func(int) error {
				return f.portal.ReturnHome(ctx)
			},
		)
		if fatal != nil {
			return rep, fatal
		}
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			left := 0
			for _, sp := range acc.SupplyPoints {
				for _, st := range sp.PendingDocuments() {
					if !done[st] {
						left++
					}
				}
			}
			rep.Failed += left
			log.Errorf("Account failed with %d document(s) left: %v", left, err)
		}
	}

	run.Recount()
	f.logger.Infof("=== Complete: %d saved, %d duplicate(s), %d failed ===", rep.Succeeded, rep.Duplicates, rep.Failed)
	return rep, nil
}

func pending(sp *model.SupplyPoint, done map[*model.Statement]bool) []*model.Statement {
	var out []*model.Statement
	for _, st := range sp.PendingDocuments() {
		if !done[st] {
			out = append(out, st)
		}
	}
	return out
}

// fetchAccount is one attempt at the pending documents of an account
func (f *Fetcher) fetchAccount(ctx context.Context, acc *model.Account, rep *Report, done map[*model.Statement]bool) error {
	log := f.logger.WithField("account", acc.ID)

	var points []*model.SupplyPoint
	for _, sp := range acc.SupplyPoints {
		if len(pending(sp, done)) > 0 {
			points = append(points, sp)
		}
	}
	if len(points) == 0 {
		return nil
	}

	if err := f.portal.ReturnHome(ctx); err != nil {
		return err
	}
	if err := f.portal.EnterAccount(ctx, acc.ListingID); err != nil {
		return err
	}

	positions, err := f.portal.StatementPositions(ctx)
	if err != nil {
		return err
	}

	onAccountPage := true
	for _, sp := range points {
		pos, ok := positions[sp.PageNumber()]
		if !ok {
			left := pending(sp, done)
			log.WithField("supply_point", sp.SupplyNumber).Errorf("Supply point not on account page, %d document(s) left", len(left))
			rep.Failed += len(left)
			for _, st := range left {
				done[st] = true
			}
			continue
		}
		if !onAccountPage {
			if err := f.portal.GoBack(ctx); err != nil {
				return err
			}
		}
		onAccountPage = false
		if err := f.fetchSupplyPoint(ctx, acc, sp, pos, rep, done); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) fetchSupplyPoint(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, position int, rep *Report, done map[*model.Statement]bool) error {
	log := f.logger.WithFields(logrus.Fields{"account": acc.ID, "supply_point": sp.SupplyNumber})

	if err := f.portal.EnterStatements(ctx, position); err != nil {
		return err
	}
	rows, err := f.portal.ListStatementRows(ctx)
	if err != nil {
		return err
	}

	cookies, err := f.portal.Cookies(ctx)
	if err != nil {
		return scrapers.NavigationTimeout("read cookies", err)
	}
	f.downloader.SetCookies(cookies)

	byInvoice := make(map[string]scrapers.RawRow, len(rows))
	for _, row := range rows {
		byInvoice[row.InvoiceNumber()] = row
	}

	for _, st := range pending(sp, done) {
		row, ok := byInvoice[st.InvoiceNumber]
		if !ok || !row.HasDocument() {
			log.WithField("invoice", st.InvoiceNumber).Error("Statement no longer offers a document")
			rep.Failed++
			done[st] = true
			continue
		}
		if err := f.fetchStatement(ctx, acc, sp, st, row, rep); err != nil {
			return err
		}
		done[st] = true
	}
	return nil
}

// fetchStatement captures, downloads, validates and stores one document.
// Only navigation and persistence failures are returned; everything else
// is counted as a failed statement.
func (f *Fetcher) fetchStatement(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, st *model.Statement, row scrapers.RawRow, rep *Report) error {
	log := f.logger.WithField("invoice", st.InvoiceNumber)

	ref, err := f.portal.CaptureDocument(ctx, row)
	if err != nil {
		return err
	}
	if ref == nil {
		log.Error("No document reference captured")
		rep.Failed++
		return nil
	}
	st.DocumentURL = ref.URL
	if st.SuggestedFilename == "" {
		st.SuggestedFilename = ref.SuggestedFilename
	}

	data, err := f.downloader.Download(ctx, ref.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("Download failed: %v", err)
		rep.Failed++
		return nil
	}
	if err := Validate(data, f.opts.MinSize); err != nil {
		log.Errorf("Rejected document: %v", err)
		rep.Failed++
		return nil
	}

	out, err := f.store.Save(ctx, acc, sp, st, data)
	if err != nil {
		return &persistError{err: fmt.Errorf("%s: %w", st.InvoiceNumber, err)}
	}
	switch out {
	case artifacts.Duplicate:
		rep.Duplicates++
	default:
		rep.Succeeded++
	}
	return nil
}
