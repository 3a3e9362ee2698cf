// Package collector walks the portal's account hierarchy and builds the
// Phase 1 result tree.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/sameep-scrape/model"
	"github.com/sameep-scrape/retry"
	"github.com/sameep-scrape/scrapers"
	"github.com/sirupsen/logrus"
)

// Portal is what the walker needs from an authenticated portal session
type Portal interface {
	ReturnHome(ctx context.Context) error
	ListAccounts(ctx context.Context) ([]scrapers.AccountRef, error)
	EnterAccount(ctx context.Context, listingID string) error
	AccountName(ctx context.Context, accountID string) (string, error)
	ListSupplyPoints(ctx context.Context) ([]scrapers.SupplyPointRef, error)
	StatementPositions(ctx context.Context) (map[string]int, error)
	EnterStatements(ctx context.Context, position int) error
	ListStatementRows(ctx context.Context) ([]scrapers.RawRow, error)
	CaptureDocument(ctx context.Context, row scrapers.RawRow) (*scrapers.DocumentRef, error)
	GoBack(ctx context.Context) error
}

// Options tune a walk
type Options struct {
	Retry        retry.Policy
	AccountPause time.Duration
	Now          func() time.Time
}

// Walker runs Phase 1 over one portal session. Accounts, supply points and
// statement rows are visited strictly in page order.
type Walker struct {
	portal Portal
	opts   Options
	logger logrus.FieldLogger
}

// NewWalker creates a walker
func NewWalker(portal Portal, opts Options, logger logrus.FieldLogger) *Walker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Walker{
		portal: portal,
		opts:   opts,
		logger: logger.WithField("component", "collector"),
	}
}

// Collect walks every account on the landing page. Entity failures are
// recorded in the tree and never abort the walk; the only error returned
// is the context's.
func (w *Walker) Collect(ctx context.Context) (*model.CollectionRun, error) {
	run := model.NewCollectionRun(w.opts.Now())

	refs, err := w.listAccounts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		w.logger.Errorf("Account listing unavailable: %v", err)
		return run, nil
	}

	for _, ref := range refs {
		run.Accounts = append(run.Accounts, &model.Account{
			ID:          ref.ListingID,
			ListingID:   ref.ListingID,
			DisplayName: "Cliente " + ref.ListingID,
			Status:      model.StatusPending,
		})
	}
	run.Recount()

	for i, acc := range run.Accounts {
		log := w.logger.WithField("account", acc.ListingID)
		log.Infof("=== Processing account %d/%d ===", i+1, len(run.Accounts))

		err := retry.Do(ctx, w.opts.Retry,
			func(attempt int) error {
				if attempt > 1 {
					log.WithField("attempt", attempt).Warn("Retrying account")
				}
				acc.Reset()
				return w.processAccount(ctx, run, acc)
			},
			func(int) error {
				return w.portal.ReturnHome(ctx)
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				run.Recount()
				return run, ctx.Err()
			}
			acc.Status = model.StatusFailed
			log.Errorf("Account failed: %v", err)
			if err := w.portal.ReturnHome(ctx); err != nil {
				log.Warnf("Could not return to account listing: %v", err)
			}
		} else {
			acc.Status = model.StatusDone
			log.WithField("supply_points", len(acc.SupplyPoints)).Infof("SUCCESS: %s", acc.DisplayName)
		}
		run.Recount()

		if i < len(run.Accounts)-1 && w.opts.AccountPause > 0 {
			log.Debug("Waiting before next account...")
			if err := retry.Sleep(ctx, w.opts.AccountPause); err != nil {
				return run, err
			}
		}
	}

	w.logger.Infof("=== Complete: %d/%d accounts succeeded ===", run.AccountsProcessed, run.TotalAccounts)
	return run, nil
}

func (w *Walker) listAccounts(ctx context.Context) ([]scrapers.AccountRef, error) {
	var refs []scrapers.AccountRef
	err := retry.Do(ctx, w.opts.Retry,
		func(int) error {
			var err error
			refs, err = w.portal.ListAccounts(ctx)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return scrapers.StructuralElementMissing("list accounts", "account listing")
			}
			return nil
		},
		func(int) error {
			return w.portal.ReturnHome(ctx)
		},
	)
	return refs, err
}

// processAccount is one attempt at an account: enter, read the holder,
// enumerate supply points, process each one, return to the listing.
func (w *Walker) processAccount(ctx context.Context, run *model.CollectionRun, acc *model.Account) error {
	log := w.logger.WithField("account", acc.ListingID)

	if err := w.portal.EnterAccount(ctx, acc.ListingID); err != nil {
		return err
	}

	name, err := w.portal.AccountName(ctx, acc.ListingID)
	if err != nil {
		return err
	}
	acc.DisplayName = name

	refs, err := w.portal.ListSupplyPoints(ctx)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return scrapers.StructuralElementMissing("list supply points", "supply point table")
	}
	positions, err := w.portal.StatementPositions(ctx)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		pos, ok := positions[ref.SupplyNumber]
		if !ok {
			return scrapers.StructuralElementMissing("statement positions", "supply point "+ref.SupplyNumber)
		}
		acc.SupplyPoints = append(acc.SupplyPoints, &model.SupplyPoint{
			ID:            model.SupplyPointID(acc.ID, ref.SupplyNumber),
			AccountID:     acc.ID,
			SupplyNumber:  ref.SupplyNumber,
			ListingNumber: ref.SupplyNumber,
			Street:        ref.Street,
			HouseNumber:   ref.HouseNumber,
			Floor:         ref.Floor,
			Position:      pos,
			Status:        model.StatusPending,
		})
	}
	log.Infof("Account %s has %d supply point(s)", acc.DisplayName, len(refs))

	for i, sp := range acc.SupplyPoints {
		last := i == len(acc.SupplyPoints)-1
		splog := log.WithField("supply_point", sp.SupplyNumber)

		err := retry.Do(ctx, w.opts.Retry,
			func(attempt int) error {
				if attempt > 1 {
					splog.WithField("attempt", attempt).Warn("Retrying supply point")
				}
				sp.Reset()
				return w.processSupplyPoint(ctx, run, acc, sp, last)
			},
			func(int) error {
				return w.recoverAccountPage(ctx, acc)
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sp.Status = model.StatusFailed
			splog.Errorf("Supply point failed: %v", err)
			if !last {
				if err := w.recoverAccountPage(ctx, acc); err != nil {
					splog.Warnf("Could not get back to account page: %v", err)
				}
			}
			continue
		}
		sp.Status = model.StatusDone
	}

	if err := w.portal.ReturnHome(ctx); err != nil {
		log.Warnf("Could not return to account listing: %v", err)
	}
	return nil
}

// processSupplyPoint is one attempt at a supply point's statement list
func (w *Walker) processSupplyPoint(ctx context.Context, run *model.CollectionRun, acc *model.Account, sp *model.SupplyPoint, last bool) error {
	log := w.logger.WithFields(logrus.Fields{"account": acc.ListingID, "supply_point": sp.SupplyNumber})

	if err := w.portal.EnterStatements(ctx, sp.Position); err != nil {
		return err
	}

	rows, err := w.portal.ListStatementRows(ctx)
	if err != nil {
		return err
	}

	if len(rows) > 0 {
		if id, ok := model.ParseInvoiceNumber(rows[0].InvoiceNumber()); ok {
			if run.CorrectIdentity(acc, sp, id.AccountID, id.SupplyNumber) {
				log.Infof("Identity corrected: account %s, supply point %s", acc.ID, sp.ID)
			}
		} else {
			log.Warnf("Cannot read identity from invoice number %q", rows[0].InvoiceNumber())
		}
	}

	for _, row := range rows {
		if id, ok := model.ParseInvoiceNumber(row.InvoiceNumber()); ok && id.SupplyNumber != sp.SupplyNumber {
			continue
		}
		sp.Statements = append(sp.Statements, w.statement(ctx, acc, sp, row))
	}
	log.Infof("Collected %d statement(s)", len(sp.Statements))

	if !last {
		return w.portal.GoBack(ctx)
	}
	return nil
}

func (w *Walker) statement(ctx context.Context, acc *model.Account, sp *model.SupplyPoint, row scrapers.RawRow) *model.Statement {
	st := row.Statement()
	st.ID = model.StatementID(sp.ID, len(sp.Statements))
	st.AccountID = acc.ID
	st.SupplyPointID = sp.ID
	st.ProcessedAt = w.opts.Now().UTC()

	if !st.HasDocument {
		return st
	}
	st.SuggestedFilename = model.SuggestedFilename(st.InvoiceNumber)

	ref, err := w.portal.CaptureDocument(ctx, row)
	switch {
	case err != nil:
		w.logger.WithField("invoice", st.InvoiceNumber).Warnf("Document capture failed: %v", err)
	case ref == nil:
		w.logger.WithField("invoice", st.InvoiceNumber).Info("No document reference captured")
	default:
		st.DocumentURL = ref.URL
		st.SuggestedFilename = ref.SuggestedFilename
	}
	return st
}

// recoverAccountPage brings the browser back to the account page: one step
// back in history, or a fresh entry from the listing when that is not
// enough.
func (w *Walker) recoverAccountPage(ctx context.Context, acc *model.Account) error {
	if err := w.portal.GoBack(ctx); err == nil {
		if refs, err := w.portal.ListSupplyPoints(ctx); err == nil && len(refs) > 0 {
			return nil
		}
	}
	return errors.Join(
		w.portal.ReturnHome(ctx),
		w.portal.EnterAccount(ctx, acc.ListingID),
	)
}
