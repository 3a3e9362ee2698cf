package scrapers

import (
	"context"
	"fmt"
	"net/http"
)

// SameepPortal drives the billing portal through an authenticated session:
// it discovers entities on the current page and moves between pages.
type SameepPortal struct {
	*Session
}

// NewPortal wraps an open session
func NewPortal(s *Session) *SameepPortal {
	return &SameepPortal{Session: s}
}

func (p *SameepPortal) html(ctx context.Context, op string) (string, error) {
	html, err := p.Browser.HTML(ctx)
	if err != nil {
		return "", NavigationTimeout(op, err)
	}
	return html, nil
}

// ListAccounts waits for the account listing and returns it in page order.
// A listing that never shows up yields an empty result.
func (p *SameepPortal) ListAccounts(ctx context.Context) ([]AccountRef, error) {
	if err := p.Browser.WaitVisible(ctx, accountListingSelector, p.Config.ListingTimeout); err != nil {
		p.Logger.Warnf("Account listing not found: %v", err)
		return nil, nil
	}
	html, err := p.html(ctx, "list accounts")
	if err != nil {
		return nil, err
	}
	refs, err := ParseAccounts(html)
	if err != nil {
		return nil, err
	}
	p.Logger.Infof("Found %d account(s)", len(refs))
	return refs, nil
}

// EnterAccount opens the account page of a listing entry. The page is
// reached on a best effort basis.
func (p *SameepPortal) EnterAccount(ctx context.Context, listingID string) error {
	entry := fmt.Sprintf(`[id="%s%s"]`, accountListingPrefix, listingID)
	if err := p.Browser.WaitVisible(ctx, entry, p.Config.ListingTimeout); err != nil {
		return &Error{Kind: KindStructuralElementMissing, Op: "enter account", Detail: entry, Err: err}
	}
	if err := p.Browser.Click(ctx, entry+" a"); err != nil {
		return NavigationTimeout("enter account "+listingID, err)
	}
	p.settle(ctx)
	return nil
}

// AccountName reads the holder name on the current account page
func (p *SameepPortal) AccountName(ctx context.Context, accountID string) (string, error) {
	html, err := p.html(ctx, "account name")
	if err != nil {
		return "", err
	}
	return ParseAccountName(html, accountID), nil
}

// ListSupplyPoints reads the supply point table of the current account page
func (p *SameepPortal) ListSupplyPoints(ctx context.Context) ([]SupplyPointRef, error) {
	html, err := p.html(ctx, "list supply points")
	if err != nil {
		return nil, err
	}
	refs, err := ParseSupplyPoints(html)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		p.Logger.Warn("No supply points on account page")
	}
	return refs, nil
}

// StatementPositions maps the supply numbers of the current account page to
// the position of their statement entry control.
func (p *SameepPortal) StatementPositions(ctx context.Context) (map[string]int, error) {
	html, err := p.html(ctx, "statement positions")
	if err != nil {
		return nil, err
	}
	points, err := ParseSupplyPoints(html)
	if err != nil {
		return nil, err
	}
	return StatementLinks(html, points)
}

// EnterStatements opens the statement list of the supply point at position
func (p *SameepPortal) EnterStatements(ctx context.Context, position int) error {
	found, err := p.Browser.ClickText(ctx, "a", statementLinkText, position)
	if err != nil {
		return NavigationTimeout("enter statements", err)
	}
	if !found {
		return StructuralElementMissing("enter statements", fmt.Sprintf("%q link #%d", statementLinkText, position))
	}
	p.settle(ctx)
	return nil
}

// ListStatementRows reads the statement table of the current page
func (p *SameepPortal) ListStatementRows(ctx context.Context) ([]RawRow, error) {
	html, err := p.html(ctx, "list statements")
	if err != nil {
		return nil, err
	}
	rows, err := ParseStatementRows(html)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		p.Logger.Info("No statement rows on page")
	}
	return rows, nil
}

// GoBack returns from a statement list to the account page
func (p *SameepPortal) GoBack(ctx context.Context) error {
	if err := p.Browser.Back(ctx); err != nil {
		return NavigationTimeout("go back", err)
	}
	p.settle(ctx)
	return nil
}

// Cookies exposes the session cookies for authenticated downloads
func (p *SameepPortal) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return p.Browser.Cookies(ctx)
}
