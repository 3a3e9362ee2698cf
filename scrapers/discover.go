package scrapers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sameep-scrape/model"
)

// Page structure of the portal. Table positions count every <table> in
// document order, nested ones included.
const (
	accountListingSelector = `[id^="span_vINGRESAR_"]`
	accountListingPrefix   = "span_vINGRESAR_"
	triggerSelector        = `img[id^="vIMPRIMIRSALDO_"]`
	statementLinkText      = "Saldo"

	accountTable     = 0
	supplyPointTable = 1
	statementTable   = 3

	minSupplyPointCells = 8
	minStatementCells   = 15
	triggerColumn       = 14

	nameLabel = "Apellido y Nombre"
)

// AccountRef is an account as listed on the landing page
type AccountRef struct {
	ListingID string
	Position  int
}

// SupplyPointRef is one row of the supply point table on an account page
type SupplyPointRef struct {
	Position     int
	SupplyNumber string
	Street       string
	HouseNumber  string
	Floor        string
}

// RawRow is one qualifying row of the statement table
type RawRow struct {
	Index         int
	Cells         []string
	TriggerID     string
	TriggerHidden bool
}

// TriggerPresent reports whether the row has a document trigger control
func (r RawRow) TriggerPresent() bool {
	return r.TriggerID != ""
}

// HasDocument is true iff the trigger control exists and is not hidden
func (r RawRow) HasDocument() bool {
	return r.TriggerPresent() && !r.TriggerHidden
}

func (r RawRow) cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// InvoiceNumber returns the composite invoice number of the row
func (r RawRow) InvoiceNumber() string {
	return r.cell(1)
}

// Statement converts the row's fixed columns into a statement. Identifiers
// and document reference are left for the caller.
func (r RawRow) Statement() *model.Statement {
	var docParts []string
	for _, i := range []int{6, 7, 8} {
		if v := r.cell(i); v != "" {
			docParts = append(docParts, v)
		}
	}
	return &model.Statement{
		InvoiceNumber:  r.InvoiceNumber(),
		IssueDate:      model.ParseDate(r.cell(2)),
		Period:         r.cell(3),
		InternalCode:   r.cell(4),
		DocumentType:   r.cell(5),
		DocumentNumber: strings.Join(docParts, " "),
		FirstDueDate:   model.ParseDate(r.cell(9)),
		SecondDueDate:  model.ParseDate(r.cell(10)),
		OriginalAmount: model.ParseAmount(r.cell(11)),
		Surcharge:      model.ParseAmount(r.cell(12)),
		TotalAmount:    model.ParseAmount(r.cell(13)),
		HasDocument:    r.HasDocument(),
	}
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// tableRows returns the data rows (header skipped) of the nth table
func tableRows(doc *goquery.Document, n int) (*goquery.Selection, bool) {
	table := doc.Find("table").Eq(n)
	if table.Length() == 0 {
		return nil, false
	}
	rows := table.Find("tr")
	return rows.Slice(min(1, rows.Length()), rows.Length()), true
}

// ParseAccounts lists the accounts on the landing page in page order
func ParseAccounts(html string) ([]AccountRef, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var refs []AccountRef
	seen := map[string]bool{}
	doc.Find(accountListingSelector).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		listingID := strings.TrimPrefix(id, accountListingPrefix)
		if listingID == "" || seen[listingID] {
			return
		}
		seen[listingID] = true
		refs = append(refs, AccountRef{ListingID: listingID, Position: len(refs)})
	})
	return refs, nil
}

// ParseAccountName reads the holder name from the account page. It falls
// back to a name derived from the account id.
func ParseAccountName(html, accountID string) string {
	fallback := "Cliente " + accountID
	doc, err := parse(html)
	if err != nil {
		return fallback
	}
	table := doc.Find("table").Eq(accountTable)
	cells := table.Find("tr").First().Find("td")
	if cells.Length() == 0 {
		return fallback
	}
	name := cellText(cells.Last())
	name = strings.TrimSpace(strings.Replace(name, nameLabel, "", 1))
	name = strings.TrimSpace(strings.TrimPrefix(name, ":"))
	if name == "" {
		return fallback
	}
	return name
}

// ParseSupplyPoints reads the supply point table of an account page.
// A missing table yields an empty result.
func ParseSupplyPoints(html string) ([]SupplyPointRef, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	rows, ok := tableRows(doc, supplyPointTable)
	if !ok {
		return nil, nil
	}

	var refs []SupplyPointRef
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minSupplyPointCells {
			return
		}
		number := cellText(cells.Eq(3))
		if number == "" {
			return
		}
		refs = append(refs, SupplyPointRef{
			Position:     len(refs),
			SupplyNumber: number,
			Street:       cellText(cells.Eq(5)),
			HouseNumber:  cellText(cells.Eq(6)),
			Floor:        cellText(cells.Eq(7)),
		})
	})
	return refs, nil
}

// ParseStatementRows reads the statement table. Rows with fewer than the
// expected cells, or without an invoice number, are skipped.
func ParseStatementRows(html string) ([]RawRow, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	rows, ok := tableRows(doc, statementTable)
	if !ok {
		return nil, nil
	}

	var out []RawRow
	rows.Each(func(i int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < minStatementCells {
			return
		}
		cells := make([]string, tds.Length())
		tds.Each(func(j int, td *goquery.Selection) {
			cells[j] = cellText(td)
		})
		if cells[1] == "" {
			return
		}

		r := RawRow{Index: i, Cells: cells}
		trigger := tds.Eq(triggerColumn).Find(triggerSelector).First()
		if trigger.Length() > 0 {
			r.TriggerID, _ = trigger.Attr("id")
			style, _ := trigger.Attr("style")
			r.TriggerHidden = isHiddenStyle(style)
		}
		out = append(out, r)
	})
	return out, nil
}

func isHiddenStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.Contains(s, "display:none") || strings.Contains(s, "display: none")
}

// StatementLinks pairs each supply point row with the statement entry
// control that opens its statements.
//
// The portal renders one "Saldo" link per supply point and nothing ties a
// link to its row except order: the Nth link belongs to the Nth row. The
// result maps supply numbers to link positions. Fewer links than rows is
// a structural error because the pairing can no longer be trusted.
func StatementLinks(html string, points []SupplyPointRef) (map[string]int, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	links := 0
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if strings.Contains(cellText(a), statementLinkText) {
			links++
		}
	})
	if links < len(points) {
		return nil, StructuralElementMissing("statement links",
			fmt.Sprintf("%d %q links for %d supply points", links, statementLinkText, len(points)))
	}

	out := make(map[string]int, len(points))
	for _, p := range points {
		out[p.SupplyNumber] = p.Position
	}
	return out, nil
}
