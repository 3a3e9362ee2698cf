// Package report renders end of run summaries as tables.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sameep-scrape/fetcher"
	"github.com/sameep-scrape/model"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// Collection prints the Phase 1 summary
func Collection(w io.Writer, run *model.CollectionRun, checkpointPath string) {
	t := newTable(w, "Phase 1: collection")
	t.AppendHeader(table.Row{"", "Total", "Processed", "Failed"})
	t.AppendRows([]table.Row{
		{"Accounts", run.TotalAccounts, run.AccountsProcessed, run.AccountsFailed},
		{"Supply points", run.TotalSupplyPoints, run.SupplyPointsProcessed, run.SupplyPointsFailed},
		{"Statements", run.TotalStatements, "", ""},
		{"  with document", run.TotalStatementsWithDocument, "", ""},
		{"  without document", run.TotalStatementsWithoutDocument, "", ""},
	})
	if checkpointPath != "" {
		t.AppendFooter(table.Row{"Checkpoint", checkpointPath, "", ""})
	}
	t.Render()
}

// Fetch prints the Phase 2 report
func Fetch(w io.Writer, rep fetcher.Report) {
	t := newTable(w, "Phase 2: documents")
	t.AppendHeader(table.Row{"Outcome", "Count"})
	t.AppendRows([]table.Row{
		{"Pending at start", rep.Pending},
		{"Already fetched", rep.Skipped},
		{"Processed", rep.Processed()},
		{"Saved", rep.Succeeded},
		{"Duplicates", rep.Duplicates},
		{"Failed", rep.Failed},
	})
	t.AppendFooter(table.Row{"Success rate", fmt.Sprintf("%.1f%%", rep.SuccessRate())})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight}})
	t.Render()
}

// Checkpoint prints the totals of a checkpoint and one row per account
func Checkpoint(w io.Writer, path string, run *model.CollectionRun) {
	fmt.Fprintf(w, "Checkpoint: %s\nCollected at: %s\n", path, run.CollectedAt.Format("2006-01-02 15:04:05 MST"))

	t := newTable(w, "Accounts")
	t.AppendHeader(table.Row{"ID", "Name", "Status", "Supply points", "Statements", "With document", "Fetched"})
	for _, acc := range run.Accounts {
		var statements, withDoc, fetched int
		for _, sp := range acc.SupplyPoints {
			statements += len(sp.Statements)
			for _, st := range sp.Statements {
				if st.HasDocument {
					withDoc++
				}
				if st.Fetched() {
					fetched++
				}
			}
		}
		t.AppendRow(table.Row{acc.ID, acc.DisplayName, acc.Status, len(acc.SupplyPoints), statements, withDoc, fetched})
	}
	t.AppendFooter(table.Row{
		"Total", "", fmt.Sprintf("%d/%d done", run.AccountsProcessed, run.TotalAccounts),
		run.TotalSupplyPoints, run.TotalStatements, run.TotalStatementsWithDocument, run.StatementsFetched,
	})
	t.Render()
}
