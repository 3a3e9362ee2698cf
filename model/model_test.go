package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleRun() *CollectionRun {
	run := NewCollectionRun(time.Date(2025, 6, 23, 10, 0, 0, 0, time.UTC))
	acc := &Account{ID: "0001", ListingID: "0001", DisplayName: "Perez Juan", Status: StatusDone}
	sp := &SupplyPoint{ID: SupplyPointID("0001", "1"), AccountID: "0001", SupplyNumber: "1", Status: StatusDone}
	sp.Statements = []*Statement{
		{ID: StatementID(sp.ID, 0), AccountID: "0001", SupplyPointID: sp.ID, InvoiceNumber: "1-61141-1-23/06/25-3-B-1-84919364", HasDocument: true},
		{ID: StatementID(sp.ID, 1), AccountID: "0001", SupplyPointID: sp.ID, InvoiceNumber: "1-61141-1-23/05/25-3-B-1-84919000"},
	}
	acc.SupplyPoints = []*SupplyPoint{sp, {ID: SupplyPointID("0001", "2"), AccountID: "0001", SupplyNumber: "2", Status: StatusFailed}}
	run.Accounts = append(run.Accounts, acc, &Account{ID: "0002", ListingID: "0002", Status: StatusFailed})
	return run
}

func TestRecountMatchesTree(t *testing.T) {
	run := sampleRun()
	require.ErrorIs(t, run.Verify(), ErrCounterDrift)

	run.Recount()
	require.NoError(t, run.Verify())

	want := Counters{
		TotalAccounts:                  2,
		TotalSupplyPoints:              2,
		TotalStatements:                2,
		TotalStatementsWithDocument:    1,
		TotalStatementsWithoutDocument: 1,
		AccountsProcessed:              1,
		AccountsFailed:                 1,
		SupplyPointsProcessed:          1,
		SupplyPointsFailed:             1,
	}
	if diff := cmp.Diff(want, run.Counters); diff != "" {
		t.Fatalf("counters mismatch (-want +got):\n%s", diff)
	}
}

func TestCorrectIdentityRewritesSubtree(t *testing.T) {
	run := sampleRun()
	acc := run.Accounts[0]
	sp := acc.SupplyPoints[0]

	changed := run.CorrectIdentity(acc, sp, "61141", "1")
	require.True(t, changed)
	run.Recount()
	require.NoError(t, run.Verify())

	require.Equal(t, "61141", acc.ID)
	require.Equal(t, "0001", acc.ListingID)
	for _, p := range acc.SupplyPoints {
		require.Equal(t, SupplyPointID(p.AccountID, p.SupplyNumber), p.ID)
		require.Equal(t, "61141", p.AccountID)
		for _, st := range p.Statements {
			require.Equal(t, p.ID, st.SupplyPointID)
			require.Equal(t, "61141", st.AccountID)
		}
	}

	require.False(t, run.CorrectIdentity(acc, sp, "61141", "1"))
	require.False(t, run.CorrectIdentity(acc, sp, "", ""))
}

func TestCountersSurviveJSON(t *testing.T) {
	run := sampleRun()
	run.Recount()

	data, err := json.Marshal(run)
	require.NoError(t, err)
	require.Contains(t, string(data), `"totalStatementsWithDocument":1`)

	var back CollectionRun
	require.NoError(t, json.Unmarshal(data, &back))
	require.NoError(t, back.Verify())
	require.Equal(t, run.Counters, back.Counters)
}

func TestParseInvoiceNumber(t *testing.T) {
	id, ok := ParseInvoiceNumber(" 1-61141-1-23/06/25-3-B-1-84919364 ")
	require.True(t, ok)
	require.Equal(t, InvoiceIdentity{SupplyNumber: "1", AccountID: "61141"}, id)

	_, ok = ParseInvoiceNumber("FACTURA B 0001")
	require.False(t, ok)
}

func TestParseDateAndAmount(t *testing.T) {
	require.Equal(t, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), ParseDate("23/06/2025"))
	require.True(t, ParseDate("not a date").IsZero())
	require.True(t, ParseDate("").IsZero())

	require.InDelta(t, 37741.29, ParseAmount("37.741,29"), 0.001)
	require.InDelta(t, 12.5, ParseAmount("$ 12,50"), 0.001)
	require.Zero(t, ParseAmount("-"))
}

func TestSuggestedFilename(t *testing.T) {
	require.Equal(t, "1-61141-1-23_06_25-3-B-1-84919364.pdf", SuggestedFilename("1-61141-1-23/06/25-3-B-1-84919364"))
	require.Equal(t, "P_rez_Juan", SanitizeFilename("Pérez Juan"))
}

func TestPendingDocumentsSkipsFetched(t *testing.T) {
	run := sampleRun()
	sp := run.Accounts[0].SupplyPoints[0]
	require.Len(t, sp.PendingDocuments(), 1)

	sp.Statements[0].Hash = "abc"
	require.Empty(t, sp.PendingDocuments())
	require.Zero(t, run.Accounts[0].PendingDocuments())
}

func TestStoreKeyPrefersDocumentNumber(t *testing.T) {
	st := &Statement{InvoiceNumber: "1-2-3", Hash: "h"}
	require.Equal(t, "1-2-3|h", st.StoreKey())
	st.DocumentNumber = "B 0001 84919364"
	require.Equal(t, "B 0001 84919364|h", st.StoreKey())
}
