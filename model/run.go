package model

import (
	"errors"
	"fmt"
	"time"
)

// Counters are aggregates over a CollectionRun's tree. They are stored in
// the checkpoint for readers but always rebuilt with Recount.
type Counters struct {
	TotalAccounts                  int `json:"totalAccounts"`
	TotalSupplyPoints              int `json:"totalSupplyPoints"`
	TotalStatements                int `json:"totalStatements"`
	TotalStatementsWithDocument    int `json:"totalStatementsWithDocument"`
	TotalStatementsWithoutDocument int `json:"totalStatementsWithoutDocument"`
	AccountsProcessed              int `json:"accountsProcessed"`
	AccountsFailed                 int `json:"accountsFailed"`
	SupplyPointsProcessed          int `json:"supplyPointsProcessed"`
	SupplyPointsFailed             int `json:"supplyPointsFailed"`
	StatementsFetched              int `json:"statementsFetched"`
}

// CollectionRun is the root of a Phase 1 result and the checkpoint schema
type CollectionRun struct {
	Accounts    []*Account `json:"accounts"`
	Counters
	CollectedAt time.Time `json:"collectedAt"`
}

// NewCollectionRun returns an empty run stamped with the given time
func NewCollectionRun(now time.Time) *CollectionRun {
	return &CollectionRun{
		Accounts:    []*Account{},
		CollectedAt: now.UTC(),
	}
}

// Count computes the counters from the tree without touching the stored ones.
func (r *CollectionRun) Count() Counters {
	var c Counters
	c.TotalAccounts = len(r.Accounts)
	for _, acc := range r.Accounts {
		switch acc.Status {
		case StatusDone:
			c.AccountsProcessed++
		case StatusFailed:
			c.AccountsFailed++
		}
		c.TotalSupplyPoints += len(acc.SupplyPoints)
		for _, sp := range acc.SupplyPoints {
			switch sp.Status {
			case StatusDone:
				c.SupplyPointsProcessed++
			case StatusFailed:
				c.SupplyPointsFailed++
			}
			c.TotalStatements += len(sp.Statements)
			for _, st := range sp.Statements {
				if st.HasDocument {
					c.TotalStatementsWithDocument++
				} else {
					c.TotalStatementsWithoutDocument++
				}
				if st.Fetched() {
					c.StatementsFetched++
				}
			}
		}
	}
	return c
}

// Recount replaces the stored counters with aggregates over the tree.
func (r *CollectionRun) Recount() {
	r.Counters = r.Count()
}

// ErrCounterDrift is returned by Verify when stored counters disagree with the tree
var ErrCounterDrift = errors.New("counters do not match the collected tree")

// Verify checks the stored counters and every derived identifier.
func (r *CollectionRun) Verify() error {
	if got := r.Count(); got != r.Counters {
		return fmt.Errorf("%w: stored %+v, computed %+v", ErrCounterDrift, r.Counters, got)
	}
	for _, acc := range r.Accounts {
		for _, sp := range acc.SupplyPoints {
			if sp.AccountID != acc.ID {
				return fmt.Errorf("supply point %s: account reference %q, want %q", sp.ID, sp.AccountID, acc.ID)
			}
			if want := SupplyPointID(sp.AccountID, sp.SupplyNumber); sp.ID != want {
				return fmt.Errorf("supply point %s: id want %q", sp.ID, want)
			}
			for _, st := range sp.Statements {
				if st.AccountID != acc.ID || st.SupplyPointID != sp.ID {
					return fmt.Errorf("statement %s: references (%s, %s), want (%s, %s)",
						st.ID, st.AccountID, st.SupplyPointID, acc.ID, sp.ID)
				}
			}
		}
	}
	return nil
}

// CorrectIdentity replaces the placeholder identity of an account, and the
// supply number of one of its supply points, with the values read from the
// first statement row. Every back reference in the account's subtree is
// rewritten. Empty arguments leave the corresponding value unchanged.
// It reports whether anything changed.
func (r *CollectionRun) CorrectIdentity(acc *Account, sp *SupplyPoint, accountID, supplyNumber string) bool {
	changed := false
	if accountID != "" && accountID != acc.ID {
		acc.ID = accountID
		changed = true
	}
	if sp != nil && supplyNumber != "" && supplyNumber != sp.SupplyNumber {
		sp.SupplyNumber = supplyNumber
		changed = true
	}
	if !changed {
		return false
	}
	for _, p := range acc.SupplyPoints {
		p.AccountID = acc.ID
		p.ID = SupplyPointID(p.AccountID, p.SupplyNumber)
		for i, st := range p.Statements {
			st.AccountID = acc.ID
			st.SupplyPointID = p.ID
			st.ID = StatementID(p.ID, i)
		}
	}
	return true
}

// FindAccount looks an account up by its listing id
func (r *CollectionRun) FindAccount(listingID string) *Account {
	for _, acc := range r.Accounts {
		if acc.ListingID == listingID {
			return acc
		}
	}
	return nil
}

// PendingDocuments returns the statements that carry a document that has
// not been fetched yet.
func (sp *SupplyPoint) PendingDocuments() []*Statement {
	var out []*Statement
	for _, st := range sp.Statements {
		if st.HasDocument && !st.Fetched() {
			out = append(out, st)
		}
	}
	return out
}

// PendingDocuments counts the unfetched documents across the account
func (a *Account) PendingDocuments() int {
	n := 0
	for _, sp := range a.SupplyPoints {
		n += len(sp.PendingDocuments())
	}
	return n
}

// Reset clears what an earlier attempt may have collected for the account.
func (a *Account) Reset() {
	a.SupplyPoints = nil
	a.Status = StatusPending
}

// Reset clears the statements of an earlier attempt
func (sp *SupplyPoint) Reset() {
	sp.Statements = nil
	sp.Status = StatusPending
}
