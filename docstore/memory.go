package docstore

import (
	"context"
	"sync"

	"github.com/sameep-scrape/model"
)

// Memory is an in-process Store, used by tests and dry runs
type Memory struct {
	mu           sync.Mutex
	storeContent bool
	Accounts     map[string]accountRecord
	SupplyPoints map[string]supplyPointRecord
	Statements   map[string]statementRecord
}

// NewMemory returns an empty Memory store. storeContent keeps the document
// bytes in statement records.
func NewMemory(storeContent bool) *Memory {
	return &Memory{
		storeContent: storeContent,
		Accounts:     map[string]accountRecord{},
		SupplyPoints: map[string]supplyPointRecord{},
		Statements:   map[string]statementRecord{},
	}
}

func (m *Memory) UpsertAccount(_ context.Context, acc *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[acc.ID] = newAccountRecord(acc)
	return nil
}

func (m *Memory) UpsertSupplyPoint(_ context.Context, sp *model.SupplyPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SupplyPoints[sp.ID] = newSupplyPointRecord(sp)
	return nil
}

func (m *Memory) HasStatementHash(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Statements {
		if r.Hash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertStatement(_ context.Context, st *model.Statement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := StatementKey(st)
	if _, ok := m.Statements[key]; ok {
		return false, nil
	}
	m.Statements[key] = newStatementRecord(st, m.storeContent)
	return true, nil
}

func (m *Memory) Close() error { return nil }
