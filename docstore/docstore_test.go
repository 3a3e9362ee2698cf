package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sameep-scrape/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testConfig(driver, url string) Config {
	return Config{
		Driver:       driver,
		URL:          url,
		Accounts:     "clientes",
		SupplyPoints: "suministros",
		Statements:   "comprobantes",
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	acc := &model.Account{ID: "61141", ListingID: "0001", DisplayName: "PEREZ JUAN"}
	sp := &model.SupplyPoint{ID: "61141_1", AccountID: "61141", SupplyNumber: "1", Street: "SARMIENTO"}

	require.NoError(t, s.UpsertAccount(ctx, acc))
	acc.DisplayName = "PEREZ JUAN CARLOS"
	require.NoError(t, s.UpsertAccount(ctx, acc))
	require.NoError(t, s.UpsertSupplyPoint(ctx, sp))
	require.NoError(t, s.UpsertSupplyPoint(ctx, sp))

	st := &model.Statement{
		ID: "61141_1_0", AccountID: "61141", SupplyPointID: "61141_1",
		InvoiceNumber: "1-61141-1-23/06/25-3-B-1-84919364", DocumentNumber: "0001 B 84919364",
		Hash: "9e107d9d372bb6826bd81d3542a419d6", Content: []byte("%PDF-1.4"),
	}

	found, err := s.HasStatementHash(ctx, st.Hash)
	require.NoError(t, err)
	require.False(t, found)

	created, err := s.InsertStatement(ctx, st)
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.InsertStatement(ctx, st)
	require.NoError(t, err)
	require.False(t, created, "same (document number, hash) is not inserted twice")

	found, err = s.HasStatementHash(ctx, st.Hash)
	require.NoError(t, err)
	require.True(t, found)

	other := *st
	other.Hash = "e4d909c290d0fb1ca068ffaddf22cbd0"
	created, err = s.InsertStatement(ctx, &other)
	require.NoError(t, err)
	require.True(t, created, "a different hash is a different record")
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory(true)
	exerciseStore(t, m)
	require.Len(t, m.Accounts, 1)
	require.Equal(t, "PEREZ JUAN CARLOS", m.Accounts["61141"].DisplayName)
	require.Len(t, m.SupplyPoints, 1)
	require.Len(t, m.Statements, 2)
}

func TestMemoryStoreContentSetting(t *testing.T) {
	ctx := context.Background()
	st := &model.Statement{InvoiceNumber: "1-61141", Hash: "h", Content: []byte("%PDF-1.4")}

	for _, keep := range []bool{true, false} {
		cfg := testConfig(DriverMemory, "")
		cfg.StoreContent = keep
		s, err := Open(ctx, cfg, quietLogger())
		require.NoError(t, err)

		_, err = s.InsertStatement(ctx, st)
		require.NoError(t, err)
		rec := s.(*Memory).Statements[StatementKey(st)]
		if keep {
			require.Equal(t, st.Content, rec.Content)
		} else {
			require.Empty(t, rec.Content)
		}
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, testConfig(DriverSQLite, filepath.Join(t.TempDir(), "sameep.db")), quietLogger())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	db := s.(*SQLite)
	for table, want := range map[string]int{"clientes": 1, "suministros": 1, "comprobantes": 2} {
		n, err := db.Count(ctx, table)
		require.NoError(t, err)
		require.Equal(t, want, n, table)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, testConfig(DriverNone, ""), quietLogger())
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = Open(ctx, testConfig(DriverMemory, ""), quietLogger())
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)

	_, err = Open(ctx, testConfig("mongodb", ""), quietLogger())
	require.Error(t, err)

	bad := testConfig(DriverSQLite, filepath.Join(t.TempDir(), "x.db"))
	bad.Statements = "comprobantes; drop table x"
	_, err = Open(ctx, bad, quietLogger())
	require.Error(t, err)
}

func TestStatementKeyFallsBackToInvoiceNumber(t *testing.T) {
	a := &model.Statement{InvoiceNumber: "1-61141", Hash: "h"}
	b := &model.Statement{InvoiceNumber: "1-61141", DocumentNumber: "B 1", Hash: "h"}
	require.NotEqual(t, StatementKey(a), StatementKey(b))
	require.Len(t, StatementKey(a), 32)
}
