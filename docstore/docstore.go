// Package docstore records accounts, supply points and statements in a
// document database.
package docstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sameep-scrape/model"
	"github.com/sirupsen/logrus"
)

// Store is a document store. Accounts and supply points are upserted by id;
// statements are inserted only when no record with the same
// (document number or invoice number, hash) exists.
type Store interface {
	UpsertAccount(ctx context.Context, acc *model.Account) error
	UpsertSupplyPoint(ctx context.Context, sp *model.SupplyPoint) error
	HasStatementHash(ctx context.Context, hash string) (bool, error)
	// InsertStatement reports whether a new record was created
	InsertStatement(ctx context.Context, st *model.Statement) (bool, error)
	Close() error
}

const (
	DriverNone      = "none"
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

// Config selects and configures a backend
type Config struct {
	Driver string
	// URL is the sqlite file path or the Firestore project id
	URL             string
	Database        string
	CredentialsJSON []byte

	Accounts     string
	SupplyPoints string
	Statements   string

	// StoreContent keeps the document bytes in statement records
	StoreContent bool
}

// Open connects to the configured backend. DriverNone returns a nil Store.
func Open(ctx context.Context, cfg Config, logger logrus.FieldLogger) (Store, error) {
	logger = logger.WithFields(logrus.Fields{"component": "docstore", "driver": cfg.Driver})
	switch cfg.Driver {
	case "", DriverNone:
		logger.Info("Document store disabled")
		return nil, nil
	case DriverMemory:
		return NewMemory(cfg.StoreContent), nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Infof("Document store: sqlite %s", cfg.URL)
		return s, nil
	case DriverFirestore:
		s, err := OpenFirestore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Infof("Document store: firestore %s/%s", cfg.URL, cfg.Database)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown document store driver %q", cfg.Driver)
	}
}

// accountRecord is the stored shape of an account
type accountRecord struct {
	ID          string    `firestore:"id"`
	ListingID   string    `firestore:"listingId"`
	DisplayName string    `firestore:"nombre"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type supplyPointRecord struct {
	ID           string    `firestore:"id"`
	AccountID    string    `firestore:"clienteId"`
	SupplyNumber string    `firestore:"numero"`
	Street       string    `firestore:"calle"`
	HouseNumber  string    `firestore:"altura"`
	Floor        string    `firestore:"piso"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

type statementRecord struct {
	Key            string    `firestore:"key"`
	ID             string    `firestore:"id"`
	AccountID      string    `firestore:"clienteId"`
	SupplyPointID  string    `firestore:"suministroId"`
	InvoiceNumber  string    `firestore:"numeroFactura"`
	DocumentNumber string    `firestore:"numeroDocumento"`
	DocumentType   string    `firestore:"tipo"`
	Period         string    `firestore:"periodo"`
	IssueDate      time.Time `firestore:"fechaEmision"`
	FirstDueDate   time.Time `firestore:"primerVencimiento"`
	SecondDueDate  time.Time `firestore:"segundoVencimiento"`
	OriginalAmount float64   `firestore:"importeOriginal"`
	Surcharge      float64   `firestore:"recargo"`
	TotalAmount    float64   `firestore:"importeTotal"`
	Hash           string    `firestore:"hash"`
	Filename       string    `firestore:"archivo"`
	Content        []byte    `firestore:"contenido,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func newAccountRecord(acc *model.Account) accountRecord {
	return accountRecord{
		ID:          acc.ID,
		ListingID:   acc.ListingID,
		DisplayName: acc.DisplayName,
		UpdatedAt:   time.Now().UTC(),
	}
}

func newSupplyPointRecord(sp *model.SupplyPoint) supplyPointRecord {
	return supplyPointRecord{
		ID:           sp.ID,
		AccountID:    sp.AccountID,
		SupplyNumber: sp.SupplyNumber,
		Street:       sp.Street,
		HouseNumber:  sp.HouseNumber,
		Floor:        sp.Floor,
		UpdatedAt:    time.Now().UTC(),
	}
}

func newStatementRecord(st *model.Statement, withContent bool) statementRecord {
	r := statementRecord{
		Key:            StatementKey(st),
		ID:             st.ID,
		AccountID:      st.AccountID,
		SupplyPointID:  st.SupplyPointID,
		InvoiceNumber:  st.InvoiceNumber,
		DocumentNumber: st.DocumentNumber,
		DocumentType:   st.DocumentType,
		Period:         st.Period,
		IssueDate:      st.IssueDate,
		FirstDueDate:   st.FirstDueDate,
		SecondDueDate:  st.SecondDueDate,
		OriginalAmount: st.OriginalAmount,
		Surcharge:      st.Surcharge,
		TotalAmount:    st.TotalAmount,
		Hash:           st.Hash,
		Filename:       st.SuggestedFilename,
		CreatedAt:      time.Now().UTC(),
	}
	if withContent {
		r.Content = st.Content
	}
	return r
}

// StatementKey is the md5 hex of a statement's natural key, used as record id
func StatementKey(st *model.Statement) string {
	sum := md5.Sum([]byte(st.StoreKey()))
	return hex.EncodeToString(sum[:])
}
