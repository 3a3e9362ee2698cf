package model

import (
	"fmt"
	"time"
)

// Status tracks where an entity is in its collection lifecycle
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Account is one billing customer (cliente) found on the landing page.
//
// ListingID is the suffix of the listing control and never changes; it is
// what navigation uses. ID starts equal to ListingID and is replaced once by
// the authoritative id parsed from the first statement row.
type Account struct {
	ID           string         `json:"id"`
	ListingID    string         `json:"listingId"`
	DisplayName  string         `json:"displayName"`
	Status       Status         `json:"status"`
	SupplyPoints []*SupplyPoint `json:"supplyPoints"`
}

// SupplyPoint is one physical service connection (suministro) of an account.
// ListingNumber is the supply number as shown on the account page; it keys
// navigation and is not touched by identity correction.
type SupplyPoint struct {
	ID            string       `json:"id"`
	AccountID     string       `json:"accountId"`
	SupplyNumber  string       `json:"supplyNumber"`
	ListingNumber string       `json:"listingNumber,omitempty"`
	Street        string       `json:"street"`
	HouseNumber   string       `json:"houseNumber"`
	Floor         string       `json:"floor"`
	Position      int          `json:"position"`
	Status        Status       `json:"status"`
	Statements    []*Statement `json:"statements"`
}

// PageNumber is the key of the supply point on its account page.
// Checkpoints written before ListingNumber existed use the supply number.
func (sp *SupplyPoint) PageNumber() string {
	if sp.ListingNumber != "" {
		return sp.ListingNumber
	}
	return sp.SupplyNumber
}

// Statement is one billing row (comprobante), possibly backed by a document
type Statement struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"accountId"`
	SupplyPointID     string    `json:"supplyPointId"`
	InvoiceNumber     string    `json:"fullInvoiceNumber"`
	IssueDate         time.Time `json:"issueDate"`
	Period            string    `json:"period"`
	InternalCode      string    `json:"internalCode"`
	DocumentType      string    `json:"documentType"`
	DocumentNumber    string    `json:"documentNumber"`
	FirstDueDate      time.Time `json:"firstDueDate"`
	SecondDueDate     time.Time `json:"secondDueDate"`
	OriginalAmount    float64   `json:"originalAmount"`
	Surcharge         float64   `json:"surcharge"`
	TotalAmount       float64   `json:"totalAmount"`
	HasDocument       bool      `json:"hasDocument"`
	DocumentURL       string    `json:"documentUrl,omitempty"`
	SuggestedFilename string    `json:"suggestedFilename,omitempty"`
	Hash              string    `json:"hash,omitempty"`
	Text              string    `json:"text,omitempty"`
	Content           []byte    `json:"content,omitempty"`
	FilePath          string    `json:"filePath,omitempty"`
	ProcessedAt       time.Time `json:"processedAt"`
}

// Fetched reports whether the statement's document has already been
// retrieved and validated.
func (s *Statement) Fetched() bool {
	return s.Hash != ""
}

// StoreKey is the natural key of a statement record in the document store.
func (s *Statement) StoreKey() string {
	number := s.DocumentNumber
	if number == "" {
		number = s.InvoiceNumber
	}
	return number + "|" + s.Hash
}

// SupplyPointID derives the identifier of a supply point from its parent
// account id and its supply number.
func SupplyPointID(accountID, supplyNumber string) string {
	return fmt.Sprintf("%s_%s", accountID, supplyNumber)
}

// StatementID derives the identifier of a statement within a supply point
func StatementID(supplyPointID string, index int) string {
	return fmt.Sprintf("%s_%d", supplyPointID, index)
}
