package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Invoice numbers look like 1-61141-1-23/06/25-3-B-1-84919364: the leading
// component is the supply number and the second one the account id.
var invoiceNumberPattern = regexp.MustCompile(`^(\d+)-(\d+)-`)

// InvoiceIdentity holds the identifiers encoded in an invoice number
type InvoiceIdentity struct {
	SupplyNumber string
	AccountID    string
}

// ParseInvoiceNumber extracts the supply number and account id from a full
// invoice number. ok is false when the number does not have the expected shape.
func ParseInvoiceNumber(invoice string) (InvoiceIdentity, bool) {
	m := invoiceNumberPattern.FindStringSubmatch(strings.TrimSpace(invoice))
	if m == nil {
		return InvoiceIdentity{}, false
	}
	return InvoiceIdentity{SupplyNumber: m[1], AccountID: m[2]}, true
}

// ParseDate parses a DD/MM/YYYY date. Unparsable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		t, err = time.Parse("2/1/2006", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// ParseAmount parses amounts written as 37.741,29. Unparsable input yields 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9-_.] with '_'
func SanitizeFilename(s string) string {
	return unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
}

// SuggestedFilename is the artifact file name used for a statement's document
func SuggestedFilename(invoiceNumber string) string {
	return SanitizeFilename(invoiceNumber) + ".pdf"
}
