package enums

import "fmt"

// InvoiceStatus is derived from paid vs due amounts, never set directly by
// callers except through cancellation.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "NON_PAYEE"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIELLEMENT_PAYEE"
	InvoiceStatusPaid          InvoiceStatus = "PAYEE"
	InvoiceStatusCancelled     InvoiceStatus = "ANNULEE"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusUnpaid,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
