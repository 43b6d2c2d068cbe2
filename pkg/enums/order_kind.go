package enums

import "fmt"

// OrderKind distinguishes a regular counter sale from a quote converted later.
type OrderKind string

const (
	OrderKindCommande OrderKind = "COMMANDE"
	OrderKindDevis    OrderKind = "DEVIS"
)

var validOrderKinds = []OrderKind{
	OrderKindCommande,
	OrderKindDevis,
}

// String implements fmt.Stringer.
func (k OrderKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known OrderKind.
func (k OrderKind) IsValid() bool {
	for _, candidate := range validOrderKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseOrderKind converts raw input into an OrderKind.
func ParseOrderKind(value string) (OrderKind, error) {
	for _, candidate := range validOrderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order kind %q", value)
}
