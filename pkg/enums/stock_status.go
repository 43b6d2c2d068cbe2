package enums

import "fmt"

// StockStatus describes product availability. DISPONIBLE and RUPTURE are
// derived from the quantity counter; EN_COMMANDE is a manual override meaning
// a replenishment is on the way.
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "DISPONIBLE"
	StockStatusOutOfStock StockStatus = "RUPTURE"
	StockStatusOnOrder    StockStatus = "EN_COMMANDE"
)

var validStockStatuses = []StockStatus{
	StockStatusAvailable,
	StockStatusOutOfStock,
	StockStatusOnOrder,
}

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// StockStatusForQuantity derives the status from the global counter.
func StockStatusForQuantity(quantity int) StockStatus {
	if quantity > 0 {
		return StockStatusAvailable
	}
	return StockStatusOutOfStock
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}
