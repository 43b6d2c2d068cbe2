package enums

import "fmt"

// OrderStatus tracks a sales order through its lifecycle. Values keep the
// French wire form used by the existing back-office data.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "EN_ATTENTE"
	OrderStatusProcessing OrderStatus = "TRAITEMENT"
	OrderStatusDelivered  OrderStatus = "LIVREE"
	OrderStatusCancelled  OrderStatus = "ANNULEE"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
