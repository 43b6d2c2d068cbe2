package enums

import "fmt"

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementTypeImport     MovementType = "IMPORT"
	MovementTypeSale       MovementType = "SALE"
	MovementTypeReturn     MovementType = "RETURN"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	MovementTypeTransfer   MovementType = "TRANSFER"
	MovementTypeLoss       MovementType = "LOSS"
	MovementTypeCommande   MovementType = "COMMANDE"
)

var validMovementTypes = []MovementType{
	MovementTypeImport,
	MovementTypeSale,
	MovementTypeReturn,
	MovementTypeAdjustment,
	MovementTypeTransfer,
	MovementTypeLoss,
	MovementTypeCommande,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// AffectsGlobalQuantity reports whether product-level movements of this type
// participate in the quantity reconciliation sum. COMMANDE entries are
// advisory reservations and never mutate counters.
func (m MovementType) AffectsGlobalQuantity() bool {
	switch m {
	case MovementTypeImport, MovementTypeSale, MovementTypeReturn, MovementTypeAdjustment, MovementTypeLoss:
		return true
	default:
		return false
	}
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
