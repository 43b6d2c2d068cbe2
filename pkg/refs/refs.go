package refs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Business document references. The millisecond timestamp keeps references
// sortable; the uuid fragment keeps two documents created in the same
// millisecond from colliding.
const (
	OrderPrefix   = "CMD"
	InvoicePrefix = "FAC"
	RefundPrefix  = "RMB"
)

// Order builds a sales order reference, e.g. CMD-1756600000000-ab12cd34.
func Order(now time.Time) string {
	return build(OrderPrefix, now)
}

// Invoice builds an invoice reference, e.g. FAC-1756600000000-ab12cd34.
func Invoice(now time.Time) string {
	return build(InvoicePrefix, now)
}

// Refund derives the refund reference from the cancelled invoice reference,
// e.g. RMB-FAC-1756600000000-ab12cd34.
func Refund(invoiceRef string) string {
	return RefundPrefix + "-" + invoiceRef
}

// IsRefund reports whether the reference was produced by Refund.
func IsRefund(reference string) bool {
	return strings.HasPrefix(reference, RefundPrefix+"-")
}

func build(prefix string, now time.Time) string {
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), frag)
}
