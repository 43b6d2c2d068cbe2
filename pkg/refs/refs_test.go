package refs

import (
	"strings"
	"testing"
	"time"
)

func TestOrderReferencesDoNotCollideInTheSameMillisecond(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := Order(now)
		if !strings.HasPrefix(ref, "CMD-") {
			t.Fatalf("unexpected prefix: %s", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference generated: %s", ref)
		}
		seen[ref] = true
	}
}

func TestInvoiceReferencePrefix(t *testing.T) {
	if ref := Invoice(time.Now()); !strings.HasPrefix(ref, "FAC-") {
		t.Fatalf("unexpected prefix: %s", ref)
	}
}

func TestRefundWrapsInvoiceReference(t *testing.T) {
	inv := Invoice(time.Now())
	refund := Refund(inv)
	if refund != "RMB-"+inv {
		t.Fatalf("unexpected refund reference: %s", refund)
	}
	if !IsRefund(refund) {
		t.Fatal("expected IsRefund true")
	}
	if IsRefund(inv) {
		t.Fatal("expected IsRefund false for an invoice reference")
	}
}
