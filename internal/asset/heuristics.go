package asset

import (
	"strings"

	"golang.org/x/text/cases"
)

// purchaseOrderToken precedes a UW purchase order number in free-text notes.
const purchaseOrderToken = "uw po"

// IsFabrication reports whether notes mention "fabrication" in any case.
func IsFabrication(notes string) bool {
	// Caser values carry state, so each call gets its own.
	return strings.Contains(cases.Fold().String(notes), "fabrication")
}

// PurchaseOrder extracts the text following the first "UW PO" (any case)
// in notes, dropping one separating space. It returns Absent when notes do
// not mention a purchase order.
//
//	PurchaseOrder("bought on UW PO 12345 (2019)") // Text("12345 (2019)")
func PurchaseOrder(notes string) Value {
	i := indexFold(notes, purchaseOrderToken)
	if i < 0 {
		return Absent()
	}
	rest := notes[i+len(purchaseOrderToken):]
	return Text(strings.TrimPrefix(rest, " "))
}

// indexFold returns the byte offset of the first case-insensitive match of
// the ASCII string substr in s, or -1. Offsets refer to s itself, so they
// stay valid for slicing the original text.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
