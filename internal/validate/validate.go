package validate

import (
	"regexp"
	"strings"
)

var (
	reScope   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reID      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reBarcode = regexp.MustCompile(`^[0-9]{6,14}$`)
)

// Scope validates a user id arriving on the X-User-ID header.
func Scope(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reScope.MatchString(s)
}

// ID validates a product/sale/note identifier.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// ProductName trims and bounds a displayable product name.
func ProductName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 80 {
		return "", false
	}
	return s, true
}

// ProductNumbers applies the catalog rules: price above zero, cost and stock
// never negative.
func ProductNumbers(price, cost float64, qty int) (string, bool) {
	switch {
	case price <= 0:
		return "price must be greater than 0", false
	case cost < 0:
		return "cost cannot be negative", false
	case qty < 0:
		return "stock cannot be negative", false
	}
	return "", true
}

// Barcode is optional; when present it must look like a numeric barcode.
func Barcode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, reBarcode.MatchString(s)
}

// Qty clamps a sell/restock quantity to a sane positive range.
func Qty(n int) (int, bool) {
	if n < 1 {
		return 0, false
	}
	if n > 100000 {
		return 0, false
	}
	return n, true
}

// NoteContent requires something to save and bounds the size.
func NoteContent(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 4000 {
		return "", false
	}
	return s, true
}

// NoteTitle is optional but bounded.
func NoteTitle(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return "", false
	}
	return s, true
}

// ReportRange restricts the report window selector.
func ReportRange(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "daily", true
	}
	switch s {
	case "daily", "weekly", "monthly":
		return s, true
	}
	return "", false
}
