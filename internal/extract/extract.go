// Package extract pulls normalized bank references out of statement
// descriptions. Banks embed cheque numbers, UTR numbers, and payment-rail
// transaction IDs in free text using a handful of conventions; an
// extracted reference lets the classifier match two statements exactly
// instead of falling back to fuzzy scoring.
package extract

import (
	"regexp"
	"strings"
)

// rule is one extraction convention. Rules are evaluated in order and
// the first non-empty capture wins, so earlier rules take priority over
// the generic fallbacks.
type rule struct {
	re   *regexp.Regexp
	name string
}

var rules = []rule{
	// Labeled bank prefixes: CHQ 123456, REF:ABC99, UTR/N123...
	{name: "labeled_prefix", re: regexp.MustCompile(`(?i)\b(?:CHQ|CHEQUE|REF|UTR)[\s/:.\-]*([A-Za-z0-9]+)`)},
	// Payment-rail transaction IDs: a 12+ digit run after a rail tag,
	// e.g. UPI/987654321012/... or NEFT-000123456789.
	{name: "payment_rail", re: regexp.MustCompile(`(?i)\b(?:UPI|IMPS|NEFT|RTGS)[\s/:.\-]*(\d{12,})`)},
	// Generic uppercase-alphanumeric token of 8+ characters.
	{name: "alphanumeric", re: regexp.MustCompile(`\b([A-Z0-9]{8,})\b`)},
	// Generic numeric run of 6+ digits.
	{name: "numeric", re: regexp.MustCompile(`\b(\d{6,})\b`)},
}

// separatorReplacer strips the punctuation banks use between a reference
// label and the reference itself.
var separatorReplacer = strings.NewReplacer(" ", "", "\t", "", "/", "", "-", "", ":", "", ".", "", "_", "")

// label prefixes removed during normalization so "CHQ/REF123456" and
// "ref-123456" normalize identically.
var labelPrefixes = []string{"CHQ", "CHEQUE", "REF", "UTR"}

// Reference returns the normalized bank reference for a transaction. An
// explicit reference from a mapped column always wins over anything
// found in the description. The second return is false when no rule
// matched; that is an expected outcome, not an error.
func Reference(description, explicit string) (string, bool) {
	if ref := Normalize(explicit); ref != "" {
		return ref, true
	}

	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatch(description, -1) {
			// A reference always carries digits. Without this the
			// labeled rule latches onto words like REFUND and the
			// alphanumeric fallback onto plain uppercase words like
			// PAYMENT.
			if !strings.ContainsAny(m[1], "0123456789") {
				continue
			}
			if ref := Normalize(m[1]); ref != "" {
				return ref, true
			}
		}
	}

	return "", false
}

// Normalize uppercases a raw reference, strips whitespace and punctuation
// separators, and removes leading label prefixes. Normalize is
// idempotent.
func Normalize(raw string) string {
	ref := strings.ToUpper(strings.TrimSpace(raw))
	ref = separatorReplacer.Replace(ref)

	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range labelPrefixes {
			// Never strip a prefix down to nothing: "REF" alone is not
			// a reference, but "UTR123" minus "UTR" still is.
			if strings.HasPrefix(ref, prefix) && len(ref) > len(prefix) {
				ref = ref[len(prefix):]
				stripped = true
			}
		}
	}

	for _, prefix := range labelPrefixes {
		if ref == prefix {
			return ""
		}
	}
	return ref
}
