package billing

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	PrefixBudget  = "PRE"
	PrefixInvoice = "FAC"
	PrefixReceipt = "REC"
)

// DocumentNumber builds numbers like PRE-ACME-001 from the project alias and a running count.
// Aliases made of [A-Z0-9-] are used unchanged, so distinct aliases never share a number.
func DocumentNumber(prefix, alias string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, normalizeAlias(alias), seq)
}

// normalizeAlias uppercases and keeps ASCII letters, digits and dashes
func normalizeAlias(alias string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(alias) {
		if r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "PRJ"
	}
	return out
}
