package priority

import (
	"strings"

	"github.com/convergeai/core/ai/filter"
)

// snippetFilter redacts any PII pattern ai/filter already knows how to find
// — email addresses, IPs, and locale-specific ID formats — from free-form
// text such as a complaint description, before it is stored in a queue
// entry's MessageSnippet. Dedicated single-field masking (a known phone
// number, a known email on a user record) goes through MaskPhone/MaskEmail
// below instead, since those need the exact mask shape spec'd for a
// reviewer-facing record rather than a scan-and-replace over prose.
var snippetFilter = filter.DefaultFilter()

// RedactSnippet scans free text for any PII pattern the shared filter
// recognizes and masks it in place. Used for MessageSnippet and complaint
// descriptions shown to a reviewer without full_access.
func RedactSnippet(text string) string {
	return snippetFilter.FilterText(text)
}

const (
	phoneKeepFirst = 2
	phoneKeepLast  = 4
	emailKeepFirst = 1
)

// MaskPhone masks a known phone number field, keeping the first two and
// last four digits and masking everything between — e.g. "9812345678"
// becomes "98****5678". Values too short to meaningfully mask are returned
// unchanged.
func MaskPhone(phone string) string {
	runes := []rune(phone)
	n := len(runes)
	if n <= phoneKeepFirst+phoneKeepLast {
		return phone
	}
	masked := make([]rune, n)
	copy(masked, runes)
	for i := phoneKeepFirst; i < n-phoneKeepLast; i++ {
		masked[i] = '*'
	}
	return string(masked)
}

// MaskEmail masks a known email field, keeping the first local-part
// character and the full domain — e.g. "user@example.com" becomes
// "u***@example.com". Strings without an "@" are returned unchanged.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	local := []rune(email[:at])
	domain := email[at:]
	return string(local[:emailKeepFirst]) + "***" + domain
}
