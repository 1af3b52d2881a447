package infrastructure

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	cardCandidate = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	cvvPhrase     = regexp.MustCompile(`(?i)\b(cvv|cvc|cvv2|c[oó]digo de seguridad|security code)\b\D{0,20}\d{3,4}\b`)
)

// PIIFinding names one kind of sensitive data found in a text.
type PIIFinding struct {
	Type  string `json:"type"`
	Match string `json:"match"` // masked
}

// DetectPII looks for payment card numbers and card security codes. A card
// number needs a known network prefix and length and a valid Luhn digit;
// numbers written with a leading "+" are phone numbers. Matches are masked
// before being returned.
func DetectPII(text string) []PIIFinding {
	var found []PIIFinding
	for _, loc := range cardCandidate.FindAllStringIndex(text, -1) {
		if strings.HasSuffix(strings.TrimRight(text[:loc[0]], " "), "+") {
			continue
		}
		if digits, ok := cardNumber(onlyDigits(text[loc[0]:loc[1]])); ok {
			found = append(found, PIIFinding{Type: "credit_card", Match: maskDigits(digits)})
		}
	}
	for _, m := range cvvPhrase.FindAllString(text, -1) {
		found = append(found, PIIFinding{Type: "card_security_code", Match: maskDigits(onlyDigits(m))})
	}
	return found
}

// cardNumber finds the longest leading part of a digit run that is a card
// number; a run can swallow a following number ("4242 ... 4242 12/27").
func cardNumber(run string) (string, bool) {
	for n := min(len(run), 19); n >= 13; n-- {
		if d := run[:n]; cardNetwork(d) && luhnValid(d) {
			return d, true
		}
	}
	return "", false
}

// cardNetwork reports whether digits has the prefix and length of Visa,
// Mastercard, American Express or Discover.
func cardNetwork(digits string) bool {
	n := len(digits)
	if n < 13 {
		return false
	}
	prefix := func(k int) int {
		v, _ := strconv.Atoi(digits[:k])
		return v
	}
	switch {
	case digits[0] == '4':
		return n == 13 || n == 16 || n == 19
	case prefix(2) >= 51 && prefix(2) <= 55, prefix(4) >= 2221 && prefix(4) <= 2720:
		return n == 16
	case prefix(2) == 34 || prefix(2) == 37:
		return n == 15
	case prefix(4) == 6011 || prefix(2) == 65:
		return n == 16
	}
	return false
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func maskDigits(d string) string {
	if len(d) <= 4 {
		return strings.Repeat("*", len(d))
	}
	return strings.Repeat("*", len(d)-4) + d[len(d)-4:]
}
