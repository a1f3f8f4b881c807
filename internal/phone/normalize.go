// Package phone implements canonicalization of free-text phone numbers as
// users type them: punctuation and spacing are discarded, an international
// prefix is preserved, and domestic 11-digit numbers written with a leading 8
// are rewritten to the +7 country code.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when the input contains no usable number.
var ErrInvalidPhone = errors.New("invalid phone format")

// Normalize converts raw free-text input to canonical form.
//
// Every character except decimal digits and a single leading '+' is
// discarded. The branches below are ordered and strict:
//
//  1. A leading '+' keeps the remaining digits as an international number;
//     a bare '+' with no digits fails.
//  2. Exactly 11 digits starting with '8' become "+7" plus the last 10
//     digits (domestic trunk prefix rewrite). This branch always wins over
//     the generic all-digits branch.
//  3. Any other non-empty digit string is returned unchanged.
//  4. Anything else fails with ErrInvalidPhone.
//
// Normalize is idempotent on its own output: the trunk-rewrite branch
// produces a "+7…" value that branch 1 keeps stable on a second pass.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()

	switch {
	case strings.HasPrefix(s, "+"):
		if len(s) == 1 {
			return "", ErrInvalidPhone
		}
		return s, nil
	case len(s) == 11 && s[0] == '8':
		return "+7" + s[1:], nil
	case s != "":
		return s, nil
	default:
		return "", ErrInvalidPhone
	}
}
