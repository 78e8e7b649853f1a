package services

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

const (
	minCanonicalDigits = 11
	maxCanonicalDigits = 15
)

// Recipient is a canonicalized destination
type Recipient struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// JID returns the wire address of the recipient
func (r Recipient) JID() types.JID {
	return types.NewJID(r.Address, types.DefaultUserServer)
}

// Canonicalizer normalizes raw phone numbers to one wire format
type Canonicalizer struct {
	countryCode string
}

// NewCanonicalizer creates a canonicalizer using countryCode for national numbers
func NewCanonicalizer(countryCode string) *Canonicalizer {
	return &Canonicalizer{countryCode: strings.TrimPrefix(countryCode, "+")}
}

// Canonicalize returns the canonical digit string of raw, or false if invalid
func (c *Canonicalizer) Canonicalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		if server := raw[at+1:]; server != "c.us" && server != types.DefaultUserServer {
			return "", false
		}
		raw = raw[:at]
	}

	international := strings.HasPrefix(raw, "+")
	digits := stripNonDigits(raw)

	if !international && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		international = true
	}

	if !international && c.countryCode != "" {
		switch {
		case len(digits) == 10 && digits[0] != '0':
			digits = c.countryCode + digits
		case len(digits) == 11 && digits[0] == '0':
			digits = c.countryCode + digits[1:]
		}
	}

	if len(digits) < minCanonicalDigits || len(digits) > maxCanonicalDigits || digits[0] == '0' {
		return "", false
	}
	return digits, true
}

// Normalize canonicalizes and deduplicates raw addresses, keeping first-seen order
func (c *Canonicalizer) Normalize(raw []string) []Recipient {
	seen := make(map[string]struct{}, len(raw))
	recipients := make([]Recipient, 0, len(raw))

	for _, r := range raw {
		address, ok := c.Canonicalize(r)
		if !ok {
			continue
		}
		if _, dup := seen[address]; dup {
			continue
		}
		seen[address] = struct{}{}
		recipients = append(recipients, Recipient{Address: address})
	}

	return recipients
}

// SplitRecipients splits a comma, semicolon or newline separated list
func SplitRecipients(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
