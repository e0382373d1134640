package slogx

import "strings"

// MaskEmail hides most of an email's local part so addresses can appear in
// log lines without leaking who they belong to. The first three characters
// survive, the rest of the local part becomes asterisks, the domain stays.
// Strings without an "@" are masked entirely.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return strings.Repeat("*", len(email))
	}

	visible := 3
	if len(local) < visible {
		visible = len(local)
	}

	return local[:visible] + strings.Repeat("*", len(local)-visible) + "@" + domain
}
