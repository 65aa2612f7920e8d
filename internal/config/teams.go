package config

import "strings"

// Teams maps user emails to group titles. Lookups ignore email case.
type Teams map[string]string

// GroupForUser returns the group title configured for email.
func (t Teams) GroupForUser(email string) (string, bool) {
	key := normalizeEmail(email)
	title, ok := t[key]
	if !ok {
		// Not loaded through Load; keys may not be normalised.
		for k, v := range t {
			if normalizeEmail(k) == key {
				title, ok = v, true
				break
			}
		}
	}
	title = strings.TrimSpace(title)
	if !ok || title == "" {
		return "", false
	}
	return title, true
}

func (t Teams) normalized() Teams {
	out := make(Teams, len(t))
	for email, title := range t {
		out[normalizeEmail(email)] = strings.TrimSpace(title)
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
