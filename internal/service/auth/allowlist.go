package auth

import "strings"

// Allowlist decides which Google accounts may authorize.
type Allowlist struct {
	domains []string
	emails  map[string]struct{}
}

// NewAllowlist builds an allow-list. With no domains and no emails every
// address is rejected.
func NewAllowlist(domains, emails []string) *Allowlist {
	a := &Allowlist{emails: make(map[string]struct{}, len(emails))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			a.domains = append(a.domains, d)
		}
	}
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

// IsEmailAuthorized reports whether email ends with "@"+domain for a
// configured domain or equals a configured email.
func (a *Allowlist) IsEmailAuthorized(email string) bool {
	if a == nil {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, d := range a.domains {
		if strings.HasSuffix(email, "@"+d) {
			return true
		}
	}
	_, ok := a.emails[email]
	return ok
}
