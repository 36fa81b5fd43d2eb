package allowlist

import "strings"

// Gate decides whether an email address may request a magic link at all.
// Entries are either full addresses ("user@example.com") or domains
// ("example.com" / "@example.com"). A disabled gate allows everything.
type Gate struct {
	enabled bool
	emails  map[string]struct{}
	domains map[string]struct{}
}

func New(enabled bool, entries []string) *Gate {
	g := &Gate{
		enabled: enabled,
		emails:  make(map[string]struct{}),
		domains: make(map[string]struct{}),
	}

	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}

		if at := strings.IndexByte(e, '@'); at > 0 {
			g.emails[e] = struct{}{}
		} else {
			g.domains[strings.TrimPrefix(e, "@")] = struct{}{}
		}
	}

	return g
}

// IsAllowed is a pure lookup; absence of a match is a normal false, never an
// error. The email is assumed to be format-validated upstream.
func (g *Gate) IsAllowed(email string) bool {
	if !g.enabled {
		return true
	}

	email = strings.ToLower(email)

	if _, ok := g.emails[email]; ok {
		return true
	}

	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return false
	}

	_, ok := g.domains[email[at+1:]]

	return ok
}
