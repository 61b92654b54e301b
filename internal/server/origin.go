package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is the browser origin allow-list applied to WebSocket
// upgrades. The zero value rejects every origin.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

// newOriginPolicy builds a policy from configured origins and returns the
// canonical forms it kept. "*" admits any http or https origin; entries that
// do not parse as an http(s) origin are skipped with a warning.
func newOriginPolicy(log *slog.Logger, origins []string) (originPolicy, []string) {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	var kept []string

	for _, raw := range origins {
		entry := strings.TrimSpace(raw)
		switch entry {
		case "":
			continue
		case "*":
			policy.any = true
			continue
		}

		canonical, ok := canonicalOrigin(entry)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", "origin", raw)
			continue
		}
		if _, dup := policy.allowed[canonical]; dup {
			continue
		}
		policy.allowed[canonical] = struct{}{}
		kept = append(kept, canonical)
	}

	return policy, kept
}

// canonicalOrigin lowercases scheme and host and drops any path, so
// "HTTPS://Chat.Example.com/" and "https://chat.example.com" compare equal.
func canonicalOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(parsed.Host), true
}

func (p originPolicy) allows(origin string) bool {
	canonical, ok := canonicalOrigin(origin)
	if !ok {
		return false
	}
	if p.any {
		return true
	}
	_, ok = p.allowed[canonical]
	return ok
}

// originChecker returns an upgrade CheckOrigin func bound to the active
// configuration. Requests without an Origin header are refused.
func originChecker(log *slog.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		configMu.RLock()
		policy := activeOrigins
		configMu.RUnlock()

		if origin != "" && policy.allows(origin) {
			return true
		}
		log.Warn("blocked websocket connection from disallowed origin", "origin", origin, "addr", r.RemoteAddr)
		return false
	}
}
