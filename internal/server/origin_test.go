package server

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   string
		ok     bool
	}{
		{origin: "http://localhost:8080", want: "http://localhost:8080", ok: true},
		{origin: "HTTPS://Chat.Example.com", want: "https://chat.example.com", ok: true},
		{origin: "https://chat.example.com/rooms", want: "https://chat.example.com", ok: true},
		{origin: "not-a-url"},
		{origin: "http://"},
		{origin: "ftp://files.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			got, ok := canonicalOrigin(tt.origin)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewOriginPolicy(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	policy, kept := newOriginPolicy(log, []string{" https://A.example.com ", "https://a.example.com", "", "bogus"})

	require.Equal(t, []string{"https://a.example.com"}, kept)
	require.False(t, policy.any)
	require.True(t, policy.allows("https://a.example.com"))
	require.False(t, policy.allows("https://b.example.com"))
	require.Contains(t, logs.String(), "origin=bogus")

	wildcard, kept := newOriginPolicy(log, []string{"*"})
	require.Empty(t, kept)
	require.True(t, wildcard.allows("https://anywhere.example.org"))
	require.False(t, wildcard.allows("ftp://anywhere.example.org"))

	require.False(t, originPolicy{}.allows("http://localhost:8080"))
}

func TestOriginChecker(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"https://chat.example.com"}})

	var logs bytes.Buffer
	check := originChecker(slog.New(slog.NewTextHandler(&logs, nil)))

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "allowed", origin: "https://chat.example.com", want: true},
		{name: "case insensitive", origin: "https://CHAT.example.com", want: true},
		{name: "other host", origin: "https://evil.example.com"},
		{name: "missing", origin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, check(r))
		})
	}
	require.Contains(t, logs.String(), "blocked websocket connection")

	SetConfig(&Config{AllowedOrigins: []string{"*"}})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.org")
	require.True(t, check(r))
}
