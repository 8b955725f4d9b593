package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFingerprint_Priority(t *testing.T) {
	cases := []struct {
		name      string
		email     string
		ip        string
		userAgent string
		want      string
	}{
		{"email wins over everything", "Jane@Example.COM", "1.2.3.4", "Mozilla", "email:jane@example.com"},
		{"email is trimmed and lowercased", "  A@B.CO  ", "", "", "email:a@b.co"},
		{"ip when email blank", "   ", "1.2.3.4", "Mozilla", "ip:1.2.3.4"},
		{"ip is trimmed", "", " 10.0.0.1 ", "", "ip:10.0.0.1"},
		{"user agent as last resort", "", "", "Mozilla/5.0", "ua:Mozilla/5.0"},
		{"empty everything", "", "", "", "ua:unknown"},
	}
	for _, tc := range cases {
		if got := Fingerprint(tc.email, tc.ip, tc.userAgent); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFingerprint_UserAgentTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := Fingerprint("", "", long)
	if got != "ua:"+strings.Repeat("x", uaFingerprintMax) {
		t.Fatalf("agent not truncated to %d bytes: len=%d", uaFingerprintMax, len(got)-3)
	}

	exact := strings.Repeat("y", uaFingerprintMax)
	if got := Fingerprint("", "", exact); got != "ua:"+exact {
		t.Fatalf("agent at the cap should pass through unchanged")
	}
}

func TestFingerprint_UserAgentTruncationKeepsRuneBoundary(t *testing.T) {
	// "a" then 3-byte euro signs: the cap at byte 180 lands mid-rune, so the
	// cut has to back off to the last rune start (byte 178).
	ua := "a" + strings.Repeat("€", 100)

	got := Fingerprint("", "", ua)
	body := strings.TrimPrefix(got, "ua:")
	if !utf8.ValidString(body) {
		t.Fatalf("truncated agent is not valid UTF-8: %q", body)
	}
	if len(body) != 178 {
		t.Fatalf("truncated to %d bytes, want 178 (last rune start before the cap)", len(body))
	}
	if !strings.HasSuffix(body, "€") {
		t.Fatalf("truncated agent should end on a whole rune: %q", body[len(body)-4:])
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("v@e.com", "1.1.1.1", "agent")
	b := Fingerprint("v@e.com", "9.9.9.9", "other")
	if a != b {
		t.Fatalf("email-backed fingerprints should ignore ip/agent: %q vs %q", a, b)
	}
}
