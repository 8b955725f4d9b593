// Package services – voter identity fingerprinting.
package services

import (
	"strings"
	"unicode/utf8"
)

// uaFingerprintMax caps the user-agent fallback fingerprint length so the
// persisted column stays bounded.
const uaFingerprintMax = 180

// Fingerprint derives the stable pseudo-identity string persisted with each
// vote and enforced by the duplicate guard. It is deterministic and performs
// no I/O.
//
// Priority order:
//   - non-blank email  -> "email:" + lowercased, trimmed email (strongest
//     signal; require-email polls always land here)
//   - non-blank ip     -> "ip:" + trimmed ip
//   - otherwise        -> "ua:" + user agent truncated to at most 180 bytes
//     on a rune boundary, with "unknown" standing in for an empty agent
//
// The user-agent fallback is intentionally weak: distinct anonymous voters
// sharing an agent string collapse into one identity and only the first of
// them gets a vote. That false-negative risk is a known limitation carried
// over from the product's behavior, not a bug to strengthen — changing it
// would change observable voting outcomes.
func Fingerprint(email, ip, userAgent string) string {
	if e := strings.TrimSpace(email); e != "" {
		return "email:" + strings.ToLower(e)
	}
	if a := strings.TrimSpace(ip); a != "" {
		return "ip:" + a
	}
	ua := userAgent
	if ua == "" {
		ua = "unknown"
	}
	if len(ua) > uaFingerprintMax {
		// Back off to a rune boundary so the stored fingerprint stays
		// valid UTF-8 for non-ASCII agents.
		n := uaFingerprintMax
		for n > 0 && !utf8.RuneStart(ua[n]) {
			n--
		}
		ua = ua[:n]
	}
	return "ua:" + ua
}
