// Package services – poll availability gate.
package services

import (
	"time"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// PollAvailable reports whether a poll accepts submissions at instant now.
//
// Availability is a pure function of stored fields and the clock — there is
// no persisted status column and no background job flipping one. The derived
// states are:
//
//   - inactive:  IsActive is false; closed until the owner re-enables it.
//   - scheduled: StartsAt is set and still in the future; opens by itself
//     once now reaches StartsAt, because every access point re-evaluates.
//   - ended:     EndsAt is set and in the past; closed for this window.
//   - open:      everything else.
//
// Both the vote path and the public read path must consult this gate; the
// public read path reports an unavailable poll as not found.
func PollAvailable(p *domain.Poll, now time.Time) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}
