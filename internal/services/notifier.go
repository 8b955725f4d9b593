// Package services – outbound side-effect boundaries.
//
// This file defines the two external-collaborator contracts of the submission
// core: the milestone/automation notifier and the email lead capture. Both
// are strictly fire-and-forget from the caller's point of view — a committed
// vote or submission is never rolled back or failed because a downstream
// automation or lead insert misbehaved. Failures are logged and dropped.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

// Event kinds emitted by the submission paths.
const (
	EventPollVote            = "poll_vote"
	EventFormSubmit          = "form_submit"
	EventFormSubmitMilestone = "form_submit_milestone"
)

// Event is one submission notification handed to the automation pipeline.
type Event struct {
	BioID      string
	ResourceID string
	Kind       string
	TotalCount int64
	Payload    map[string]any
}

// Notifier receives submission events so downstream automations (welcome
// emails, milestone celebrations, webhooks) can fire. Implementations must
// tolerate being called from short-lived goroutines with a detached context.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier is the default Notifier: it records each event in the
// structured log and nothing more. Deployments wire a real automation
// dispatcher in its place.
type LogNotifier struct {
	// Logger defaults to the global zerolog logger when nil.
	Logger *zerolog.Logger
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	lg := n.Logger
	if lg == nil {
		lg = &log.Logger
	}
	lg.Info().
		Str("bio_id", ev.BioID).
		Str("resource_id", ev.ResourceID).
		Str("kind", ev.Kind).
		Int64("total_count", ev.TotalCount).
		Msg("submission event")
	return nil
}

// LeadCapture registers a voter email as a subscriber lead under a bio.
// Duplicate leads must be reported as repo.ErrDuplicate so the caller can
// swallow them.
type LeadCapture interface {
	Add(ctx context.Context, bioID, email, source string) error
}

// DBLeadCapture is the repository-backed LeadCapture.
type DBLeadCapture struct {
	DB *gorm.DB
}

// Add implements LeadCapture.
func (l *DBLeadCapture) Add(ctx context.Context, bioID, email, source string) error {
	_, err := repo.CreateLead(ctx, l.DB, bioID, email, source)
	return err
}

// notifyTimeout bounds each detached notifier call.
const notifyTimeout = 5 * time.Second

// emitAsync delivers ev on a detached goroutine with its own deadline. The
// submitting request has already committed by the time this runs; errors are
// logged and never reach the caller.
func emitAsync(n Notifier, ev Event) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("bio_id", ev.BioID).
				Str("kind", ev.Kind).
				Msg("notifier delivery failed")
		}
	}()
}
