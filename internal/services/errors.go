// Package services defines the business logic for bios, polls, forms, and
// their public submission paths. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer. Infrastructure failures (storage unavailable, etc.) are never mapped
// onto these sentinels — they propagate as raw errors so callers can tell
// business outcomes from broken plumbing.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrBioNotFound indicates that the requested bio does not exist or is
	// not accessible to the current user.
	ErrBioNotFound = errors.New("bio not found")

	// ErrPollNotFound indicates that the requested poll does not exist. The
	// public read path also returns it for polls that exist but are currently
	// unavailable, so probing cannot distinguish the two.
	ErrPollNotFound = errors.New("poll not found")

	// ErrFormNotFound indicates that the requested form does not exist.
	ErrFormNotFound = errors.New("form not found")

	// ErrPollClosed is returned when a vote arrives outside the poll's
	// availability window or while the poll is deactivated.
	ErrPollClosed = errors.New("poll is not accepting votes")

	// ErrFormInactive is returned when a submission arrives for a
	// deactivated form.
	ErrFormInactive = errors.New("form is inactive")

	// ErrTitleRequired is returned when a poll or form is created without a
	// non-blank title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTooFewOptions is returned when a poll would end up with fewer than
	// two options after normalization.
	ErrTooFewOptions = errors.New("poll must have at least 2 options")

	// ErrNoOptionSelected is returned when a vote carries no option ids
	// after trimming and deduplication.
	ErrNoOptionSelected = errors.New("at least one option is required")

	// ErrMultipleNotAllowed is returned when a single-choice poll receives
	// more than one option id.
	ErrMultipleNotAllowed = errors.New("this poll allows only one option")

	// ErrInvalidOption is returned when a vote references an option id that
	// is not part of the poll's current option set.
	ErrInvalidOption = errors.New("invalid option selected")

	// ErrNameRequired is returned when a require-name poll receives a blank
	// voter name.
	ErrNameRequired = errors.New("name is required")

	// ErrEmailRequired is returned when a require-email poll receives a
	// blank voter email.
	ErrEmailRequired = errors.New("email is required")

	// ErrAlreadyVoted is returned when the duplicate guard rejects a vote:
	// a vote with the same fingerprint already exists for the poll. Maps to
	// a conflict at the HTTP boundary.
	ErrAlreadyVoted = errors.New("you have already voted on this poll")

	// ErrResultsPrivate is returned when public results are requested for a
	// poll whose owner keeps results private.
	ErrResultsPrivate = errors.New("results are not public for this poll")
)

// LimitExceededError reports a plan-quota rejection. It carries the resolved
// plan name and the numeric limit so callers can render an upgrade prompt.
type LimitExceededError struct {
	Plan  string
	Limit int
	Kind  string // "polls" or "forms"
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit reached: you can only create %d %s on the %s plan", e.Limit, e.Kind, e.Plan)
}

// AsLimitExceeded unwraps err into a *LimitExceededError when possible.
func AsLimitExceeded(err error) (*LimitExceededError, bool) {
	var le *LimitExceededError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
