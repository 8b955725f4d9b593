// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// The constants below form a stable, machine-readable taxonomy that
// supplements the human-readable messages in ErrorResponse. Generic codes
// mirror common HTTP status semantics; domain codes exist where the status
// alone cannot tell outcomes apart (a 409 may mean a duplicate vote or a
// closed poll, a 403 may mean a quota rejection or private results).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAlreadyVoted     = "already_voted"
	ErrCodePollClosed       = "poll_closed"
	ErrCodeFormInactive     = "form_inactive"
	ErrCodeResultsPrivate   = "results_private"
	ErrCodeLimitExceeded    = "limit_exceeded"
	ErrCodeSlugTaken        = "slug_taken"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeVoteFailed       = "vote_failed"
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
