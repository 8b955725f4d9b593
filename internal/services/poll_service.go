// Package services – PollService
//
// This file implements the PollService, which governs the lifecycle of polls
// and the public voting path. It normalizes option lists and chart colors,
// enforces ownership through the bio, gates creation on the owner's plan
// quota, and runs the vote pipeline: availability gate, selection validation,
// fingerprint-based duplicate guard, and the atomic insert+counter write.
//
// Service-level errors (ErrPollNotFound, ErrPollClosed, ErrAlreadyVoted, …)
// are returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

// DefaultChartColors is the fixed palette applied when a poll carries no
// (valid) custom colors.
var DefaultChartColors = []string{"#111827", "#374151", "#6b7280", "#9ca3af", "#d1d5db", "#4b5563"}

// maxChartColors caps custom palettes.
const maxChartColors = 12

// hexColorRE accepts #RGB and #RRGGBB.
var hexColorRE = regexp.MustCompile(`^#([0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})$`)

// PollService implements the use-cases around polls and votes. It is
// request-scoped and stateless between calls; every write path opens its own
// transaction on the provided GORM handle.
type PollService struct {
	// DB is the database handle used for all poll operations.
	DB *gorm.DB
	// Plans gates creation on the owner's subscription quota.
	Plans *PlanService
	// Leads captures voter emails as subscriber leads (best effort).
	Leads LeadCapture
	// Notifier receives fire-and-forget submission events.
	Notifier Notifier
}

// PollOptionInput is one option as supplied by the owner. A blank label drops
// the entry; a blank id is replaced with a positional "option-N" id.
type PollOptionInput struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PollInput carries the owner-editable poll definition. On update, nil
// pointer fields are left unchanged.
type PollInput struct {
	Title                *string
	Description          *string
	Options              []PollOptionInput
	IsActive             *bool
	AllowMultipleChoices *bool
	RequireName          *bool
	RequireEmail         *bool
	ShowResultsPublic    *bool
	ChartType            *string
	ChartColors          []string
	StartsAt             *time.Time
	EndsAt               *time.Time
}

// VoteInput is the public ballot payload.
type VoteInput struct {
	OptionIDs []string
	Name      string
	Email     string
}

// SubmitMeta is the capture metadata of a public submission.
type SubmitMeta struct {
	IP        string
	UserAgent string
}

// VoteReceipt is returned to a successful voter.
type VoteReceipt struct {
	Success     bool         `json:"success"`
	PollID      string       `json:"poll_id"`
	ShowResults bool         `json:"show_results"`
	Results     *PollResults `json:"results,omitempty"`
}

// Create inserts a new poll under bioID after verifying ownership and plan
// quota. The quota check and the insert share one transaction so concurrent
// creations cannot both squeeze under the limit.
func (s *PollService) Create(ctx context.Context, userID, bioID string, in PollInput) (*domain.Poll, error) {
	var created *domain.Poll
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bio, err := repo.GetBio(ctx, tx, bioID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBioNotFound
			}
			return err
		}

		if err := s.Plans.CheckCreateAllowed(ctx, tx, bio, KindPolls, time.Now().UTC()); err != nil {
			return err
		}

		title := ""
		if in.Title != nil {
			title = strings.TrimSpace(*in.Title)
		}
		if title == "" {
			return ErrTitleRequired
		}

		options := normalizeOptions(in.Options)
		if len(options) < 2 {
			return ErrTooFewOptions
		}

		p := &domain.Poll{
			BioID:                bio.ID,
			Title:                title,
			Description:          in.Description,
			Options:              options,
			IsActive:             boolOr(in.IsActive, true),
			AllowMultipleChoices: boolOr(in.AllowMultipleChoices, false),
			RequireName:          boolOr(in.RequireName, false),
			RequireEmail:         boolOr(in.RequireEmail, false),
			ShowResultsPublic:    boolOr(in.ShowResultsPublic, true),
			ChartType:            stringOr(in.ChartType, "bar"),
			ChartColors:          normalizeChartColors(in.ChartColors),
			StartsAt:             in.StartsAt,
			EndsAt:               in.EndsAt,
		}
		created, err = repo.CreatePoll(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListPage returns a page of the bio's polls plus the total count, enforcing
// ownership.
func (s *PollService) ListPage(ctx context.Context, userID, bioID string, page, pageSize int) ([]domain.Poll, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	if _, err := repo.GetBio(ctx, s.DB, bioID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrBioNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountPolls(ctx, s.DB, bioID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Poll{}, 0, nil
	}
	items, err := repo.ListPollsPage(ctx, s.DB, bioID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns a poll owned by userID, or ErrPollNotFound.
func (s *PollService) Get(ctx context.Context, userID, pollID string) (*domain.Poll, error) {
	return s.ownedPoll(ctx, s.DB, userID, pollID)
}

// GetPublic returns a poll for the anonymous read path. A missing poll and
// an unavailable one are indistinguishable: both are ErrPollNotFound, so
// probing cannot confirm a poll exists outside its window.
func (s *PollService) GetPublic(ctx context.Context, pollID string) (*domain.Poll, error) {
	p, err := repo.GetPoll(ctx, s.DB, pollID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	if !PollAvailable(p, time.Now().UTC()) {
		return nil, ErrPollNotFound
	}
	return p, nil
}

// Update applies a partial definition to a poll owned by userID, re-running
// the same option and color normalization as creation.
func (s *PollService) Update(ctx context.Context, userID, pollID string, in PollInput) (*domain.Poll, error) {
	var updated *domain.Poll
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.ownedPoll(ctx, tx, userID, pollID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return ErrTitleRequired
			}
			updates["title"] = t
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Options != nil {
			options := normalizeOptions(in.Options)
			if len(options) < 2 {
				return ErrTooFewOptions
			}
			updates["options"] = options
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if in.AllowMultipleChoices != nil {
			updates["allow_multiple_choices"] = *in.AllowMultipleChoices
		}
		if in.RequireName != nil {
			updates["require_name"] = *in.RequireName
		}
		if in.RequireEmail != nil {
			updates["require_email"] = *in.RequireEmail
		}
		if in.ShowResultsPublic != nil {
			updates["show_results_public"] = *in.ShowResultsPublic
		}
		if in.ChartType != nil {
			updates["chart_type"] = *in.ChartType
		}
		if in.ChartColors != nil {
			updates["chart_colors"] = normalizeChartColors(in.ChartColors)
		}
		if in.StartsAt != nil {
			updates["starts_at"] = *in.StartsAt
		}
		if in.EndsAt != nil {
			updates["ends_at"] = *in.EndsAt
		}

		if len(updates) > 0 {
			if err := repo.UpdatePoll(ctx, tx, current.ID, updates); err != nil {
				return err
			}
		}
		updated, err = repo.GetPoll(ctx, tx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a poll owned by userID; its votes cascade.
func (s *PollService) Delete(ctx context.Context, userID, pollID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ownedPoll(ctx, tx, userID, pollID); err != nil {
			return err
		}
		return repo.DeletePoll(ctx, tx, pollID)
	})
}

// Results computes the owner-facing result set, reading the vote rows fresh.
func (s *PollService) Results(ctx context.Context, userID, pollID string) (*PollResults, error) {
	p, err := s.ownedPoll(ctx, s.DB, userID, pollID)
	if err != nil {
		return nil, err
	}
	return s.freshResults(ctx, p)
}

// PublicResults computes the anonymous result set. Unavailable or missing
// polls are ErrPollNotFound; polls whose owner keeps results private are
// ErrResultsPrivate (the poll's existence is already public at that point).
func (s *PollService) PublicResults(ctx context.Context, pollID string) (*PollResults, error) {
	p, err := s.GetPublic(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !p.ShowResultsPublic {
		return nil, ErrResultsPrivate
	}
	return s.freshResults(ctx, p)
}

// Vote runs the public vote pipeline.
//
// Validation order (first failure wins): poll exists, availability gate,
// non-empty deduplicated selection, choice cardinality, option membership,
// required name, required email, duplicate guard.
//
// Concurrency & atomicity:
//   - The vote insert and the counter increment run in one transaction, so a
//     request dying mid-write leaves either both effects or neither.
//   - Duplicate rejection is NOT a read-then-check: the insert relies on the
//     (poll_id, voter_fingerprint) unique index as the single atomic arbiter,
//     and the constraint violation is translated to ErrAlreadyVoted. Two
//     concurrent requests with one fingerprint get exactly one success.
//
// Side effects after commit (never rolled back, never surfaced as the vote's
// error): lead capture for require-email polls, and a poll_vote event to the
// notifier.
func (s *PollService) Vote(ctx context.Context, pollID string, in VoteInput, meta SubmitMeta) (*VoteReceipt, error) {
	var poll *domain.Poll

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		poll, err = repo.GetPoll(ctx, tx, pollID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPollNotFound
			}
			return err
		}
		if !PollAvailable(poll, time.Now().UTC()) {
			return ErrPollClosed
		}

		selected := dedupeIDs(in.OptionIDs)
		if len(selected) == 0 {
			return ErrNoOptionSelected
		}
		if !poll.AllowMultipleChoices && len(selected) > 1 {
			return ErrMultipleNotAllowed
		}
		valid := make(map[string]struct{}, len(poll.Options))
		for _, opt := range poll.Options {
			valid[opt.ID] = struct{}{}
		}
		for _, id := range selected {
			if _, ok := valid[id]; !ok {
				return ErrInvalidOption
			}
		}

		name := strings.TrimSpace(in.Name)
		if poll.RequireName && name == "" {
			return ErrNameRequired
		}
		email := strings.TrimSpace(in.Email)
		if poll.RequireEmail && email == "" {
			return ErrEmailRequired
		}

		vote := &domain.PollVote{
			PollID:            poll.ID,
			SelectedOptionIDs: selected,
			VoterFingerprint:  Fingerprint(in.Email, meta.IP, meta.UserAgent),
		}
		if name != "" {
			vote.VoterName = &name
		}
		if email != "" {
			low := strings.ToLower(email)
			vote.VoterEmail = &low
		}
		if ip := strings.TrimSpace(meta.IP); ip != "" {
			vote.IPAddress = &ip
		}
		if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
			vote.UserAgent = &ua
		}

		if _, err := repo.CreatePollVote(ctx, tx, vote); err != nil {
			if isDuplicate(err) {
				return ErrAlreadyVoted
			}
			return err
		}
		return repo.IncrementPollVotes(ctx, tx, poll.ID)
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects. The vote is durable; nothing below may undo
	// or fail it.
	if email := strings.TrimSpace(in.Email); email != "" && poll.RequireEmail && s.Leads != nil {
		if err := s.Leads.Add(ctx, poll.BioID, strings.ToLower(email), "poll"); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			log.Error().Err(err).Str("poll_id", poll.ID).Msg("failed to add email lead from poll vote")
		}
	}
	emitAsync(s.Notifier, Event{
		BioID:      poll.BioID,
		ResourceID: poll.ID,
		Kind:       EventPollVote,
		TotalCount: poll.Votes + 1,
		Payload:    map[string]any{"poll_title": poll.Title},
	})

	receipt := &VoteReceipt{
		Success:     true,
		PollID:      poll.ID,
		ShowResults: poll.ShowResultsPublic,
	}
	// Fresh read: the receipt reflects the committed state including this
	// vote and any concurrent ones.
	if fresh, err := repo.GetPoll(ctx, s.DB, poll.ID); err == nil {
		if res, err := s.freshResults(ctx, fresh); err == nil {
			receipt.Results = res
		}
	}
	return receipt, nil
}

// ownedPoll loads a poll and verifies the caller owns its bio. Both a
// missing poll and foreign ownership come back as ErrPollNotFound.
func (s *PollService) ownedPoll(ctx context.Context, db *gorm.DB, userID, pollID string) (*domain.Poll, error) {
	p, err := repo.GetPoll(ctx, db, pollID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	if _, err := repo.GetBio(ctx, db, p.BioID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return p, nil
}

// freshResults reads the poll's votes and aggregates them.
func (s *PollService) freshResults(ctx context.Context, p *domain.Poll) (*PollResults, error) {
	votes, err := repo.ListPollVotes(ctx, s.DB, p.ID)
	if err != nil {
		return nil, err
	}
	res := ComputeResults(p, votes)
	return &res, nil
}

// normalizeOptions trims labels, drops blank entries, and assigns positional
// ids ("option-N") where missing. Duplicate ids keep their first occurrence.
func normalizeOptions(in []PollOptionInput) domain.PollOptions {
	out := make(domain.PollOptions, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, opt := range in {
		label := strings.TrimSpace(opt.Label)
		if label == "" {
			continue
		}
		id := strings.TrimSpace(opt.ID)
		if id == "" {
			id = "option-" + strconv.Itoa(i+1)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.PollOption{ID: id, Label: label})
	}
	return out
}

// normalizeChartColors filters the palette down to valid hex colors capped at
// twelve entries; an empty or fully-invalid palette falls back to the default
// six-color set. Normalization is idempotent.
func normalizeChartColors(colors []string) domain.StringList {
	out := make(domain.StringList, 0, len(colors))
	for _, c := range colors {
		c = strings.TrimSpace(c)
		if hexColorRE.MatchString(c) {
			out = append(out, c)
		}
		if len(out) == maxChartColors {
			break
		}
	}
	if len(out) == 0 {
		return append(domain.StringList{}, DefaultChartColors...)
	}
	return out
}

// dedupeIDs trims, drops blanks, and removes repeats while preserving order.
func dedupeIDs(ids []string) domain.StringList {
	out := make(domain.StringList, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// boolOr returns *v or def when v is nil.
func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// stringOr returns *v or def when v is nil or blank.
func stringOr(v *string, def string) string {
	if v != nil && strings.TrimSpace(*v) != "" {
		return *v
	}
	return def
}
