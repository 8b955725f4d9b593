// Package services – plan limit enforcement.
//
// This file implements the subscription-tier quota gate consulted before any
// poll or form creation. The owner's plan is never cached: it is resolved
// lazily from billing rows at check time, so an expired subscription degrades
// to "free" without any background job.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

// Resource kinds accepted by CheckCreateAllowed.
const (
	KindPolls = "polls"
	KindForms = "forms"
)

// PlanQuota is the per-plan cap on resources a single bio may carry.
type PlanQuota struct {
	PollsPerBio int
	FormsPerBio int
}

// PlanLimits is the static quota table. Unknown plans fall back to the free
// tier rather than unlimited.
var PlanLimits = map[string]PlanQuota{
	domain.PlanFree:     {PollsPerBio: 1, FormsPerBio: 1},
	domain.PlanStandard: {PollsPerBio: 3, FormsPerBio: 3},
	domain.PlanPro:      {PollsPerBio: 4, FormsPerBio: 4},
}

// PlanService resolves subscription plans and enforces creation quotas.
type PlanService struct {
	// DB is the database handle used for billing and count lookups. Pass a
	// transaction-bound handle to make the quota check atomic with the
	// creation insert.
	DB *gorm.DB
}

// ActivePlan resolves the plan in force for userID at instant now: the
// most-recently-ending billing row whose period still covers now, or "free"
// when none exists.
func (s *PlanService) ActivePlan(ctx context.Context, db *gorm.DB, userID string, now time.Time) (string, error) {
	if db == nil {
		db = s.DB
	}
	b, err := repo.LatestActiveBilling(ctx, db, userID, now)
	if err != nil {
		return "", err
	}
	if b == nil {
		return domain.PlanFree, nil
	}
	if _, ok := PlanLimits[b.Plan]; !ok {
		return domain.PlanFree, nil
	}
	return b.Plan, nil
}

// CheckCreateAllowed verifies that the bio can take one more resource of the
// given kind under its owner's current plan. It returns *LimitExceededError
// (carrying plan name and numeric limit) when the existing count has reached
// the quota, nil when creation may proceed.
//
// Run this on the same transaction handle as the creation insert: SQLite
// serializes writers, which closes the window where two concurrent creations
// both pass the check. On engines with weaker isolation the quota is a soft
// limit — concurrent bursts may overshoot it by a small margin.
func (s *PlanService) CheckCreateAllowed(ctx context.Context, db *gorm.DB, bio *domain.Bio, kind string, now time.Time) error {
	if db == nil {
		db = s.DB
	}

	plan, err := s.ActivePlan(ctx, db, bio.UserID, now)
	if err != nil {
		return err
	}
	quota := PlanLimits[plan]

	var count int64
	var limit int
	switch kind {
	case KindForms:
		limit = quota.FormsPerBio
		count, err = repo.CountForms(ctx, db, bio.ID)
	default:
		limit = quota.PollsPerBio
		count, err = repo.CountPolls(ctx, db, bio.ID)
	}
	if err != nil {
		return err
	}

	if count >= int64(limit) {
		return &LimitExceededError{Plan: plan, Limit: limit, Kind: kind}
	}
	return nil
}
