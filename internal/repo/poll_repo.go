// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Poll and
// PollVote models.
//
// Error semantics:
//   - A duplicate vote (same poll_id, voter_fingerprint) relies on the
//     database unique constraint and is returned as a raw DB error. The
//     service layer translates it into services.ErrAlreadyVoted.
//   - When a poll is not found, functions return gorm.ErrRecordNotFound.
//   - On other DB errors the raw gorm error is propagated.
//
// The vote counter is advanced with an in-database increment expression,
// never with an application-side read-modify-write; concurrent increments
// therefore cannot lose updates.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// CreatePoll inserts the given poll with a fresh UUID and UTC creation time.
// The caller is expected to have normalized options and colors already.
func CreatePoll(ctx context.Context, db *gorm.DB, p *domain.Poll) (*domain.Poll, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPoll fetches a poll by ID, or gorm.ErrRecordNotFound if missing.
func GetPoll(ctx context.Context, db *gorm.DB, id string) (*domain.Poll, error) {
	var p domain.Poll
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CountPolls returns the number of polls attached to bioID.
func CountPolls(ctx context.Context, db *gorm.DB, bioID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("bio_id = ?", bioID).
		Count(&total).Error
	return total, err
}

// ListPollsPage returns a page of polls for bioID, newest first.
func ListPollsPage(ctx context.Context, db *gorm.DB, bioID string, offset, limit int) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Where("bio_id = ?", bioID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdatePoll applies the given column updates to a poll. If no rows are
// affected (poll missing), it returns gorm.ErrRecordNotFound.
func UpdatePoll(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePoll removes a poll. Votes cascade at the storage layer.
func DeletePoll(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Poll{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreatePollVote inserts a vote row carrying the voter fingerprint.
//
// The combination (poll_id, voter_fingerprint) must be unique, enforced by
// the ux_poll_votes_poll_fingerprint index. On a duplicate the database
// returns an error which the service layer translates into a domain-level
// "already voted" error; no read-before-write check happens here.
func CreatePollVote(ctx context.Context, db *gorm.DB, v *domain.PollVote) (*domain.PollVote, error) {
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// IncrementPollVotes advances the poll's running vote counter by one using an
// in-database expression (votes = votes + 1), so concurrent votes never lose
// an increment.
func IncrementPollVotes(ctx context.Context, db *gorm.DB, pollID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("id = ?", pollID).
		Update("votes", gorm.Expr("votes + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPollVotes returns every vote recorded for pollID, oldest first. The
// aggregator reads this fresh on every results request.
func ListPollVotes(ctx context.Context, db *gorm.DB, pollID string) ([]domain.PollVote, error) {
	var out []domain.PollVote
	err := db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountPollVotes returns the number of vote rows for pollID. Used by tests
// and consistency checks against the running counter.
func CountPollVotes(ctx context.Context, db *gorm.DB, pollID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.PollVote{}).
		Where("poll_id = ?", pollID).
		Count(&total).Error
	return total, err
}
