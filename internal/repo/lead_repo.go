// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the EmailLead
// model used by poll-driven lead capture.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// ErrDuplicate indicates that a row violating a unique constraint already
// exists (idempotency replays, repeat email leads).
var ErrDuplicate = errors.New("duplicate")

// CreateLead inserts an email lead under bioID and returns ErrDuplicate when
// the (bio_id, email) pair is already captured. Callers on the vote path
// swallow ErrDuplicate: capturing the same voter twice is not a failure.
func CreateLead(ctx context.Context, db *gorm.DB, bioID, email, source string) (*domain.EmailLead, error) {
	lead := &domain.EmailLead{
		ID:        uuid.NewString(),
		BioID:     bioID,
		Email:     email,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(lead).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return lead, nil
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
