// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// PollsStats returns aggregate metadata for a bio's polls: the total number
// of rows and the maximum UpdatedAt timestamp among those rows. Vote inserts
// bump the owning poll's updated_at through the counter update, so the pair
// (count, maxUpdatedAt) is a cheap change marker for the whole list.
//
// When the bio has no polls, the returned count is 0 and maxUpdatedAt is nil.
func PollsStats(ctx context.Context, db *gorm.DB, bioID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Poll{}).Where("bio_id = ?", bioID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// FormsStats returns aggregate metadata for a bio's forms: the total number
// of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the bio has no forms, the returned count is 0 and maxUpdatedAt is nil.
func FormsStats(ctx context.Context, db *gorm.DB, bioID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Form{}).Where("bio_id = ?", bioID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
