// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for Billing rows,
// which back the lazy plan resolution in services.PlanService.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// LatestActiveBilling returns the billing row for userID whose period still
// covers now, preferring the one ending last. It returns nil (not an error)
// when the user has no active billing, which callers interpret as the free
// plan.
func LatestActiveBilling(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*domain.Billing, error) {
	var b domain.Billing
	err := db.WithContext(ctx).
		Where("user_id = ? AND start_date <= ? AND end_date > ?", userID, now, now).
		Order("end_date desc").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBilling inserts a billing period. Used by tests and by whatever
// payment webhook integration sits outside this service.
func CreateBilling(ctx context.Context, db *gorm.DB, b *domain.Billing) error {
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(b).Error
}
