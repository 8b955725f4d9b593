// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bio model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a bio is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateBio inserts a new Bio row owned by userID with the given slug.
// The bio ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
func CreateBio(ctx context.Context, db *gorm.DB, userID, slug string) (*domain.Bio, error) {
	b := &domain.Bio{
		ID:        uuid.NewString(),
		UserID:    userID,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBio fetches a single bio by its ID and owner (userID). If the record
// does not exist or belongs to another user, it returns ErrNotFound.
func GetBio(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Bio, error) {
	var b domain.Bio
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBios returns the total number of bios owned by userID.
func CountBios(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Bio{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListBiosPage returns a paginated slice of bios for userID, ordered by
// creation time descending. Use CountBios to obtain the total for pagination
// metadata.
func ListBiosPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Bio, error) {
	var out []domain.Bio
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
