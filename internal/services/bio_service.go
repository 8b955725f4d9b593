// Package services – BioService
//
// This file implements the BioService, which manages the lifecycle of bios
// (the ownership unit for polls, forms, and leads). It normalizes slugs and
// coordinates repository operations for creating and listing pages.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
)

// ErrSlugTaken is returned when a bio slug is already claimed.
var ErrSlugTaken = errors.New("slug already taken")

// ErrSlugRequired is returned when a bio is created without a usable slug.
var ErrSlugRequired = errors.New("slug is required")

// slugRE strips everything that may not appear in a public slug.
var slugRE = regexp.MustCompile(`[^a-z0-9-]+`)

// BioService provides bio-level operations.
type BioService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// Create inserts a new bio owned by userID under the given slug. Slugs are
// lowercased and reduced to [a-z0-9-]; collisions surface as ErrSlugTaken.
func (s *BioService) Create(ctx context.Context, userID, slug string) (*domain.Bio, error) {
	slug = normalizeSlug(slug)
	if slug == "" {
		return nil, ErrSlugRequired
	}
	b, err := repo.CreateBio(ctx, s.DB, userID, slug)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return b, nil
}

// ListPage returns a page of the user's bios and the total count.
func (s *BioService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Bio, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountBios(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Bio{}, 0, nil
	}
	items, err := repo.ListBiosPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// normalizeSlug lowercases, trims, and strips characters outside [a-z0-9-].
func normalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRE.ReplaceAllString(s, "")
	return strings.Trim(s, "-")
}
