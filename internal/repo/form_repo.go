// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Form and
// FormAnswer models.
//
// The submissions counter mirrors the poll vote counter: advanced with an
// in-database increment, never read-modify-write. The cross-form milestone
// total is deliberately NOT a maintained counter; TotalSubmissions recomputes
// it from the form rows on each call so it always reflects committed state.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

// CreateForm inserts the given form with a fresh UUID and UTC creation time.
func CreateForm(ctx context.Context, db *gorm.DB, f *domain.Form) (*domain.Form, error) {
	f.ID = uuid.NewString()
	f.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// GetForm fetches a form by ID, or gorm.ErrRecordNotFound if missing.
func GetForm(ctx context.Context, db *gorm.DB, id string) (*domain.Form, error) {
	var f domain.Form
	if err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// CountForms returns the number of forms attached to bioID.
func CountForms(ctx context.Context, db *gorm.DB, bioID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Form{}).
		Where("bio_id = ?", bioID).
		Count(&total).Error
	return total, err
}

// ListFormsPage returns a page of forms for bioID, newest first.
func ListFormsPage(ctx context.Context, db *gorm.DB, bioID string, offset, limit int) ([]domain.Form, error) {
	var out []domain.Form
	err := db.WithContext(ctx).
		Where("bio_id = ?", bioID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateForm applies the given column updates to a form. If no rows are
// affected (form missing), it returns gorm.ErrRecordNotFound.
func UpdateForm(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Form{}).
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

// DeleteForm removes a form. Answers cascade at the storage layer.
func DeleteForm(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Form{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateFormAnswer inserts one submitted response.
func CreateFormAnswer(ctx context.Context, db *gorm.DB, a *domain.FormAnswer) (*domain.FormAnswer, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// IncrementFormSubmissions advances the form's running submission counter by
// one using an in-database expression (submissions = submissions + 1).
func IncrementFormSubmissions(ctx context.Context, db *gorm.DB, formID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Form{}).
		Where("id = ?", formID).
		Update("submissions", gorm.Expr("submissions + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountFormAnswers returns the number of answer rows for formID.
func CountFormAnswers(ctx context.Context, db *gorm.DB, formID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.FormAnswer{}).
		Where("form_id = ?", formID).
		Count(&total).Error
	return total, err
}

// ListFormAnswersPage returns a page of answers for formID, newest first.
func ListFormAnswersPage(ctx context.Context, db *gorm.DB, formID string, offset, limit int) ([]domain.FormAnswer, error) {
	var out []domain.FormAnswer
	err := db.WithContext(ctx).
		Where("form_id = ?", formID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TotalSubmissions sums the submissions counters of every form under bioID.
// This is the milestone total: recomputed per call by aggregate query so it
// is race-tolerant by construction (always the latest committed state, at
// the cost of one extra read per submission).
func TotalSubmissions(ctx context.Context, db *gorm.DB, bioID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Form{}).
		Where("bio_id = ?", bioID).
		Select("COALESCE(SUM(submissions), 0)").
		Scan(&total).Error
	return total, err
}
