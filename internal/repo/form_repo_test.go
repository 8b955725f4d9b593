package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
)

func seedFormRow(t *testing.T, db *gorm.DB, bioID, title string) *domain.Form {
	t.Helper()
	f, err := CreateForm(context.Background(), db, &domain.Form{
		BioID:    bioID,
		Title:    title,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed form: %v", err)
	}
	return f
}

func TestIncrementFormSubmissions(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")
	f := seedFormRow(t, db, "b1", "contact")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := IncrementFormSubmissions(ctx, db, f.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	fresh, err := GetForm(ctx, db, f.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Submissions != 3 {
		t.Fatalf("submissions = %d, want 3", fresh.Submissions)
	}

	if err := IncrementFormSubmissions(ctx, db, "nope"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTotalSubmissions_SumsAcrossForms(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")
	seedBioRow(t, db, "b2", "u2", "other")
	ctx := context.Background()

	f1 := seedFormRow(t, db, "b1", "one")
	f2 := seedFormRow(t, db, "b1", "two")
	other := seedFormRow(t, db, "b2", "foreign")

	for i := 0; i < 2; i++ {
		if err := IncrementFormSubmissions(ctx, db, f1.ID); err != nil {
			t.Fatalf("f1 increment: %v", err)
		}
	}
	if err := IncrementFormSubmissions(ctx, db, f2.ID); err != nil {
		t.Fatalf("f2 increment: %v", err)
	}
	if err := IncrementFormSubmissions(ctx, db, other.ID); err != nil {
		t.Fatalf("other increment: %v", err)
	}

	total, err := TotalSubmissions(ctx, db, "b1")
	if err != nil {
		t.Fatalf("TotalSubmissions: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3 (foreign bio excluded)", total)
	}
}

func TestTotalSubmissions_EmptyBio(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")

	total, err := TotalSubmissions(context.Background(), db, "b1")
	if err != nil {
		t.Fatalf("TotalSubmissions: %v", err)
	}
	if total != 0 {
		t.Fatalf("total = %d, want 0", total)
	}
}

func TestCreateFormAnswerAndPaging(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")
	f := seedFormRow(t, db, "b1", "contact")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		a := &domain.FormAnswer{
			FormID:  f.ID,
			Answers: domain.JSONMap{"n": fmt.Sprintf("%d", i)},
		}
		if _, err := CreateFormAnswer(ctx, db, a); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}

	count, err := CountFormAnswers(ctx, db, f.ID)
	if err != nil || count != 4 {
		t.Fatalf("count = %d (%v), want 4", count, err)
	}

	page, err := ListFormAnswersPage(ctx, db, f.ID, 0, 3)
	if err != nil {
		t.Fatalf("ListFormAnswersPage: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page len = %d, want 3", len(page))
	}
	rest, err := ListFormAnswersPage(ctx, db, f.ID, 3, 3)
	if err != nil || len(rest) != 1 {
		t.Fatalf("rest len = %d (%v), want 1", len(rest), err)
	}
}

func TestUpdateForm_Missing(t *testing.T) {
	db := newTestDB(t)
	err := UpdateForm(context.Background(), db, "nope", map[string]any{"title": "x"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
