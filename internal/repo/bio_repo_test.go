package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCreateAndGetBio(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	b, err := CreateBio(ctx, db, "u1", "jane")
	if err != nil {
		t.Fatalf("CreateBio: %v", err)
	}
	if b.ID == "" || b.CreatedAt.IsZero() {
		t.Fatalf("identity not assigned: %+v", b)
	}

	got, err := GetBio(ctx, db, b.ID, "u1")
	if err != nil {
		t.Fatalf("GetBio: %v", err)
	}
	if got.Slug != "jane" {
		t.Fatalf("slug = %q", got.Slug)
	}

	// Ownership is part of the lookup key.
	if _, err := GetBio(ctx, db, b.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign owner should miss, got %v", err)
	}
}

func TestCreateBio_SlugUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateBio(ctx, db, "u1", "jane"); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := CreateBio(ctx, db, "u2", "jane")
	if err == nil || !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestListBiosPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := CreateBio(ctx, db, "u1", fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	total, err := CountBios(ctx, db, "u1")
	if err != nil || total != 4 {
		t.Fatalf("count = %d (%v)", total, err)
	}

	page, err := ListBiosPage(ctx, db, "u1", 0, 3)
	if err != nil || len(page) != 3 {
		t.Fatalf("page len = %d (%v)", len(page), err)
	}
	rest, err := ListBiosPage(ctx, db, "u1", 3, 3)
	if err != nil || len(rest) != 1 {
		t.Fatalf("rest len = %d (%v)", len(rest), err)
	}
}
