package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestCreateLead(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")
	ctx := context.Background()

	lead, err := CreateLead(ctx, db, "b1", "voter@example.com", "poll")
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if lead.ID == "" || lead.Email != "voter@example.com" || lead.Source != "poll" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
}

func TestCreateLead_DuplicatePerBio(t *testing.T) {
	db := newTestDB(t)
	seedBioRow(t, db, "b1", "u1", "jane")
	seedBioRow(t, db, "b2", "u2", "other")
	ctx := context.Background()

	if _, err := CreateLead(ctx, db, "b1", "voter@example.com", "poll"); err != nil {
		t.Fatalf("first lead: %v", err)
	}
	if _, err := CreateLead(ctx, db, "b1", "voter@example.com", "poll"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Uniqueness is scoped to the bio, not global.
	if _, err := CreateLead(ctx, db, "b2", "voter@example.com", "poll"); err != nil {
		t.Fatalf("same email under another bio: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{gorm.ErrDuplicatedKey, true},
		{errors.New("UNIQUE constraint failed: email_leads.bio_id, email_leads.email"), true},
		{errors.New("constraint failed: UNIQUE constraint failed: x.y (2067)"), true},
		{errors.New(`duplicate key value violates unique constraint "ux_leads_bio_email"`), true},
		{errors.New("no such table: email_leads"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
