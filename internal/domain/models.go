// Package domain defines the persistence models for bios, polls, forms, and
// their submissions. These types are mapped with GORM and form the core data
// layer of the link-in-bio backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Plan identifiers as persisted on billing records.
const (
	PlanFree     = "free"
	PlanStandard = "standard"
	PlanPro      = "pro"
)

// Bio is the ownership unit of the platform: a public page owned by a user.
// Polls, forms, and captured email leads hang off a bio.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the bio owner; indexed for efficient retrieval.
//   - Slug: public handle of the page, unique across the platform.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Bio struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_bios"`
	Slug      string         `json:"slug"       gorm:"type:varchar(64);not null;uniqueIndex:ux_bio_slug"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Bio.
func (Bio) TableName() string { return "bios" }

// Poll is a public vote resource attached to a bio. Availability is never
// stored: it is derived at read time from IsActive and the StartsAt/EndsAt
// window (see services.PollAvailable).
//
// Votes is a running counter advanced atomically alongside each accepted
// vote insert; it must always match the number of poll_votes rows.
//
// Polls are hard-deleted. A soft-delete marker here would turn the owner
// delete into an UPDATE and the vote cascade would never fire.
type Poll struct {
	ID                   string      `json:"id"          gorm:"type:char(36);primaryKey"`
	BioID                string      `json:"bio_id"      gorm:"type:char(36);not null;index:idx_bio_polls"`
	Title                string      `json:"title"       gorm:"type:varchar(255);not null"`
	Description          *string     `json:"description,omitempty" gorm:"type:text"`
	Options              PollOptions `json:"options"     gorm:"type:text;not null"`
	IsActive             bool        `json:"is_active"   gorm:"not null;default:true"`
	AllowMultipleChoices bool        `json:"allow_multiple_choices" gorm:"not null;default:false"`
	RequireName          bool        `json:"require_name"  gorm:"not null;default:false"`
	RequireEmail         bool        `json:"require_email" gorm:"not null;default:false"`
	ShowResultsPublic    bool        `json:"show_results_public" gorm:"not null;default:true"`
	ChartType            string      `json:"chart_type"  gorm:"type:varchar(16);not null;default:'bar'"`
	ChartColors          StringList  `json:"chart_colors" gorm:"type:text;not null"`
	StartsAt             *time.Time  `json:"starts_at,omitempty"`
	EndsAt               *time.Time  `json:"ends_at,omitempty"`
	Votes                int64       `json:"votes"       gorm:"not null;default:0"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`

	// Bio is the owning page. Polls are cascade-deleted with their bio.
	Bio Bio `json:"-" gorm:"foreignKey:BioID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// PollVote is one accepted ballot. The (poll_id, voter_fingerprint) unique
// index is the duplicate guard: vote inserts race freely and the constraint
// is the single arbiter of at-most-one vote per pseudo-identity.
//
// Votes are immutable once written and are never soft-deleted; a retained
// tombstone would keep blocking the fingerprint slot.
type PollVote struct {
	ID                string     `json:"id"      gorm:"type:char(36);primaryKey"`
	PollID            string     `json:"poll_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_poll_votes_poll_fingerprint,priority:1"`
	SelectedOptionIDs StringList `json:"selected_option_ids" gorm:"type:text;not null"`
	VoterName         *string    `json:"voter_name,omitempty"  gorm:"type:varchar(255)"`
	VoterEmail        *string    `json:"voter_email,omitempty" gorm:"type:varchar(255)"`
	VoterFingerprint  string     `json:"-"       gorm:"type:varchar(200);not null;uniqueIndex:ux_poll_votes_poll_fingerprint,priority:2"`
	IPAddress         *string    `json:"-"       gorm:"type:varchar(64)"`
	UserAgent         *string    `json:"-"       gorm:"type:varchar(255)"`
	CreatedAt         time.Time  `json:"created_at"`

	// Poll is the voted resource. Votes are cascade-deleted with their poll.
	Poll Poll `json:"-" gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PollVote.
func (PollVote) TableName() string { return "poll_votes" }

// Form is a public submission resource attached to a bio. Unlike polls, forms
// carry no time window and accept unlimited repeat submissions per visitor.
//
// Submissions is a running counter advanced atomically with each answer
// insert. Cross-form milestone totals are recomputed by aggregate query
// rather than read from this counter.
//
// Forms are hard-deleted, like polls, so the answer cascade fires.
type Form struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	BioID       string     `json:"bio_id"      gorm:"type:char(36);not null;index:idx_bio_forms"`
	Title       string     `json:"title"       gorm:"type:varchar(255);not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	Fields      FormFields `json:"fields"      gorm:"type:text;not null"`
	IsActive    bool       `json:"is_active"   gorm:"not null;default:true"`
	Submissions int64      `json:"submissions" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Bio is the owning page. Forms are cascade-deleted with their bio.
	Bio Bio `json:"-" gorm:"foreignKey:BioID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Form.
func (Form) TableName() string { return "forms" }

// FormAnswer is one submitted response. Answer payloads are opaque to the
// core beyond automation variable mapping.
type FormAnswer struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	FormID    string    `json:"form_id" gorm:"type:char(36);not null;index:idx_form_answers,priority:1"`
	Answers   JSONMap   `json:"answers" gorm:"type:text;not null"`
	IPAddress *string   `json:"-"       gorm:"type:varchar(64)"`
	UserAgent *string   `json:"-"       gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_form_answers,priority:2"`

	// Form is the answered resource. Answers are cascade-deleted with it.
	Form Form `json:"-" gorm:"foreignKey:FormID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FormAnswer.
func (FormAnswer) TableName() string { return "form_answers" }

// Billing is one paid (or trial) subscription period for a user. The active
// plan is never cached on the user: it is resolved lazily from the billing
// rows still covering the current instant.
type Billing struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_billings"`
	Plan      string    `json:"plan"       gorm:"type:varchar(16);not null;check:plan IN ('standard','pro')"`
	Price     int64     `json:"price"      gorm:"not null;default:0"` // cents
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;default:'paid'"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date"   gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Billing.
func (Billing) TableName() string { return "billings" }

// EmailLead is a captured subscriber email under a bio. The (bio_id, email)
// unique index makes repeat captures from require-email polls idempotent.
type EmailLead struct {
	ID        string    `json:"id"     gorm:"type:char(36);primaryKey"`
	BioID     string    `json:"bio_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_leads_bio_email,priority:1"`
	Email     string    `json:"email"  gorm:"type:varchar(255);not null;uniqueIndex:ux_leads_bio_email,priority:2"`
	Source    string    `json:"source" gorm:"type:varchar(32);not null;default:'poll'"`
	CreatedAt time.Time `json:"created_at"`

	// Bio is the owning page. Leads are cascade-deleted with their bio.
	Bio Bio `json:"-" gorm:"foreignKey:BioID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for EmailLead.
func (EmailLead) TableName() string { return "email_leads" }
