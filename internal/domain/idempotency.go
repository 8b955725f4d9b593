// Package domain defines the persistence models for bios, polls, forms, and
// their submissions. This file holds the idempotency record used by the
// owner-facing creation endpoints.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed creation
// request, keyed by (user_id, bio_id, key). It enables safe retries for
// resource-creating POSTs by letting handlers detect a replay and return the
// originally created resource without re-executing side effects (or burning
// a plan-quota slot twice).
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_bio_key,priority:1"`
	BioID      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_bio_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_bio_key,priority:3"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
