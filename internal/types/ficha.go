package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ficha statuses. Owned exclusively by the lifecycle service; payload merges
// must never set status directly.
const (
	StatusDraft         = "draft"
	StatusPendingReview = "pending_review"
	StatusValidated     = "validated"
	StatusRejected      = "rejected"
)

// Ficha subtypes. The subtype is immutable after creation and decides the
// shape of the Attrs bag.
const (
	SubtypeAuthor    = "author"
	SubtypeMagazine  = "magazine"
	SubtypeAnthology = "anthology"
	SubtypeGrouping  = "grouping"
)

// Ficha is one archive card. Attrs carries the subtype-specific attribute bag
// as jsonb; editors/reviewers are arrays of user identifiers.
type Ficha struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Subtype         string         `gorm:"column:subtype;not null;index" json:"subtype"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	Status          string         `gorm:"column:status;not null;default:draft;index" json:"status"`
	CreatorID       string         `gorm:"column:creator_id" json:"creator_id"`
	Editors         datatypes.JSON `gorm:"column:editors;type:jsonb" json:"editors"`
	Reviewers       datatypes.JSON `gorm:"column:reviewers;type:jsonb" json:"reviewers"`
	RejectionNote   string         `gorm:"column:rejection_note" json:"rejection_note,omitempty"`
	Attrs           datatypes.JSON `gorm:"column:attrs;type:jsonb" json:"attrs"`
	StatusChangedAt time.Time      `gorm:"column:status_changed_at;not null;default:now()" json:"status_changed_at"`
	GraphSyncedAt   *time.Time     `gorm:"column:graph_synced_at" json:"graph_synced_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Ficha) TableName() string { return "ficha" }

// KnownSubtype reports whether tag names one of the four card subtypes.
func KnownSubtype(tag string) bool {
	switch tag {
	case SubtypeAuthor, SubtypeMagazine, SubtypeAnthology, SubtypeGrouping:
		return true
	default:
		return false
	}
}
