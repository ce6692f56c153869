package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission levels that can be granted on a diagram.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionShare = "share"
)

// Diagram is a stored Mermaid definition with its metadata.
type Diagram struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	SourceText    string     `gorm:"type:text;not null" json:"source_text"`
	DiagramType   string     `gorm:"size:64;not null;index" json:"diagram_type"`
	RenderedImage string     `gorm:"type:text" json:"rendered_image,omitempty"`
	Description   string     `gorm:"type:text" json:"description"`
	IsPublic      bool       `gorm:"not null;default:false;index" json:"is_public"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	ModifiedBy    uuid.UUID  `gorm:"type:uuid" json:"modified_by"`
	CategoryID    *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	ModifiedAt    time.Time  `gorm:"not null;index" json:"modified_at"`

	Shares     []DiagramShare     `gorm:"constraint:OnDelete:CASCADE" json:"shared_with"`
	RoleShares []DiagramRoleShare `gorm:"constraint:OnDelete:CASCADE" json:"shared_roles"`
	Tags       []Tag              `gorm:"many2many:diagram_tags;constraint:OnDelete:CASCADE" json:"tags"`
}

func (d *Diagram) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ShareFor returns the grant held by userID, if any.
func (d *Diagram) ShareFor(userID uuid.UUID) (DiagramShare, bool) {
	for _, s := range d.Shares {
		if s.UserID == userID {
			return s, true
		}
	}
	return DiagramShare{}, false
}

// SharedWithRole reports whether any of roles has been granted read access.
func (d *Diagram) SharedWithRole(roles []string) bool {
	for _, rs := range d.RoleShares {
		for _, r := range roles {
			if rs.Role == r {
				return true
			}
		}
	}
	return false
}

// DiagramShare is a per-user grant on a diagram.
type DiagramShare struct {
	DiagramID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Permission string    `gorm:"size:16;not null;default:'read'" json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

// DiagramRoleShare grants read access to every user holding Role.
type DiagramRoleShare struct {
	DiagramID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Role      string    `gorm:"size:64;primaryKey;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DiagramSummary is the list/search projection of a Diagram.
type DiagramSummary struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	DiagramType string     `json:"diagram_type"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	IsPublic    bool       `json:"is_public"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	ModifiedAt  time.Time  `json:"modified_at"`
}

func (d *Diagram) Summary() DiagramSummary {
	return DiagramSummary{
		ID:          d.ID,
		Title:       d.Title,
		DiagramType: d.DiagramType,
		OwnerID:     d.OwnerID,
		IsPublic:    d.IsPublic,
		CategoryID:  d.CategoryID,
		ModifiedAt:  d.ModifiedAt,
	}
}

// ValidPermission reports whether level is a grantable permission.
func ValidPermission(level string) bool {
	switch level {
	case PermissionRead, PermissionWrite, PermissionShare:
		return true
	}
	return false
}
