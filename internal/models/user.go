package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a platform user. IsAdmin is the elevated role that
// bypasses per-diagram ownership and sharing for reads.
type User struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string                      `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	PasswordHash string                      `gorm:"not null" json:"-" swaggerignore:"true"`
	Name         string                      `gorm:"not null" json:"name" validate:"required"`
	IsAdmin      bool                        `gorm:"not null;default:false" json:"is_admin"`
	Roles        datatypes.JSONSlice[string] `gorm:"type:json" json:"roles"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
