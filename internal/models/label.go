package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups diagrams under a uniquely-named heading.
type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:140;not null" json:"name"`
	NameKey     string    `gorm:"size:140;not null;uniqueIndex" json:"-"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tag is a free-form, uniquely-named label.
type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:140;not null" json:"name"`
	NameKey   string    `gorm:"size:140;not null;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.NameKey = LabelKey(c.Name)
	return nil
}

func (t *Tag) BeforeSave(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.NameKey = LabelKey(t.Name)
	return nil
}

// LabelKey is the comparison form of a category or tag name.
func LabelKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
