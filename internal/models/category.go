package models

import (
	"time"

	"gorm.io/gorm"
)

// Category groups document types (optionally hierarchical)
type Category struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *string   `gorm:"type:uuid;index" json:"parentId,omitempty"`
	Parent      *Category `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	IsActive    bool      `gorm:"not null" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Category model
func (Category) TableName() string {
	return "categories"
}

// BeforeCreate assigns the primary key
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}
