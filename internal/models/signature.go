package models

import (
	"time"

	"gorm.io/gorm"
)

// SignatureKind is how a signature artifact was captured
type SignatureKind string

const (
	SignatureDrawn    SignatureKind = "DRAWN"    // canvas drawing, PNG data URL
	SignatureTyped    SignatureKind = "TYPED"    // text rendered in a script font
	SignatureUploaded SignatureKind = "UPLOADED" // PNG/JPEG upload
	SignatureSaved    SignatureKind = "SAVED"    // reuse of a saved artifact
)

// Signature is a captured signature artifact owned by a user
type Signature struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string        `gorm:"type:uuid;index;not null" json:"userId"`
	Kind        SignatureKind `gorm:"type:varchar(20);not null" json:"kind"`
	Name        string        `json:"name,omitempty"`
	TypedText   string        `json:"typedText,omitempty"`
	Font        string        `json:"font,omitempty"`
	ImageKey    string        `json:"-"`
	ContentType string        `json:"contentType,omitempty"`
	Saved       bool          `gorm:"not null;index" json:"saved"` // part of the user's reusable library
	IsDefault   bool          `gorm:"not null" json:"isDefault"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Signature) TableName() string {
	return "signatures"
}

// BeforeCreate assigns the primary key
func (s *Signature) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// HasImage reports whether the artifact is backed by a stored image
func (s *Signature) HasImage() bool {
	return s.ImageKey != ""
}
