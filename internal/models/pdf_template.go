package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PageSize of a rendered template
type PageSize string

const (
	PageA4     PageSize = "A4"
	PageA5     PageSize = "A5"
	PageLetter PageSize = "Letter"
	PageLegal  PageSize = "Legal"
)

// Orientation of a rendered template
type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// SectionType selects how a section is drawn
type SectionType string

const (
	SectionText      SectionType = "text"      // static text with {{key}} placeholders
	SectionField     SectionType = "field"     // label + value bound to a data key
	SectionTable     SectionType = "table"     // rows from an array bound to a data key
	SectionSignature SectionType = "signature" // a signatory's artifact
	SectionQRCode    SectionType = "qrcode"    // verification QR
	SectionLine      SectionType = "line"
	SectionImage     SectionType = "image" // stored image by key
)

// Valid reports whether t is a known section type
func (t SectionType) Valid() bool {
	switch t {
	case SectionText, SectionField, SectionTable, SectionSignature, SectionQRCode, SectionLine, SectionImage:
		return true
	}
	return false
}

// SectionStyle holds the editor's style properties
type SectionStyle struct {
	FontSize float64 `json:"fontSize,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`
	Align    string  `json:"align,omitempty"` // L, C, R
	Color    string  `json:"color,omitempty"` // #RRGGBB
	Border   bool    `json:"border,omitempty"`
}

// TableColumn is a data-bound column of a table section
type TableColumn struct {
	Header  string  `json:"header"`
	Binding string  `json:"binding"`
	Width   float64 `json:"width"` // percent of the section width
}

// Section is one placed block of a template. Coordinates are percentages of the page.
type Section struct {
	ID             string        `json:"id"`
	Type           SectionType   `json:"type"`
	X              float64       `json:"x"`
	Y              float64       `json:"y"`
	Width          float64       `json:"width"`
	Height         float64       `json:"height"`
	Content        string        `json:"content,omitempty"`
	Label          string        `json:"label,omitempty"`
	Binding        string        `json:"binding,omitempty"`
	Columns        []TableColumn `json:"columns,omitempty"`
	SignatoryOrder int           `json:"signatoryOrder,omitempty"`
	Style          SectionStyle  `json:"style"`
}

// PDFTemplate is a declarative layout rendered into the document PDF
type PDFTemplate struct {
	ID             string                        `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string                        `gorm:"not null" json:"name"`
	Description    string                        `gorm:"type:text" json:"description"`
	DocumentTypeID *string                       `gorm:"type:uuid;index" json:"documentTypeId,omitempty"`
	PageSize       PageSize                      `gorm:"type:varchar(10);not null" json:"pageSize"`
	Orientation    Orientation                   `gorm:"type:varchar(1);not null" json:"orientation"`
	Sections       datatypes.JSONSlice[Section] `gorm:"type:jsonb" json:"sections"`
	IsActive       bool                          `gorm:"not null" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (PDFTemplate) TableName() string {
	return "pdf_templates"
}

// BeforeCreate assigns the primary key
func (t *PDFTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	return nil
}

// FindSection returns the index of a section by ID, or -1
func (t *PDFTemplate) FindSection(id string) int {
	for i, s := range t.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}
