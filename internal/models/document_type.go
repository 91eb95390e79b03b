package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldType is the input kind of a document field
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldEmail    FieldType = "email"
)

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldNumber, FieldDate, FieldSelect, FieldCheckbox, FieldEmail:
		return true
	}
	return false
}

// FieldDefinition describes one input of a document form.
// Options and ValidationRules are JSON strings as authored in the dashboard.
type FieldDefinition struct {
	Key             string    `json:"key"`
	Label           string    `json:"label"`
	Type            FieldType `json:"type"`
	Required        bool      `json:"required"`
	Placeholder     string    `json:"placeholder,omitempty"`
	Options         string    `json:"options,omitempty"`         // e.g. ["A","B"]
	ValidationRules string    `json:"validationRules,omitempty"` // e.g. {"min":0,"max":10}
	Order           int       `json:"order"`
}

// FieldGroup is a titled block of fields
type FieldGroup struct {
	Key    string            `json:"key"`
	Label  string            `json:"label"`
	Order  int               `json:"order"`
	Fields []FieldDefinition `json:"fields"`
}

// DocumentType is the configurable schema of a document form
type DocumentType struct {
	ID                string                           `gorm:"primaryKey;type:uuid" json:"id"`
	Code              string                           `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name              string                           `gorm:"not null" json:"name"`
	Description       string                           `gorm:"type:text" json:"description"`
	CategoryID        string                           `gorm:"type:uuid;index;not null" json:"categoryId"`
	Category          *Category                        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	FieldGroups       datatypes.JSONSlice[FieldGroup] `gorm:"type:jsonb" json:"fieldGroups"`
	RequiresSignature bool                             `gorm:"not null" json:"requiresSignature"`
	DefaultTemplateID *string                          `gorm:"type:uuid" json:"defaultTemplateId,omitempty"`
	ValidityDays      int                              `gorm:"not null" json:"validityDays"`
	IsActive          bool                             `gorm:"not null" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for DocumentType model
func (DocumentType) TableName() string {
	return "document_types"
}

// BeforeCreate assigns the primary key
func (d *DocumentType) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = NewID()
	}
	return nil
}

// Fields flattens the groups into display order
func (d *DocumentType) Fields() []FieldDefinition {
	groups := make([]FieldGroup, len(d.FieldGroups))
	copy(groups, d.FieldGroups)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Order < groups[j].Order })

	var fields []FieldDefinition
	for _, g := range groups {
		gf := make([]FieldDefinition, len(g.Fields))
		copy(gf, g.Fields)
		sort.SliceStable(gf, func(i, j int) bool { return gf[i].Order < gf[j].Order })
		fields = append(fields, gf...)
	}
	return fields
}
