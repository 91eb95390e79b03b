package models

import (
	"time"

	"gorm.io/gorm"
)

// RoleCodeAdmin is the built-in role that is granted every permission
const RoleCodeAdmin = "ADMIN"

// Role groups permissions assigned to users
type Role struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string       `gorm:"not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	IsSystem    bool         `gorm:"not null" json:"isSystem"` // built-in roles cannot be deleted
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Role model
func (Role) TableName() string {
	return "roles"
}

// BeforeCreate assigns the primary key
func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

// PermissionCodes lists the codes granted by the role
func (r *Role) PermissionCodes() []string {
	codes := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		codes = append(codes, p.Code)
	}
	return codes
}

// Permission is a single grant, coded as "<module>.<action>"
type Permission struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name        string `gorm:"not null" json:"name"`
	Module      string `gorm:"type:varchar(50);not null;index" json:"module"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Permission model
func (Permission) TableName() string {
	return "permissions"
}

// BeforeCreate assigns the primary key
func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// Permission codes checked by the HTTP layer
const (
	PermDocumentsRead       = "documents.read"
	PermDocumentsCreate     = "documents.create"
	PermDocumentsUpdate     = "documents.update"
	PermDocumentsSign       = "documents.sign"
	PermDocumentsCancel     = "documents.cancel"
	PermDocumentsManage     = "documents.manage"
	PermDocumentTypesRead   = "document_types.read"
	PermDocumentTypesManage = "document_types.manage"
	PermCategoriesRead      = "categories.read"
	PermCategoriesManage    = "categories.manage"
	PermTemplatesRead       = "templates.read"
	PermTemplatesManage     = "templates.manage"
	PermRolesRead           = "roles.read"
	PermRolesManage         = "roles.manage"
	PermPermissionsManage   = "permissions.manage"
	PermUsersRead           = "users.read"
	PermUsersManage         = "users.manage"
	PermDashboardRead       = "dashboard.read"
)

// DefaultPermissions is the catalog seeded at startup
func DefaultPermissions() []Permission {
	return []Permission{
		{Code: PermDocumentsRead, Name: "View documents", Module: "documents"},
		{Code: PermDocumentsCreate, Name: "Create documents", Module: "documents"},
		{Code: PermDocumentsUpdate, Name: "Edit draft documents", Module: "documents"},
		{Code: PermDocumentsSign, Name: "Sign documents", Module: "documents"},
		{Code: PermDocumentsCancel, Name: "Cancel documents", Module: "documents"},
		{Code: PermDocumentsManage, Name: "Activate and consume documents", Module: "documents"},
		{Code: PermDocumentTypesRead, Name: "View document types", Module: "document_types"},
		{Code: PermDocumentTypesManage, Name: "Manage document types", Module: "document_types"},
		{Code: PermCategoriesRead, Name: "View categories", Module: "categories"},
		{Code: PermCategoriesManage, Name: "Manage categories", Module: "categories"},
		{Code: PermTemplatesRead, Name: "View PDF templates", Module: "templates"},
		{Code: PermTemplatesManage, Name: "Manage PDF templates", Module: "templates"},
		{Code: PermRolesRead, Name: "View roles", Module: "roles"},
		{Code: PermRolesManage, Name: "Manage roles", Module: "roles"},
		{Code: PermPermissionsManage, Name: "Manage permissions", Module: "permissions"},
		{Code: PermUsersRead, Name: "View users", Module: "users"},
		{Code: PermUsersManage, Name: "Manage users", Module: "users"},
		{Code: PermDashboardRead, Name: "View dashboard", Module: "dashboard"},
	}
}
