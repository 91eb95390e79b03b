package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the page request shared by every List call
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize applies defaults and bounds
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Offset is the row offset of the page
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Page is a slice of results plus the total count
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// NewPage builds a page response
func NewPage[T any](items []T, total int64, p Pagination) Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

type UserFilter struct {
	Pagination
	Search string
	RoleID string
	Active *bool
}

type CategoryFilter struct {
	Pagination
	Search   string
	ParentID string
	Active   *bool
}

type DocumentTypeFilter struct {
	Pagination
	Search     string
	CategoryID string
	Active     *bool
}

type DocumentFilter struct {
	Pagination
	Search         string
	Statuses       []models.DocumentStatus
	DocumentTypeID string
	CreatedBy      string
	// Visible restricts results to documents the user created or must sign
	VisibleTo string
	// AwaitingUser restricts results to documents whose current signer is the user
	AwaitingUser string
}

type TemplateFilter struct {
	Pagination
	Search         string
	DocumentTypeID string
}

type NotificationFilter struct {
	Pagination
	UserID     string
	UnreadOnly bool
}

// UserRepository persists users
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetMany(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, roleID string) (int64, error)
}

// RoleRepository persists roles and their permission sets
type RoleRepository interface {
	Create(ctx context.Context, r *models.Role) error
	Get(ctx context.Context, id string) (*models.Role, error)
	GetByCode(ctx context.Context, code string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Update(ctx context.Context, r *models.Role) error
	Delete(ctx context.Context, id string) error
}

// PermissionRepository persists the permission catalog
type PermissionRepository interface {
	Create(ctx context.Context, p *models.Permission) error
	Get(ctx context.Context, id string) (*models.Permission, error)
	GetByCodes(ctx context.Context, codes []string) ([]models.Permission, error)
	List(ctx context.Context) ([]models.Permission, error)
	Update(ctx context.Context, p *models.Permission) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository persists categories
type CategoryRepository interface {
	Create(ctx context.Context, c *models.Category) error
	Get(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context, f CategoryFilter) ([]models.Category, int64, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id string) error
	CountChildren(ctx context.Context, id string) (int64, error)
}

// DocumentTypeRepository persists document types
type DocumentTypeRepository interface {
	Create(ctx context.Context, d *models.DocumentType) error
	Get(ctx context.Context, id string) (*models.DocumentType, error)
	List(ctx context.Context, f DocumentTypeFilter) ([]models.DocumentType, int64, error)
	Update(ctx context.Context, d *models.DocumentType) error
	Delete(ctx context.Context, id string) error
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
}

// StatusCount is one bucket of a grouped count
type StatusCount struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int64  `json:"count"`
}

// DocumentRepository persists documents and their signatories
type DocumentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.Document, error)
	List(ctx context.Context, f DocumentFilter) ([]models.Document, int64, error)
	// Update saves document columns and the mutable columns of its signatories
	Update(ctx context.Context, d *models.Document) error
	ReplaceSignatories(ctx context.Context, documentID string, list []models.Signatory) error
	Delete(ctx context.Context, id string) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
	CountByDocumentType(ctx context.Context, documentTypeID string) (int64, error)
	CountByStatus(ctx context.Context, visibleTo string) ([]StatusCount, error)
	CountByType(ctx context.Context, visibleTo string) ([]StatusCount, error)
	CountByMonth(ctx context.Context, visibleTo string, since time.Time) ([]StatusCount, error)
}

// SignatureRepository persists signature artifacts
type SignatureRepository interface {
	Create(ctx context.Context, s *models.Signature) error
	Get(ctx context.Context, id string) (*models.Signature, error)
	ListSaved(ctx context.Context, userID string) ([]models.Signature, error)
	Update(ctx context.Context, s *models.Signature) error
	ClearDefault(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

// TemplateRepository persists PDF templates
type TemplateRepository interface {
	Create(ctx context.Context, t *models.PDFTemplate) error
	Get(ctx context.Context, id string) (*models.PDFTemplate, error)
	List(ctx context.Context, f TemplateFilter) ([]models.PDFTemplate, int64, error)
	Update(ctx context.Context, t *models.PDFTemplate) error
	Delete(ctx context.Context, id string) error
}

// NotificationRepository persists user notifications
type NotificationRepository interface {
	CreateBatch(ctx context.Context, list []models.Notification) error
	List(ctx context.Context, f NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

// Repositories bundles the gorm-backed implementations
type Repositories struct {
	Users         UserRepository
	Roles         RoleRepository
	Permissions   PermissionRepository
	Categories    CategoryRepository
	DocumentTypes DocumentTypeRepository
	Documents     DocumentRepository
	Signatures    SignatureRepository
	Templates     TemplateRepository
	Notifications NotificationRepository
}

// New wires every repository onto one gorm handle
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         &userRepo{db: db},
		Roles:         &roleRepo{db: db},
		Permissions:   &permissionRepo{db: db},
		Categories:    &categoryRepo{db: db},
		DocumentTypes: &documentTypeRepo{db: db},
		Documents:     &documentRepo{db: db},
		Signatures:    &signatureRepo{db: db},
		Templates:     &templateRepo{db: db},
		Notifications: &notificationRepo{db: db},
	}
}

// dbErr marks a gorm error with the matching domain kind
func dbErr(err error, entity string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ierr.WithError(err).WithHintf("%s not found", entity).Mark(ierr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ierr.WithError(err).WithHintf("%s already exists", entity).Mark(ierr.ErrAlreadyExists)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ierr.WithError(err).WithHintf("%s references a missing or in-use record", entity).Mark(ierr.ErrInvalidOperation)
	default:
		return ierr.WithError(err).WithMessagef("%s query failed", entity).Mark(ierr.ErrDatabase)
	}
}

func like(s string) string {
	return "%" + s + "%"
}
