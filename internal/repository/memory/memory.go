// Package memory is an in-process implementation of the repository interfaces.
// Service tests and the demo seeder use it where a database is not needed.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

// Store holds every table; relations are resolved on read like gorm preloads
type Store struct {
	mu sync.Mutex

	users         map[string]models.User
	roles         map[string]models.Role
	permissions   map[string]models.Permission
	categories    map[string]models.Category
	documentTypes map[string]models.DocumentType
	documents     map[string]models.Document
	signatories   map[string]models.Signatory
	signatures    map[string]models.Signature
	templates     map[string]models.PDFTemplate
	notifications map[string]models.Notification

	clock time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{
		users:         map[string]models.User{},
		roles:         map[string]models.Role{},
		permissions:   map[string]models.Permission{},
		categories:    map[string]models.Category{},
		documentTypes: map[string]models.DocumentType{},
		documents:     map[string]models.Document{},
		signatories:   map[string]models.Signatory{},
		signatures:    map[string]models.Signature{},
		templates:     map[string]models.PDFTemplate{},
		notifications: map[string]models.Notification{},
		clock:         time.Now().UTC(),
	}
}

// Repositories exposes the store behind the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:         &userRepo{s},
		Roles:         &roleRepo{s},
		Permissions:   &permissionRepo{s},
		Categories:    &categoryRepo{s},
		DocumentTypes: &documentTypeRepo{s},
		Documents:     &documentRepo{s},
		Signatures:    &signatureRepo{s},
		Templates:     &templateRepo{s},
		Notifications: &notificationRepo{s},
	}
}

// tick returns strictly increasing timestamps so creation order is stable
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func notFound(entity string) error {
	return ierr.NewErrorf("%s not found", strings.ToLower(entity)).
		WithHintf("%s not found", entity).
		Mark(ierr.ErrNotFound)
}

func alreadyExists(entity string) error {
	return ierr.NewErrorf("%s already exists", strings.ToLower(entity)).
		WithHintf("%s already exists", entity).
		Mark(ierr.ErrAlreadyExists)
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// paginate slices items after sorting
func paginate[T any](items []T, p repository.Pagination) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortByCreated[T any](items []T, created func(T) time.Time, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return created(items[i]).After(created(items[j]))
		}
		return created(items[i]).Before(created(items[j]))
	})
}
