package catalog

import (
	"context"

	"github.com/rs/zerolog"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/validation"
)

// Service manages categories and document types
type Service struct {
	categories    repository.CategoryRepository
	documentTypes repository.DocumentTypeRepository
	documents     repository.DocumentRepository
	templates     repository.TemplateRepository
	validate      *validation.Validator
	log           zerolog.Logger
}

// NewService creates a new catalog service
func NewService(repos *repository.Repositories, log zerolog.Logger) *Service {
	return &Service{
		categories:    repos.Categories,
		documentTypes: repos.DocumentTypes,
		documents:     repos.Documents,
		templates:     repos.Templates,
		validate:      validation.New(),
		log:           log.With().Str("service", "catalog").Logger(),
	}
}

type CategoryRequest struct {
	Code        string  `json:"code" validate:"required,code,max=50"`
	Name        string  `json:"name" validate:"required,max=120"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
	IsActive    *bool   `json:"isActive"`
}

func (s *Service) ListCategories(ctx context.Context, f repository.CategoryFilter) (repository.Page[models.Category], error) {
	items, total, err := s.categories.List(ctx, f)
	if err != nil {
		return repository.Page[models.Category]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.categories.Get(ctx, id)
}

// checkParent rejects a missing parent, a self reference and a cycle
func (s *Service) checkParent(ctx context.Context, id string, parentID *string) error {
	if parentID == nil || *parentID == "" {
		return nil
	}
	if *parentID == id {
		return ierr.NewError("category parent is itself").
			WithHint("A category cannot be its own parent").
			Mark(ierr.ErrValidation)
	}
	next := *parentID
	for depth := 0; next != "" && depth < 64; depth++ {
		parent, err := s.categories.Get(ctx, next)
		if err != nil {
			if ierr.IsNotFound(err) && next == *parentID {
				return ierr.WithError(err).WithHint("Parent category does not exist").Mark(ierr.ErrValidation)
			}
			return err
		}
		if id != "" && parent.ID == id {
			return ierr.NewError("category cycle").
				WithHint("A category cannot be nested under its own descendant").
				Mark(ierr.ErrValidation)
		}
		next = ""
		if parent.ParentID != nil {
			next = *parent.ParentID
		}
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, req CategoryRequest) (*models.Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, "", req.ParentID); err != nil {
		return nil, err
	}
	c := &models.Category{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		ParentID:    emptyToNil(req.ParentID),
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("category", c.Code).Msg("category created")
	return s.categories.Get(ctx, c.ID)
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req CategoryRequest) (*models.Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, id, req.ParentID); err != nil {
		return nil, err
	}
	c.Code = req.Code
	c.Name = req.Name
	c.Description = req.Description
	c.ParentID = emptyToNil(req.ParentID)
	c.Parent = nil
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.categories.Get(ctx, id)
}

// DeleteCategory refuses while document types or child categories reference it
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.categories.Get(ctx, id); err != nil {
		return err
	}
	types, err := s.documentTypes.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if types > 0 {
		return ierr.NewErrorf("category used by %d document types", types).
			WithHintf("Category is used by %d document types", types).
			Mark(ierr.ErrInvalidOperation)
	}
	children, err := s.categories.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return ierr.NewErrorf("category has %d children", children).
			WithHintf("Category has %d subcategories", children).
			Mark(ierr.ErrInvalidOperation)
	}
	return s.categories.Delete(ctx, id)
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
