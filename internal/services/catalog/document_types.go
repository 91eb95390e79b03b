package catalog

import (
	"context"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/validation"
)

type DocumentTypeRequest struct {
	Code              string              `json:"code" validate:"required,code,max=50"`
	Name              string              `json:"name" validate:"required,max=120"`
	Description       string              `json:"description"`
	CategoryID        string              `json:"categoryId" validate:"required,uuid"`
	FieldGroups       []models.FieldGroup `json:"fieldGroups"`
	RequiresSignature bool                `json:"requiresSignature"`
	DefaultTemplateID *string             `json:"defaultTemplateId" validate:"omitempty,uuid"`
	ValidityDays      int                 `json:"validityDays" validate:"gte=0,lte=36500"`
	IsActive          *bool               `json:"isActive"`
}

func (s *Service) ListDocumentTypes(ctx context.Context, f repository.DocumentTypeFilter) (repository.Page[models.DocumentType], error) {
	items, total, err := s.documentTypes.List(ctx, f)
	if err != nil {
		return repository.Page[models.DocumentType]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

func (s *Service) GetDocumentType(ctx context.Context, id string) (*models.DocumentType, error) {
	return s.documentTypes.Get(ctx, id)
}

// checkDocumentType validates everything beyond the struct tags
func (s *Service) checkDocumentType(ctx context.Context, id string, req DocumentTypeRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	if _, err := s.categories.Get(ctx, req.CategoryID); err != nil {
		if ierr.IsNotFound(err) {
			return ierr.WithError(err).WithHint("Category does not exist").Mark(ierr.ErrValidation)
		}
		return err
	}
	if err := validation.ValidateFieldGroups(req.FieldGroups); err != nil {
		return err
	}
	if req.DefaultTemplateID != nil && *req.DefaultTemplateID != "" {
		tpl, err := s.templates.Get(ctx, *req.DefaultTemplateID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return ierr.WithError(err).WithHint("Default template does not exist").Mark(ierr.ErrValidation)
			}
			return err
		}
		if tpl.DocumentTypeID != nil && *tpl.DocumentTypeID != id {
			return ierr.NewError("template belongs to another type").
				WithHint("Default template belongs to another document type").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (s *Service) CreateDocumentType(ctx context.Context, req DocumentTypeRequest) (*models.DocumentType, error) {
	if err := s.checkDocumentType(ctx, "", req); err != nil {
		return nil, err
	}
	dt := &models.DocumentType{
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		FieldGroups:       req.FieldGroups,
		RequiresSignature: req.RequiresSignature,
		DefaultTemplateID: emptyToNil(req.DefaultTemplateID),
		ValidityDays:      req.ValidityDays,
		IsActive:          req.IsActive == nil || *req.IsActive,
	}
	if err := s.documentTypes.Create(ctx, dt); err != nil {
		return nil, err
	}
	s.log.Info().Str("document_type", dt.Code).Int("fields", len(dt.Fields())).Msg("document type created")
	return s.documentTypes.Get(ctx, dt.ID)
}

func (s *Service) UpdateDocumentType(ctx context.Context, id string, req DocumentTypeRequest) (*models.DocumentType, error) {
	dt, err := s.documentTypes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkDocumentType(ctx, id, req); err != nil {
		return nil, err
	}
	dt.Code = req.Code
	dt.Name = req.Name
	dt.Description = req.Description
	dt.CategoryID = req.CategoryID
	dt.Category = nil
	dt.FieldGroups = req.FieldGroups
	dt.RequiresSignature = req.RequiresSignature
	dt.DefaultTemplateID = emptyToNil(req.DefaultTemplateID)
	dt.ValidityDays = req.ValidityDays
	if req.IsActive != nil {
		dt.IsActive = *req.IsActive
	}
	if err := s.documentTypes.Update(ctx, dt); err != nil {
		return nil, err
	}
	return s.documentTypes.Get(ctx, id)
}

// DeleteDocumentType refuses while documents of the type exist
func (s *Service) DeleteDocumentType(ctx context.Context, id string) error {
	if _, err := s.documentTypes.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.documents.CountByDocumentType(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ierr.NewErrorf("document type used by %d documents", n).
			WithHintf("%d documents use this type", n).
			Mark(ierr.ErrInvalidOperation)
	}
	return s.documentTypes.Delete(ctx, id)
}
