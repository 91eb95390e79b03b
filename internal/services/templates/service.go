package templates

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/metrics"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/printer"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/validation"
)

// Service manages PDF templates
type Service struct {
	templates     repository.TemplateRepository
	documentTypes repository.DocumentTypeRepository
	storage       storage.Storage
	validate      *validation.Validator
	log           zerolog.Logger
}

// NewService creates a new template service. store holds the images drawn by image sections.
func NewService(repos *repository.Repositories, store storage.Storage, log zerolog.Logger) *Service {
	return &Service{
		templates:     repos.Templates,
		documentTypes: repos.DocumentTypes,
		storage:       store,
		validate:      validation.New(),
		log:           log.With().Str("service", "templates").Logger(),
	}
}

type TemplateRequest struct {
	Name           string             `json:"name" validate:"required,max=120"`
	Description    string             `json:"description"`
	DocumentTypeID *string            `json:"documentTypeId" validate:"omitempty,uuid"`
	PageSize       models.PageSize    `json:"pageSize" validate:"omitempty,oneof=A4 A5 Letter Legal"`
	Orientation    models.Orientation `json:"orientation" validate:"omitempty,oneof=P L"`
	Sections       []models.Section   `json:"sections"`
	IsActive       *bool              `json:"isActive"`
}

// PreviewRequest carries sample data merged into the preview
type PreviewRequest struct {
	Reference string                 `json:"reference"`
	Title     string                 `json:"title"`
	Data      map[string]interface{} `json:"data"`
}

// ValidateSections checks placement and bindings, assigning IDs to new sections
func ValidateSections(sections []models.Section) error {
	problems := make(map[string]string)
	seen := make(map[string]bool)

	for i := range sections {
		sec := &sections[i]
		path := fmt.Sprintf("sections[%d]", i)
		if sec.ID == "" {
			sec.ID = models.NewID()
		}
		if seen[sec.ID] {
			problems[path+".id"] = fmt.Sprintf("duplicate section id %q", sec.ID)
		}
		seen[sec.ID] = true

		if !sec.Type.Valid() {
			problems[path+".type"] = fmt.Sprintf("unknown section type %q", sec.Type)
		}
		if !inRange(sec.X) || !inRange(sec.Y) {
			problems[path+".position"] = "x and y must be between 0 and 100"
		}
		if sec.Width <= 0 || sec.Height <= 0 || sec.Width > 100 || sec.Height > 100 {
			problems[path+".size"] = "width and height must be greater than 0 and at most 100"
		}

		switch sec.Type {
		case models.SectionField:
			if strings.TrimSpace(sec.Binding) == "" {
				problems[path+".binding"] = "field sections need a binding"
			}
		case models.SectionTable:
			if strings.TrimSpace(sec.Binding) == "" {
				problems[path+".binding"] = "table sections need a binding"
			}
			if len(sec.Columns) == 0 {
				problems[path+".columns"] = "table sections need at least one column"
			}
			for ci, col := range sec.Columns {
				if strings.TrimSpace(col.Binding) == "" {
					problems[fmt.Sprintf("%s.columns[%d].binding", path, ci)] = "column binding is required"
				}
			}
		case models.SectionSignature:
			if sec.SignatoryOrder < 1 {
				problems[path+".signatoryOrder"] = "signature sections need a signatory order of at least 1"
			}
		}
	}

	if len(problems) > 0 {
		return ierr.NewError("invalid template sections").
			WithHint("Template sections are invalid").
			WithReportableDetails(problems).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func inRange(v float64) bool {
	return v >= 0 && v <= 100 && !math.IsNaN(v)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func (s *Service) check(ctx context.Context, req *TemplateRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	if req.DocumentTypeID != nil && *req.DocumentTypeID != "" {
		if _, err := s.documentTypes.Get(ctx, *req.DocumentTypeID); err != nil {
			if ierr.IsNotFound(err) {
				return ierr.WithError(err).WithHint("Document type does not exist").Mark(ierr.ErrValidation)
			}
			return err
		}
	}
	return ValidateSections(req.Sections)
}

func (s *Service) List(ctx context.Context, f repository.TemplateFilter) (repository.Page[models.PDFTemplate], error) {
	items, total, err := s.templates.List(ctx, f)
	if err != nil {
		return repository.Page[models.PDFTemplate]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.PDFTemplate, error) {
	return s.templates.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req TemplateRequest) (*models.PDFTemplate, error) {
	if err := s.check(ctx, &req); err != nil {
		return nil, err
	}
	t := &models.PDFTemplate{
		Name:           req.Name,
		Description:    req.Description,
		DocumentTypeID: emptyToNil(req.DocumentTypeID),
		PageSize:       lo.Ternary(req.PageSize == "", models.PageA4, req.PageSize),
		Orientation:    lo.Ternary(req.Orientation == "", models.Portrait, req.Orientation),
		Sections:       req.Sections,
		IsActive:       req.IsActive == nil || *req.IsActive,
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info().Str("template_id", t.ID).Int("sections", len(t.Sections)).Msg("template created")
	return t, nil
}

// Update replaces the template; concurrent editors overwrite each other
func (s *Service) Update(ctx context.Context, id string, req TemplateRequest) (*models.PDFTemplate, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, &req); err != nil {
		return nil, err
	}
	t.Name = req.Name
	t.Description = req.Description
	t.DocumentTypeID = emptyToNil(req.DocumentTypeID)
	if req.PageSize != "" {
		t.PageSize = req.PageSize
	}
	if req.Orientation != "" {
		t.Orientation = req.Orientation
	}
	t.Sections = req.Sections
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}

// Duplicate copies a template with fresh section IDs
func (s *Service) Duplicate(ctx context.Context, id string) (*models.PDFTemplate, error) {
	src, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sections := lo.Map(src.Sections, func(sec models.Section, _ int) models.Section {
		sec.ID = models.NewID()
		sec.Columns = append([]models.TableColumn(nil), sec.Columns...)
		return sec
	})
	dup := &models.PDFTemplate{
		Name:           src.Name + " (copy)",
		Description:    src.Description,
		DocumentTypeID: src.DocumentTypeID,
		PageSize:       src.PageSize,
		Orientation:    src.Orientation,
		Sections:       sections,
		IsActive:       src.IsActive,
	}
	if err := s.templates.Create(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// MoveSection places a section at x,y clamped to the page
func (s *Service) MoveSection(ctx context.Context, id, sectionID string, x, y float64) (*models.PDFTemplate, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	i := t.FindSection(sectionID)
	if i < 0 {
		return nil, ierr.NewError("section not found").
			WithHint("Section not found").
			Mark(ierr.ErrNotFound)
	}
	t.Sections[i].X = clamp(x)
	t.Sections[i].Y = clamp(y)
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Preview renders the template with sample data and placeholder signatories
func (s *Service) Preview(ctx context.Context, id string, req PreviewRequest) ([]byte, error) {
	t, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in := printer.RenderInput{
		Reference:       lo.Ternary(req.Reference == "", "PREVIEW-0001", req.Reference),
		Title:           lo.Ternary(req.Title == "", t.Name, req.Title),
		Status:          string(models.StatusDraft),
		Date:            time.Now().UTC(),
		Data:            req.Data,
		VerificationURL: "PREVIEW",
	}
	images, skipped := printer.LoadImages(ctx, t, s.storage)
	for key, err := range skipped {
		s.log.Warn().Err(err).Str("image_key", key).Str("template_id", t.ID).Msg("template image unavailable")
	}
	in.Images = images
	for _, sec := range t.Sections {
		if sec.Type == models.SectionSignature {
			in.Signatories = append(in.Signatories, printer.SignatureBlock{
				Order: sec.SignatoryOrder,
				Name:  fmt.Sprintf("Signatory %d", sec.SignatoryOrder),
				Label: sec.Label,
			})
		}
	}

	start := time.Now()
	pdf, err := printer.Render(t, in)
	metrics.PDFRenderDuration.WithLabelValues("preview").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Could not render template").Mark(ierr.ErrSystem)
	}
	return pdf, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
