package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/metrics"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/notify"
	"github.com/kami-operation/kamiops/internal/services/signatures"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/utils"
	"github.com/kami-operation/kamiops/internal/validation"
	"github.com/kami-operation/kamiops/internal/websocket"
)

// Notifier delivers user notifications
type Notifier interface {
	Notify(ctx context.Context, in notify.Input) ([]models.Notification, error)
}

// SignatureCapturer turns a signing request into a stored artifact
type SignatureCapturer interface {
	Capture(ctx context.Context, userID string, req signatures.CaptureRequest) (*models.Signature, error)
}

// Actor is the user performing an operation. Managers see and act on every document.
type Actor struct {
	UserID  string
	Manager bool
}

// Params groups the dependencies of the workflow service
type Params struct {
	Repos         *repository.Repositories
	Storage       storage.Storage
	Sealer        *utils.Sealer
	Notifier      Notifier
	Signatures    SignatureCapturer
	Publisher     websocket.Publisher
	PublicBaseURL string
	Logger        zerolog.Logger
}

// Service drives documents through their lifecycle
type Service struct {
	documents     repository.DocumentRepository
	documentTypes repository.DocumentTypeRepository
	templates     repository.TemplateRepository
	users         repository.UserRepository
	storage       storage.Storage
	sealer        *utils.Sealer
	notifier      Notifier
	signatures    SignatureCapturer
	publisher     websocket.Publisher
	baseURL       string
	validate      *validation.Validator
	now           func() time.Time
	log           zerolog.Logger
}

// NewService creates a new workflow service
func NewService(p Params) *Service {
	return &Service{
		documents:     p.Repos.Documents,
		documentTypes: p.Repos.DocumentTypes,
		templates:     p.Repos.Templates,
		users:         p.Repos.Users,
		storage:       p.Storage,
		sealer:        p.Sealer,
		notifier:      p.Notifier,
		signatures:    p.Signatures,
		publisher:     p.Publisher,
		baseURL:       strings.TrimRight(p.PublicBaseURL, "/"),
		validate:      validation.New(),
		now:           func() time.Time { return time.Now().UTC() },
		log:           p.Logger.With().Str("service", "workflow").Logger(),
	}
}

type SignatoryInput struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Order  int    `json:"order" validate:"gte=0"`
	Label  string `json:"label" validate:"max=120"`
}

type CreateRequest struct {
	DocumentTypeID string                 `json:"documentTypeId" validate:"required,uuid"`
	Title          string                 `json:"title" validate:"required,max=200"`
	TemplateID     *string                `json:"templateId" validate:"omitempty,uuid"`
	Data           map[string]interface{} `json:"data"`
	Signatories    []SignatoryInput       `json:"signatories" validate:"dive"`
}

// UpdateRequest replaces the given fields of a draft; nil fields are kept
type UpdateRequest struct {
	Title      *string                `json:"title" validate:"omitempty,max=200"`
	TemplateID *string                `json:"templateId" validate:"omitempty,uuid"`
	Data       map[string]interface{} `json:"data"`
}

type SignRequest struct {
	Signature signatures.CaptureRequest `json:"signature"`
	Comment   string                    `json:"comment" validate:"max=1000"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (s *Service) List(ctx context.Context, actor Actor, f repository.DocumentFilter) (repository.Page[models.Document], error) {
	if !actor.Manager {
		f.VisibleTo = actor.UserID
	}
	items, total, err := s.documents.List(ctx, f)
	if err != nil {
		return repository.Page[models.Document]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

// Get returns a document the actor may see
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Manager && doc.CreatedBy != actor.UserID && doc.SignatoryFor(actor.UserID) == nil {
		return nil, ierr.NewError("document not visible").
			WithHint("Document not found").
			Mark(ierr.ErrNotFound)
	}
	return doc, nil
}

// editable loads a draft the actor owns
func (s *Service) editable(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Manager && doc.CreatedBy != actor.UserID {
		return nil, ierr.NewError("not the creator").
			WithHint("Only the creator can change this document").
			Mark(ierr.ErrPermissionDenied)
	}
	if doc.Status != models.StatusDraft {
		return nil, ierr.NewErrorf("document is %s", doc.Status).
			WithHint("Only draft documents can be changed").
			Mark(ierr.ErrInvalidOperation)
	}
	return doc, nil
}

func (s *Service) Create(ctx context.Context, actor Actor, req CreateRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	dt, err := s.documentTypes.Get(ctx, req.DocumentTypeID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).WithHint("Document type does not exist").Mark(ierr.ErrValidation)
		}
		return nil, err
	}
	if !dt.IsActive {
		return nil, ierr.NewError("document type inactive").
			WithHintf("Document type %s is inactive", dt.Code).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := validation.ValidateDocumentData(dt.Fields(), req.Data, false); err != nil {
		return nil, err
	}
	if err := s.checkTemplate(ctx, dt.ID, req.TemplateID); err != nil {
		return nil, err
	}
	list, err := s.buildSignatories(ctx, req.Signatories)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:             models.NewID(),
		Reference:      newReference(dt.Code, s.now()),
		Title:          strings.TrimSpace(req.Title),
		DocumentTypeID: dt.ID,
		TemplateID:     emptyToNil(req.TemplateID),
		Status:         models.StatusDraft,
		Data:           models.JSONB(req.Data),
		CreatedBy:      actor.UserID,
		Signatories:    list,
	}
	if doc.Data == nil {
		doc.Data = models.JSONB{}
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("reference", doc.Reference).Str("user_id", actor.UserID).Msg("document created")
	return s.documents.Get(ctx, doc.ID)
}

// Update edits a draft; the last writer wins
func (s *Service) Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	doc, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ierr.NewError("empty title").WithHint("title is required").Mark(ierr.ErrValidation)
		}
		doc.Title = title
	}
	if req.TemplateID != nil {
		if err := s.checkTemplate(ctx, doc.DocumentTypeID, req.TemplateID); err != nil {
			return nil, err
		}
		doc.TemplateID = emptyToNil(req.TemplateID)
	}
	if req.Data != nil {
		if err := validation.ValidateDocumentData(doc.DocumentType.Fields(), req.Data, false); err != nil {
			return nil, err
		}
		doc.Data = models.JSONB(req.Data)
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	return s.documents.Get(ctx, doc.ID)
}

// SetSignatories replaces the signer list of a draft
func (s *Service) SetSignatories(ctx context.Context, actor Actor, id string, inputs []SignatoryInput) (*models.Document, error) {
	for i := range inputs {
		if err := s.validate.Struct(inputs[i]); err != nil {
			return nil, err
		}
	}
	doc, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	list, err := s.buildSignatories(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.documents.ReplaceSignatories(ctx, doc.ID, list); err != nil {
		return nil, err
	}
	return s.documents.Get(ctx, doc.ID)
}

// Delete removes a draft
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	doc, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.documents.Delete(ctx, doc.ID)
}

// buildSignatories checks users and normalises orders to 1..n keeping the requested sequence
func (s *Service) buildSignatories(ctx context.Context, inputs []SignatoryInput) ([]models.Signatory, error) {
	if len(inputs) == 0 {
		return []models.Signatory{}, nil
	}
	if dups := lo.FindDuplicatesBy(inputs, func(in SignatoryInput) string { return in.UserID }); len(dups) > 0 {
		return nil, ierr.NewError("duplicate signatory").
			WithHint("A user can only sign a document once").
			Mark(ierr.ErrValidation)
	}

	ids := lo.Map(inputs, func(in SignatoryInput, _ int) string { return in.UserID })
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(users, func(u models.User) string { return u.ID })
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, ierr.NewError("unknown signatory").
				WithHint("Signatory user does not exist").
				Mark(ierr.ErrValidation)
		}
		if !u.IsActive {
			return nil, ierr.NewError("inactive signatory").
				WithHintf("%s is inactive and cannot sign", u.DisplayName()).
				Mark(ierr.ErrValidation)
		}
	}

	ordered := make([]SignatoryInput, len(inputs))
	copy(ordered, inputs)
	for i := range ordered {
		if ordered[i].Order == 0 {
			ordered[i].Order = i + 1
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	return lo.Map(ordered, func(in SignatoryInput, i int) models.Signatory {
		return models.Signatory{
			UserID: in.UserID,
			Order:  i + 1,
			Label:  in.Label,
			Status: models.SignatoryPending,
		}
	}), nil
}

func (s *Service) checkTemplate(ctx context.Context, documentTypeID string, templateID *string) error {
	if templateID == nil || *templateID == "" {
		return nil
	}
	tpl, err := s.templates.Get(ctx, *templateID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return ierr.WithError(err).WithHint("Template does not exist").Mark(ierr.ErrValidation)
		}
		return err
	}
	if tpl.DocumentTypeID != nil && *tpl.DocumentTypeID != documentTypeID {
		return ierr.NewError("template belongs to another type").
			WithHint("Template belongs to another document type").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// transition moves doc to the next status and stamps the matching timestamp
func (s *Service) transition(doc *models.Document, to models.DocumentStatus) (models.DocumentStatus, error) {
	from := doc.Status
	if !from.CanTransitionTo(to) {
		return from, ierr.NewErrorf("invalid transition %s -> %s", from, to).
			WithHintf("Document is %s and cannot become %s", from, to).
			Mark(ierr.ErrInvalidOperation)
	}
	now := s.now()
	switch to {
	case models.StatusSubmitted:
		doc.SubmittedAt = &now
	case models.StatusValidated:
		doc.ValidatedAt = &now
	case models.StatusSigned:
		doc.SignedAt = &now
	case models.StatusActive:
		doc.ActivatedAt = &now
	case models.StatusUsed:
		doc.UsedAt = &now
	case models.StatusCancelled:
		doc.CancelledAt = &now
	}
	doc.Status = to
	return from, nil
}

// announce publishes the status change to every participant
func (s *Service) announce(ctx context.Context, doc *models.Document, from models.DocumentStatus) {
	metrics.DocumentTransitionsTotal.WithLabelValues(string(from), string(doc.Status)).Inc()
	ev := websocket.NewEvent(websocket.EventDocumentStatusChanged, map[string]interface{}{
		"id":        doc.ID,
		"reference": doc.Reference,
		"from":      from,
		"to":        doc.Status,
	})
	if err := s.publisher.Publish(ctx, doc.Participants(), ev); err != nil {
		s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("failed to publish status change")
	}
	s.log.Info().
		Str("document_id", doc.ID).
		Str("reference", doc.Reference).
		Str("from", string(from)).
		Str("to", string(doc.Status)).
		Msg("document status changed")
}

// notify sends a notification about doc; failures are logged only
func (s *Service) notify(ctx context.Context, doc *models.Document, typ, title, message string, userIDs ...string) {
	_, err := s.notifier.Notify(ctx, notify.Input{
		UserIDs:    userIDs,
		Type:       typ,
		Title:      title,
		Message:    message,
		Data:       map[string]interface{}{"documentId": doc.ID, "reference": doc.Reference, "status": doc.Status},
		DocumentID: &doc.ID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", doc.ID).Str("type", typ).Msg("failed to notify")
	}
}

// newReference builds TYPECODE-YYYYMMDD-XXXXXX
func newReference(typeCode string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", typeCode, now.Format("20060102"), suffix)
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func displayName(u *models.User) string {
	if u == nil {
		return "A signatory"
	}
	return u.DisplayName()
}
