package signatures

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/metrics"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/printer"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/validation"
)

// MaxImageSize bounds uploaded and drawn signature images
const MaxImageSize = 2 << 20

// Service captures and manages signature artifacts
type Service struct {
	signatures repository.SignatureRepository
	storage    storage.Storage
	validate   *validation.Validator
	log        zerolog.Logger
}

// NewService creates a new signature service
func NewService(repos *repository.Repositories, store storage.Storage, log zerolog.Logger) *Service {
	return &Service{
		signatures: repos.Signatures,
		storage:    store,
		validate:   validation.New(),
		log:        log.With().Str("service", "signatures").Logger(),
	}
}

// CaptureRequest describes one signature. Image is a data URL for DRAWN and
// raw or base64 content for UPLOADED; SignatureID selects a SAVED artifact.
type CaptureRequest struct {
	Kind        models.SignatureKind `json:"kind" validate:"required,oneof=DRAWN TYPED UPLOADED SAVED"`
	Name        string               `json:"name" validate:"max=120"`
	Image       string               `json:"image"`
	TypedText   string               `json:"typedText" validate:"max=200"`
	Font        string               `json:"font" validate:"max=60"`
	SignatureID string               `json:"signatureId"`
	Save        bool                 `json:"save"`
	// Upload carries multipart file content and takes precedence over Image
	Upload []byte `json:"-"`
}

// Capture stores a new artifact, or resolves a saved one, owned by userID
func (s *Service) Capture(ctx context.Context, userID string, req CaptureRequest) (*models.Signature, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if req.Kind == models.SignatureSaved {
		return s.saved(ctx, userID, req.SignatureID)
	}

	sig := &models.Signature{
		ID:     models.NewID(),
		UserID: userID,
		Kind:   req.Kind,
		Name:   req.Name,
		Saved:  req.Save,
	}

	switch req.Kind {
	case models.SignatureTyped:
		text := strings.TrimSpace(req.TypedText)
		if text == "" {
			return nil, invalid("typedText", "Typed signatures need text")
		}
		sig.TypedText = text
		sig.Font = req.Font
	case models.SignatureDrawn:
		data, err := decodeDataURL(req.Image)
		if err != nil {
			return nil, err
		}
		if err := s.storeImage(ctx, sig, data, "image/png"); err != nil {
			return nil, err
		}
	case models.SignatureUploaded:
		data := req.Upload
		if len(data) == 0 {
			var err error
			if data, err = decodeUpload(req.Image); err != nil {
				return nil, err
			}
		}
		if err := s.storeImage(ctx, sig, data, ""); err != nil {
			return nil, err
		}
	}

	if err := s.signatures.Create(ctx, sig); err != nil {
		if sig.ImageKey != "" {
			_ = s.storage.Delete(ctx, sig.ImageKey)
		}
		return nil, err
	}
	metrics.SignaturesCapturedTotal.WithLabelValues(string(sig.Kind)).Inc()
	s.log.Info().Str("user_id", userID).Str("kind", string(sig.Kind)).Bool("saved", sig.Saved).Msg("signature captured")
	return sig, nil
}

func (s *Service) saved(ctx context.Context, userID, id string) (*models.Signature, error) {
	if id == "" {
		return nil, invalid("signatureId", "Choose a saved signature")
	}
	sig, err := s.signatures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sig.UserID != userID || !sig.Saved {
		return nil, ierr.NewError("signature not owned").
			WithHint("Saved signature not found").
			Mark(ierr.ErrNotFound)
	}
	metrics.SignaturesCapturedTotal.WithLabelValues(string(models.SignatureSaved)).Inc()
	return sig, nil
}

// storeImage sniffs the content, enforces limits and writes it to storage
func (s *Service) storeImage(ctx context.Context, sig *models.Signature, data []byte, want string) error {
	if len(data) == 0 {
		return invalid("image", "Signature image is required")
	}
	if len(data) > MaxImageSize {
		return invalid("image", "Signature image must be at most 2 MiB")
	}
	contentType := http.DetectContentType(data)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return invalid("image", "Signature image must be PNG or JPEG")
	}
	if want != "" && contentType != want {
		return invalid("image", "Drawn signatures must be PNG")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return invalid("image", "Signature image could not be decoded")
	}
	if cfg.Width > printer.MaxImageSide || cfg.Height > printer.MaxImageSide {
		return invalid("image", fmt.Sprintf("Signature image must be at most %dx%d pixels", printer.MaxImageSide, printer.MaxImageSide))
	}

	ext := "png"
	if contentType == "image/jpeg" {
		ext = "jpg"
	}
	key := fmt.Sprintf("signatures/%s/%s.%s", sig.UserID, sig.ID, ext)
	if err := s.storage.Put(ctx, key, contentType, data); err != nil {
		return err
	}
	sig.ImageKey = key
	sig.ContentType = contentType
	return nil
}

// List returns the user's saved library, default first
func (s *Service) List(ctx context.Context, userID string) ([]models.Signature, error) {
	return s.signatures.ListSaved(ctx, userID)
}

func (s *Service) owned(ctx context.Context, userID, id string) (*models.Signature, error) {
	sig, err := s.signatures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sig.UserID != userID {
		return nil, ierr.NewError("signature not owned").
			WithHint("Signature not found").
			Mark(ierr.ErrNotFound)
	}
	return sig, nil
}

// SetDefault marks one saved signature as the user's default
func (s *Service) SetDefault(ctx context.Context, userID, id string) (*models.Signature, error) {
	sig, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !sig.Saved {
		return nil, ierr.NewError("signature not saved").
			WithHint("Only saved signatures can be the default").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.signatures.ClearDefault(ctx, userID); err != nil {
		return nil, err
	}
	sig.IsDefault = true
	if err := s.signatures.Update(ctx, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Delete removes a signature from the library. Signed documents keep referencing it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	sig, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	sig.Saved = false
	sig.IsDefault = false
	return s.signatures.Update(ctx, sig)
}

// Get returns a signature artifact by ID
func (s *Service) Get(ctx context.Context, id string) (*models.Signature, error) {
	return s.signatures.Get(ctx, id)
}

// Image returns the stored image and its content type
func (s *Service) Image(ctx context.Context, id string) ([]byte, string, error) {
	sig, err := s.signatures.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !sig.HasImage() {
		return nil, "", ierr.NewError("signature has no image").
			WithHint("Signature has no image").
			Mark(ierr.ErrNotFound)
	}
	data, err := s.storage.Get(ctx, sig.ImageKey)
	if err != nil {
		return nil, "", err
	}
	return data, sig.ContentType, nil
}

func decodeDataURL(s string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(s, prefix) {
		return nil, invalid("image", "Drawn signatures must be a PNG data URL")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, prefix))
	if err != nil {
		return nil, invalid("image", "Signature image is not valid base64")
	}
	return data, nil
}

func decodeUpload(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i > 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, invalid("image", "Signature image is not valid base64")
	}
	return data, nil
}

func invalid(field, hint string) error {
	return ierr.NewError("invalid signature").
		WithHint(hint).
		WithReportableDetails(map[string]string{field: hint}).
		Mark(ierr.ErrValidation)
}
