package workflow

import (
	"context"
	"fmt"
	"time"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/metrics"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/services/printer"
	"github.com/kami-operation/kamiops/internal/utils"
)

// VerifiedSignatory is the public view of one signer
type VerifiedSignatory struct {
	Order    int        `json:"order"`
	Name     string     `json:"name"`
	Label    string     `json:"label,omitempty"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signedAt,omitempty"`
}

// Verification is returned by the public verification endpoint
type Verification struct {
	Reference    string              `json:"reference"`
	Title        string              `json:"title"`
	DocumentType string              `json:"documentType"`
	Status       string              `json:"status"`
	Signatories  []VerifiedSignatory `json:"signatories"`
	SignedAt     *time.Time          `json:"signedAt,omitempty"`
	ValidUntil   *time.Time          `json:"validUntil,omitempty"`
	PDFHash      string              `json:"pdfHash"`
	// Intact reports whether the stored PDF still matches its hash and seal
	Intact bool `json:"intact"`
	// Valid is true for an intact document that is signed or active and not past its validity
	Valid bool `json:"valid"`
}

// PDFFile is a rendered or stored document PDF
type PDFFile struct {
	Filename string
	Content  []byte
	Sealed   bool
}

// Seal retries sealing of a validated document
func (s *Service) Seal(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusValidated {
		return nil, ierr.NewErrorf("document is %s", doc.Status).
			WithHint("Only validated documents can be sealed").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.seal(ctx, doc); err != nil {
		return nil, err
	}
	return s.documents.Get(ctx, doc.ID)
}

// seal renders the final PDF, signs its digest with the server key and stores it
func (s *Service) seal(ctx context.Context, doc *models.Document) error {
	// 1. Verification code, kept across retries
	if doc.VerificationCode == nil {
		code := utils.NewVerificationCode()
		doc.VerificationCode = &code
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
	}

	// 2. Render
	start := time.Now()
	pdf, err := s.render(ctx, doc, s.verificationURL(*doc.VerificationCode))
	metrics.PDFRenderDuration.WithLabelValues("seal").Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	// 3. Digest and seal signature
	signature, err := s.sealer.Sign(pdf)
	if err != nil {
		return ierr.WithError(err).WithHint("Could not seal document").Mark(ierr.ErrSystem)
	}

	// 4. Store
	key := fmt.Sprintf("documents/%s/%s.pdf", doc.ID, doc.Reference)
	if err := s.storage.Put(ctx, key, "application/pdf", pdf); err != nil {
		return err
	}

	// 5. VALIDATED -> SIGNED
	from, err := s.transition(doc, models.StatusSigned)
	if err != nil {
		return err
	}
	doc.PDFKey = key
	doc.PDFHash = utils.Digest(pdf)
	doc.SealSignature = signature
	if err := s.documents.Update(ctx, doc); err != nil {
		return err
	}
	s.announce(ctx, doc, from)
	s.notify(ctx, doc, models.NotifyDocumentCompleted,
		"Document completed",
		fmt.Sprintf("%s has been signed by everyone and sealed", doc.Reference),
		doc.Participants()...)
	return nil
}

func (s *Service) verificationURL(code string) string {
	return s.baseURL + "/verify/" + code
}

// VerificationURL is the public URL encoded in a document's QR code
func (s *Service) VerificationURL(code string) string {
	return s.verificationURL(utils.NormalizeVerificationCode(code))
}

// render merges doc into its template
func (s *Service) render(ctx context.Context, doc *models.Document, verificationURL string) ([]byte, error) {
	dt := doc.DocumentType
	if dt == nil {
		var err error
		if dt, err = s.documentTypes.Get(ctx, doc.DocumentTypeID); err != nil {
			return nil, err
		}
	}
	tpl, err := s.resolveTemplate(ctx, doc, dt)
	if err != nil {
		return nil, err
	}

	date := doc.CreatedAt
	if doc.SubmittedAt != nil {
		date = *doc.SubmittedAt
	}
	in := printer.RenderInput{
		Reference:       doc.Reference,
		Title:           doc.Title,
		Status:          string(doc.Status),
		Date:            date,
		Data:            doc.Data,
		VerificationURL: verificationURL,
	}
	images, skipped := printer.LoadImages(ctx, tpl, s.storage)
	for key, err := range skipped {
		s.log.Warn().Err(err).Str("image_key", key).Str("document_id", doc.ID).Msg("template image unavailable")
	}
	in.Images = images

	models.SortSignatories(doc.Signatories)
	for _, sg := range doc.Signatories {
		block := printer.SignatureBlock{
			Order:    sg.Order,
			Name:     displayName(sg.User),
			Label:    sg.Label,
			SignedAt: sg.SignedAt,
		}
		if sg.Signature != nil {
			block.TypedText = sg.Signature.TypedText
			block.Font = sg.Signature.Font
			if sg.Signature.HasImage() {
				img, err := s.storage.Get(ctx, sg.Signature.ImageKey)
				if err == nil {
					_, err = printer.CheckImage(img)
				}
				if err != nil {
					s.log.Warn().Err(err).Str("signature_id", sg.Signature.ID).Msg("signature image unavailable")
				} else {
					block.Image = img
				}
			}
		}
		in.Signatories = append(in.Signatories, block)
	}

	pdf, err := printer.Render(tpl, in)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Could not render document").Mark(ierr.ErrSystem)
	}
	return pdf, nil
}

// resolveTemplate picks the document's template, then the type default, then a generated layout
func (s *Service) resolveTemplate(ctx context.Context, doc *models.Document, dt *models.DocumentType) (*models.PDFTemplate, error) {
	for _, id := range []*string{doc.TemplateID, dt.DefaultTemplateID} {
		if id == nil || *id == "" {
			continue
		}
		tpl, err := s.templates.Get(ctx, *id)
		if err == nil {
			return tpl, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		s.log.Warn().Str("template_id", *id).Str("document_id", doc.ID).Msg("template missing, falling back")
	}
	return printer.DefaultTemplate(dt, len(doc.Signatories)), nil
}

// PDF returns the sealed PDF, or a live render while the document is unsealed
func (s *Service) PDF(ctx context.Context, actor Actor, id string) (*PDFFile, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name := doc.Reference + ".pdf"
	if doc.PDFKey != "" {
		data, err := s.storage.Get(ctx, doc.PDFKey)
		if err != nil {
			return nil, err
		}
		return &PDFFile{Filename: name, Content: data, Sealed: true}, nil
	}

	start := time.Now()
	data, err := s.render(ctx, doc, "")
	metrics.PDFRenderDuration.WithLabelValues("draft").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return &PDFFile{Filename: name, Content: data}, nil
}

// PDFURL returns a direct download URL when the storage driver offers one
func (s *Service) PDFURL(ctx context.Context, actor Actor, id string) (string, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if doc.PDFKey == "" {
		return "", nil
	}
	return s.storage.URL(ctx, doc.PDFKey)
}

// SealPublicKey returns the PEM public key that checks the seal of every stored PDF
func (s *Service) SealPublicKey() (string, error) {
	pub, err := s.sealer.PublicKeyPEM()
	if err != nil {
		return "", ierr.WithError(err).WithHint("Seal key unavailable").Mark(ierr.ErrSystem)
	}
	return pub, nil
}

// Verify looks up a sealed document by its public code
func (s *Service) Verify(ctx context.Context, code string) (*Verification, error) {
	code = utils.NormalizeVerificationCode(code)
	if !utils.ValidVerificationCode(code) {
		return nil, ierr.NewErrorf("malformed verification code %q", code).
			WithHint("No document matches this verification code").
			Mark(ierr.ErrNotFound)
	}
	doc, err := s.documents.GetByVerificationCode(ctx, code)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).WithHint("No document matches this verification code").Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	v := &Verification{
		Reference:  doc.Reference,
		Title:      doc.Title,
		Status:     string(doc.Status),
		SignedAt:   doc.SignedAt,
		ValidUntil: doc.ValidUntil,
		PDFHash:    doc.PDFHash,
	}
	if doc.DocumentType != nil {
		v.DocumentType = doc.DocumentType.Name
	}
	for _, sg := range doc.Signatories {
		v.Signatories = append(v.Signatories, VerifiedSignatory{
			Order:    sg.Order,
			Name:     displayName(sg.User),
			Label:    sg.Label,
			Status:   string(sg.Status),
			SignedAt: sg.SignedAt,
		})
	}

	if doc.PDFKey != "" {
		pdf, err := s.storage.Get(ctx, doc.PDFKey)
		if err != nil {
			s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("sealed PDF unavailable for verification")
		} else {
			v.Intact = utils.Digest(pdf) == doc.PDFHash && s.sealer.Verify(pdf, doc.SealSignature) == nil
		}
	}

	inForce := doc.Status == models.StatusSigned || doc.Status == models.StatusActive
	notExpired := doc.ValidUntil == nil || doc.ValidUntil.After(s.now())
	v.Valid = v.Intact && inForce && notExpired
	return v, nil
}
