package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/services/notify"
	"github.com/kami-operation/kamiops/internal/services/signatures"
	"github.com/kami-operation/kamiops/internal/storage"
)

// brokenPDFStore refuses to store sealed PDFs
type brokenPDFStore struct {
	storage.Storage
}

func (b brokenPDFStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if strings.HasPrefix(key, "documents/") {
		return errors.New("bucket unavailable")
	}
	return b.Storage.Put(ctx, key, contentType, data)
}

func (s *WorkflowServiceSuite) withStorage(store storage.Storage) *Service {
	repos := s.GetRepos()
	return NewService(Params{
		Repos:         repos,
		Storage:       store,
		Sealer:        s.GetSealer(),
		Notifier:      notify.NewService(repos, s.GetPublisher(), s.GetLogger()),
		Signatures:    signatures.NewService(repos, store, s.GetLogger()),
		Publisher:     s.GetPublisher(),
		PublicBaseURL: "https://kami.test",
		Logger:        s.GetLogger(),
	})
}

func logoPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.Black)
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func (s *WorkflowServiceSuite) TestFailedSealIsRetried() {
	ctx := s.GetContext()
	broken := s.withStorage(brokenPDFStore{s.GetStorage()})

	doc, err := broken.Create(ctx, as(s.creator), CreateRequest{DocumentTypeID: s.memo.ID, Title: "Memo"})
	s.Require().NoError(err)
	doc, err = broken.Submit(ctx, as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusValidated, doc.Status)

	doc, err = s.service.Get(ctx, as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusValidated, doc.Status)
	s.Empty(doc.PDFKey)
	s.Require().NotNil(doc.VerificationCode)
	code := *doc.VerificationCode

	_, err = broken.Seal(ctx, Actor{UserID: s.creator.ID, Manager: true}, doc.ID)
	s.Error(err)

	doc, err = s.service.Seal(ctx, Actor{UserID: s.creator.ID, Manager: true}, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSigned, doc.Status)
	s.NotEmpty(doc.PDFKey)
	s.Require().NotNil(doc.VerificationCode)
	s.Equal(code, *doc.VerificationCode)

	v, err := s.service.Verify(ctx, code)
	s.Require().NoError(err)
	s.True(v.Intact)
}

func (s *WorkflowServiceSuite) TestSealRequiresValidated() {
	manager := Actor{UserID: s.creator.ID, Manager: true}

	_, err := s.service.Seal(s.GetContext(), manager, s.draft().ID)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.Seal(s.GetContext(), manager, s.signed().ID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *WorkflowServiceSuite) TestTemplateImagesAreDrawn() {
	ctx := s.GetContext()
	repos := s.GetRepos()

	tpl := &models.PDFTemplate{
		Name:        "Letterhead",
		PageSize:    models.PageA4,
		Orientation: models.Portrait,
		IsActive:    true,
		Sections: []models.Section{
			{ID: "logo", Type: models.SectionImage, X: 5, Y: 5, Width: 20, Height: 10, Content: "logos/acme.png"},
		},
	}
	s.Require().NoError(repos.Templates.Create(ctx, tpl))
	s.memo.DefaultTemplateID = &tpl.ID
	s.Require().NoError(repos.DocumentTypes.Update(ctx, s.memo))

	doc, err := s.service.Create(ctx, as(s.creator), CreateRequest{DocumentTypeID: s.memo.ID, Title: "Memo"})
	s.Require().NoError(err)

	// missing image: the section stays empty and rendering still succeeds
	file, err := s.service.PDF(ctx, as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.NotContains(string(file.Content), "/Subtype /Image")

	s.Require().NoError(s.GetStorage().Put(ctx, "logos/acme.png", "image/png", logoPNG()))
	file, err = s.service.PDF(ctx, as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.Contains(string(file.Content), "/Subtype /Image")
}
