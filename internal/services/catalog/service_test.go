package catalog

import (
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/testutil"
)

type CatalogServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *Service
}

func TestCatalogService(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewService(s.GetRepos(), s.GetLogger())
}

func (s *CatalogServiceSuite) category(code string, parent *string) *models.Category {
	c, err := s.service.CreateCategory(s.GetContext(), CategoryRequest{Code: code, Name: code, ParentID: parent})
	s.Require().NoError(err)
	return c
}

func sampleGroups() []models.FieldGroup {
	return []models.FieldGroup{{
		Key:   "main",
		Label: "Main",
		Fields: []models.FieldDefinition{
			{Key: "amount", Label: "Amount", Type: models.FieldNumber, Required: true, ValidationRules: `{"min":0}`},
			{Key: "kind", Label: "Kind", Type: models.FieldSelect, Options: `["A","B"]`},
		},
	}}
}

func (s *CatalogServiceSuite) TestCreateCategory() {
	testCases := []struct {
		name    string
		req     CategoryRequest
		wantErr func(error) bool
	}{
		{name: "valid", req: CategoryRequest{Code: "HR", Name: "Human resources"}},
		{name: "lowercase_code", req: CategoryRequest{Code: "hr", Name: "HR"}, wantErr: ierr.IsValidation},
		{name: "missing_name", req: CategoryRequest{Code: "FIN"}, wantErr: ierr.IsValidation},
		{name: "unknown_parent", req: CategoryRequest{Code: "OPS", Name: "Ops", ParentID: ptr(models.NewID())}, wantErr: ierr.IsValidation},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			c, err := s.service.CreateCategory(s.GetContext(), tc.req)
			if tc.wantErr != nil {
				s.True(tc.wantErr(err), "unexpected error: %v", err)
				return
			}
			s.Require().NoError(err)
			s.True(c.IsActive)
		})
	}

	_, err := s.service.CreateCategory(s.GetContext(), CategoryRequest{Code: "HR", Name: "Again"})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *CatalogServiceSuite) TestCategoryParentRules() {
	root := s.category("ROOT", nil)
	child := s.category("CHILD", &root.ID)
	s.Require().NotNil(child.Parent)
	s.Equal(root.ID, child.Parent.ID)

	_, err := s.service.UpdateCategory(s.GetContext(), root.ID, CategoryRequest{Code: "ROOT", Name: "Root", ParentID: &root.ID})
	s.True(ierr.IsValidation(err), "self parent")

	_, err = s.service.UpdateCategory(s.GetContext(), root.ID, CategoryRequest{Code: "ROOT", Name: "Root", ParentID: &child.ID})
	s.True(ierr.IsValidation(err), "cycle")

	s.True(ierr.IsInvalidOperation(s.service.DeleteCategory(s.GetContext(), root.ID)), "has children")
	s.NoError(s.service.DeleteCategory(s.GetContext(), child.ID))
	s.NoError(s.service.DeleteCategory(s.GetContext(), root.ID))
}

func (s *CatalogServiceSuite) TestDocumentTypeLifecycle() {
	cat := s.category("HR", nil)

	dt, err := s.service.CreateDocumentType(s.GetContext(), DocumentTypeRequest{
		Code:              "LEAVE_REQUEST",
		Name:              "Leave request",
		CategoryID:        cat.ID,
		FieldGroups:       sampleGroups(),
		RequiresSignature: true,
		ValidityDays:      30,
	})
	s.Require().NoError(err)
	s.Require().NotNil(dt.Category)
	s.Equal("HR", dt.Category.Code)
	s.Len(dt.Fields(), 2)

	s.True(ierr.IsInvalidOperation(s.service.DeleteCategory(s.GetContext(), cat.ID)), "category in use")

	page, err := s.service.ListDocumentTypes(s.GetContext(), repository.DocumentTypeFilter{CategoryID: cat.ID})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)

	doc := &models.Document{Reference: "LR-1", Title: "x", DocumentTypeID: dt.ID, Status: models.StatusDraft, CreatedBy: models.NewID()}
	s.Require().NoError(s.GetRepos().Documents.Create(s.GetContext(), doc))
	s.True(ierr.IsInvalidOperation(s.service.DeleteDocumentType(s.GetContext(), dt.ID)))

	s.Require().NoError(s.GetRepos().Documents.Delete(s.GetContext(), doc.ID))
	s.NoError(s.service.DeleteDocumentType(s.GetContext(), dt.ID))
}

func (s *CatalogServiceSuite) TestDocumentTypeValidation() {
	cat := s.category("HR", nil)
	bad := sampleGroups()
	bad[0].Fields[1].Options = `["A",`

	testCases := []struct {
		name string
		req  DocumentTypeRequest
	}{
		{name: "lowercase_code", req: DocumentTypeRequest{Code: "leave", Name: "Leave", CategoryID: cat.ID}},
		{name: "unknown_category", req: DocumentTypeRequest{Code: "LEAVE", Name: "Leave", CategoryID: models.NewID()}},
		{name: "options_not_json", req: DocumentTypeRequest{Code: "LEAVE", Name: "Leave", CategoryID: cat.ID, FieldGroups: bad}},
		{name: "negative_validity", req: DocumentTypeRequest{Code: "LEAVE", Name: "Leave", CategoryID: cat.ID, ValidityDays: -1}},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.service.CreateDocumentType(s.GetContext(), tc.req)
			s.True(ierr.IsValidation(err), "unexpected error: %v", err)
		})
	}
}

func (s *CatalogServiceSuite) TestDefaultTemplateMustMatchType() {
	cat := s.category("HR", nil)
	dt, err := s.service.CreateDocumentType(s.GetContext(), DocumentTypeRequest{Code: "LEAVE", Name: "Leave", CategoryID: cat.ID})
	s.Require().NoError(err)

	otherType := models.NewID()
	foreign := &models.PDFTemplate{Name: "Other", DocumentTypeID: &otherType, PageSize: models.PageA4, Orientation: models.Portrait}
	generic := &models.PDFTemplate{Name: "Generic", PageSize: models.PageA4, Orientation: models.Portrait}
	own := &models.PDFTemplate{Name: "Own", DocumentTypeID: &dt.ID, PageSize: models.PageA4, Orientation: models.Portrait}
	for _, t := range []*models.PDFTemplate{foreign, generic, own} {
		s.Require().NoError(s.GetRepos().Templates.Create(s.GetContext(), t))
	}

	req := DocumentTypeRequest{Code: "LEAVE", Name: "Leave", CategoryID: cat.ID}

	req.DefaultTemplateID = &foreign.ID
	_, err = s.service.UpdateDocumentType(s.GetContext(), dt.ID, req)
	s.True(ierr.IsValidation(err))

	req.DefaultTemplateID = &generic.ID
	_, err = s.service.UpdateDocumentType(s.GetContext(), dt.ID, req)
	s.NoError(err)

	req.DefaultTemplateID = &own.ID
	updated, err := s.service.UpdateDocumentType(s.GetContext(), dt.ID, req)
	s.Require().NoError(err)
	s.Equal(own.ID, *updated.DefaultTemplateID)
}

func ptr(s string) *string { return &s }
