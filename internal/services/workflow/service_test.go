package workflow

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/services/notify"
	"github.com/kami-operation/kamiops/internal/services/signatures"
	"github.com/kami-operation/kamiops/internal/testutil"
	"github.com/kami-operation/kamiops/internal/utils"
	"github.com/kami-operation/kamiops/internal/websocket"
)

type WorkflowServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *Service

	leave   *models.DocumentType
	memo    *models.DocumentType
	creator *models.User
	first   *models.User
	second  *models.User
	outside *models.User
}

func TestWorkflowService(t *testing.T) {
	suite.Run(t, new(WorkflowServiceSuite))
}

func (s *WorkflowServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	repos := s.GetRepos()
	s.service = NewService(Params{
		Repos:         repos,
		Storage:       s.GetStorage(),
		Sealer:        s.GetSealer(),
		Notifier:      notify.NewService(repos, s.GetPublisher(), s.GetLogger()),
		Signatures:    signatures.NewService(repos, s.GetStorage(), s.GetLogger()),
		Publisher:     s.GetPublisher(),
		PublicBaseURL: "https://kami.test/",
		Logger:        s.GetLogger(),
	})

	ctx := s.GetContext()
	cat := &models.Category{Code: "HR", Name: "HR", IsActive: true}
	s.Require().NoError(repos.Categories.Create(ctx, cat))

	s.leave = &models.DocumentType{
		Code:              "LEAVE",
		Name:              "Leave request",
		CategoryID:        cat.ID,
		RequiresSignature: true,
		ValidityDays:      30,
		IsActive:          true,
		FieldGroups: []models.FieldGroup{{
			Key:   "main",
			Label: "Main",
			Fields: []models.FieldDefinition{
				{Key: "reason", Label: "Reason", Type: models.FieldText, Required: true},
				{Key: "days", Label: "Days", Type: models.FieldNumber, Required: true, ValidationRules: `{"min":1}`},
			},
		}},
	}
	s.Require().NoError(repos.DocumentTypes.Create(ctx, s.leave))

	s.memo = &models.DocumentType{Code: "MEMO", Name: "Memo", CategoryID: cat.ID, IsActive: true}
	s.Require().NoError(repos.DocumentTypes.Create(ctx, s.memo))

	s.creator = s.CreateUser("creator", nil)
	s.first = s.CreateUser("first", nil)
	s.second = s.CreateUser("second", nil)
	s.outside = s.CreateUser("outside", nil)
}

func as(u *models.User) Actor { return Actor{UserID: u.ID} }

func typed(text string) SignRequest {
	return SignRequest{Signature: signatures.CaptureRequest{Kind: models.SignatureTyped, TypedText: text}}
}

func (s *WorkflowServiceSuite) draft() *models.Document {
	doc, err := s.service.Create(s.GetContext(), as(s.creator), CreateRequest{
		DocumentTypeID: s.leave.ID,
		Title:          "Summer leave",
		Data:           map[string]interface{}{"reason": "Holiday", "days": 5},
		Signatories: []SignatoryInput{
			{UserID: s.first.ID, Label: "Manager"},
			{UserID: s.second.ID, Label: "Director"},
		},
	})
	s.Require().NoError(err)
	return doc
}

func (s *WorkflowServiceSuite) submitted() *models.Document {
	doc := s.draft()
	doc, err := s.service.Submit(s.GetContext(), as(s.creator), doc.ID)
	s.Require().NoError(err)
	return doc
}

func (s *WorkflowServiceSuite) signed() *models.Document {
	doc := s.submitted()
	_, err := s.service.Sign(s.GetContext(), as(s.first), doc.ID, typed("First"))
	s.Require().NoError(err)
	doc, err = s.service.Sign(s.GetContext(), as(s.second), doc.ID, typed("Second"))
	s.Require().NoError(err)
	s.Require().Equal(models.StatusSigned, doc.Status)
	return doc
}

func (s *WorkflowServiceSuite) TestCreate() {
	doc := s.draft()
	s.Equal(models.StatusDraft, doc.Status)
	s.Regexp(regexp.MustCompile(`^LEAVE-\d{8}-[0-9A-F]{6}$`), doc.Reference)
	s.Require().Len(doc.Signatories, 2)
	s.Equal(s.first.ID, doc.Signatories[0].UserID)
	s.Equal(1, doc.Signatories[0].Order)
	s.Equal(2, doc.Signatories[1].Order)

	// drafts may be incomplete but must be well typed
	_, err := s.service.Create(s.GetContext(), as(s.creator), CreateRequest{
		DocumentTypeID: s.leave.ID, Title: "Partial", Data: map[string]interface{}{"reason": "x"},
	})
	s.NoError(err)

	_, err = s.service.Create(s.GetContext(), as(s.creator), CreateRequest{
		DocumentTypeID: s.leave.ID, Title: "Bad", Data: map[string]interface{}{"days": "many"},
	})
	s.True(ierr.IsValidation(err))

	s.leave.IsActive = false
	s.Require().NoError(s.GetRepos().DocumentTypes.Update(s.GetContext(), s.leave))
	_, err = s.service.Create(s.GetContext(), as(s.creator), CreateRequest{DocumentTypeID: s.leave.ID, Title: "Off"})
	s.True(ierr.IsInvalidOperation(err))
}

func (s *WorkflowServiceSuite) TestSetSignatoriesNormalisesOrder() {
	doc := s.draft()
	third := s.CreateUser("third", nil)

	doc, err := s.service.SetSignatories(s.GetContext(), as(s.creator), doc.ID, []SignatoryInput{
		{UserID: s.second.ID, Order: 5},
		{UserID: s.first.ID, Order: 2},
		{UserID: third.ID},
	})
	s.Require().NoError(err)
	s.Require().Len(doc.Signatories, 3)
	s.Equal(s.first.ID, doc.Signatories[0].UserID)
	s.Equal(third.ID, doc.Signatories[1].UserID)
	s.Equal(s.second.ID, doc.Signatories[2].UserID)
	for i, sg := range doc.Signatories {
		s.Equal(i+1, sg.Order)
		s.Equal(models.SignatoryPending, sg.Status)
	}

	_, err = s.service.SetSignatories(s.GetContext(), as(s.creator), doc.ID, []SignatoryInput{{UserID: s.first.ID}, {UserID: s.first.ID}})
	s.True(ierr.IsValidation(err), "duplicate user")

	_, err = s.service.SetSignatories(s.GetContext(), as(s.creator), doc.ID, []SignatoryInput{{UserID: models.NewID()}})
	s.True(ierr.IsValidation(err), "unknown user")

	third.IsActive = false
	s.Require().NoError(s.GetRepos().Users.Update(s.GetContext(), third))
	_, err = s.service.SetSignatories(s.GetContext(), as(s.creator), doc.ID, []SignatoryInput{{UserID: third.ID}})
	s.True(ierr.IsValidation(err), "inactive user")

	_, err = s.service.SetSignatories(s.GetContext(), as(s.outside), doc.ID, nil)
	s.True(ierr.IsNotFound(err), "outsiders cannot see the draft")
}

func (s *WorkflowServiceSuite) TestSubmitValidation() {
	doc, err := s.service.Create(s.GetContext(), as(s.creator), CreateRequest{
		DocumentTypeID: s.leave.ID, Title: "Incomplete", Data: map[string]interface{}{"reason": "x"},
		Signatories: []SignatoryInput{{UserID: s.first.ID}},
	})
	s.Require().NoError(err)
	_, err = s.service.Submit(s.GetContext(), as(s.creator), doc.ID)
	s.True(ierr.IsValidation(err), "required field missing")

	doc, err = s.service.Create(s.GetContext(), as(s.creator), CreateRequest{
		DocumentTypeID: s.leave.ID, Title: "Nobody signs", Data: map[string]interface{}{"reason": "x", "days": 2},
	})
	s.Require().NoError(err)
	_, err = s.service.Submit(s.GetContext(), as(s.creator), doc.ID)
	s.True(ierr.IsValidation(err), "signature required")

	_, err = s.service.Submit(s.GetContext(), as(s.first), s.draft().ID)
	s.Error(err)
}

func (s *WorkflowServiceSuite) TestSubmitNotifiesFirstSignatory() {
	doc := s.submitted()
	s.Equal(models.StatusSubmitted, doc.Status)
	s.NotNil(doc.SubmittedAt)

	items, total, err := s.GetRepos().Notifications.List(s.GetContext(), repository.NotificationFilter{UserID: s.first.ID})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(models.NotifySignatureRequested, items[0].Type)

	_, total, err = s.GetRepos().Notifications.List(s.GetContext(), repository.NotificationFilter{UserID: s.second.ID})
	s.Require().NoError(err)
	s.Zero(total, "second signer waits for the first")

	_, err = s.service.Update(s.GetContext(), as(s.creator), doc.ID, UpdateRequest{Data: map[string]interface{}{"days": 9}})
	s.True(ierr.IsInvalidOperation(err), "only drafts are editable")
}

func (s *WorkflowServiceSuite) TestSequentialSigning() {
	doc := s.submitted()

	_, err := s.service.Sign(s.GetContext(), as(s.second), doc.ID, typed("Second"))
	s.True(ierr.IsInvalidOperation(err), "not your turn")

	_, err = s.service.Sign(s.GetContext(), as(s.outside), doc.ID, typed("Nobody"))
	s.True(ierr.IsPermissionDenied(err))

	doc, err = s.service.Sign(s.GetContext(), as(s.first), doc.ID, SignRequest{
		Signature: signatures.CaptureRequest{Kind: models.SignatureTyped, TypedText: "First"},
		Comment:   "ok",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, doc.Status)
	s.Equal(models.SignatorySigned, doc.Signatories[0].Status)
	s.Equal("ok", doc.Signatories[0].Comment)
	s.Require().NotNil(doc.Signatories[0].Signature)
	s.Equal("First", doc.Signatories[0].Signature.TypedText)

	_, err = s.service.Sign(s.GetContext(), as(s.first), doc.ID, typed("Again"))
	s.True(ierr.IsInvalidOperation(err), "already signed")

	doc, err = s.service.Sign(s.GetContext(), as(s.second), doc.ID, typed("Second"))
	s.Require().NoError(err)
	s.Equal(models.StatusSigned, doc.Status)
	s.NotNil(doc.ValidatedAt)
	s.NotNil(doc.SignedAt)
	s.Require().NotNil(doc.VerificationCode)
	s.Len(*doc.VerificationCode, utils.VerificationCodeLength)
	s.NotEmpty(doc.PDFHash)

	var path []string
	for _, e := range s.GetPublisher().OfType(websocket.EventDocumentStatusChanged) {
		data := e.Event.Data.(map[string]interface{})
		path = append(path, string(data["to"].(models.DocumentStatus)))
		s.ElementsMatch([]string{s.creator.ID, s.first.ID, s.second.ID}, e.UserIDs)
	}
	s.Equal([]string{"SUBMITTED", "IN_PROGRESS", "VALIDATED", "SIGNED"}, path)

	_, total, err := s.GetRepos().Notifications.List(s.GetContext(), repository.NotificationFilter{UserID: s.creator.ID})
	s.Require().NoError(err)
	s.EqualValues(3, total, "two signed notices and one completion")
}

func (s *WorkflowServiceSuite) TestSubmitWithoutSignatoriesSeals() {
	doc, err := s.service.Create(s.GetContext(), as(s.creator), CreateRequest{DocumentTypeID: s.memo.ID, Title: "Memo"})
	s.Require().NoError(err)
	doc, err = s.service.Submit(s.GetContext(), as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSigned, doc.Status)
	s.NotNil(doc.VerificationCode)
}

func (s *WorkflowServiceSuite) TestVerify() {
	doc := s.signed()
	code := *doc.VerificationCode

	v, err := s.service.Verify(s.GetContext(), strings.ToLower(code))
	s.Require().NoError(err)
	s.Equal(doc.Reference, v.Reference)
	s.Equal("Leave request", v.DocumentType)
	s.True(v.Intact)
	s.True(v.Valid)
	s.Require().Len(v.Signatories, 2)
	s.Equal("first", v.Signatories[0].Name)
	s.NotNil(v.Signatories[0].SignedAt)

	file, err := s.service.PDF(s.GetContext(), as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.True(file.Sealed)

	tampered := append([]byte{}, file.Content...)
	tampered = append(tampered, []byte("\n%tampered")...)
	s.Require().NoError(s.GetStorage().Put(s.GetContext(), doc.PDFKey, "application/pdf", tampered))

	v, err = s.service.Verify(s.GetContext(), code)
	s.Require().NoError(err)
	s.False(v.Intact)
	s.False(v.Valid)

	_, err = s.service.Verify(s.GetContext(), "NOPE")
	s.True(ierr.IsNotFound(err))
	_, err = s.service.Verify(s.GetContext(), utils.NewVerificationCode())
	s.True(ierr.IsNotFound(err))
}

func (s *WorkflowServiceSuite) TestRejectCancelsDocument() {
	doc := s.submitted()
	_, err := s.service.Reject(s.GetContext(), as(s.second), doc.ID, ReasonRequest{Reason: "not me first"})
	s.True(ierr.IsInvalidOperation(err))

	doc, err = s.service.Reject(s.GetContext(), as(s.first), doc.ID, ReasonRequest{Reason: "Wrong dates"})
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, doc.Status)
	s.Equal("Wrong dates", doc.CancelReason)
	s.Equal(models.SignatoryRejected, doc.Signatories[0].Status)

	items, _, err := s.GetRepos().Notifications.List(s.GetContext(), repository.NotificationFilter{UserID: s.creator.ID})
	s.Require().NoError(err)
	s.Require().NotEmpty(items)
	s.Equal(models.NotifyDocumentRejected, items[0].Type)
}

func (s *WorkflowServiceSuite) TestCancel() {
	doc := s.submitted()

	_, err := s.service.Cancel(s.GetContext(), as(s.first), doc.ID, ReasonRequest{})
	s.True(ierr.IsPermissionDenied(err), "signatories cannot cancel")

	doc, err = s.service.Cancel(s.GetContext(), as(s.creator), doc.ID, ReasonRequest{Reason: "No longer needed"})
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, doc.Status)
	s.NotNil(doc.CancelledAt)

	_, err = s.service.Cancel(s.GetContext(), Actor{UserID: s.outside.ID, Manager: true}, doc.ID, ReasonRequest{})
	s.True(ierr.IsInvalidOperation(err), "cancelled is terminal")
}

func (s *WorkflowServiceSuite) TestActivateExpireAndUse() {
	doc := s.signed()
	manager := Actor{UserID: s.outside.ID, Manager: true}

	doc, err := s.service.Activate(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, doc.Status)
	s.Require().NotNil(doc.ValidUntil)
	s.WithinDuration(doc.ActivatedAt.AddDate(0, 0, 30), *doc.ValidUntil, time.Second)

	n, err := s.service.ExpireDue(s.GetContext(), time.Now().UTC())
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.service.ExpireDue(s.GetContext(), time.Now().UTC().AddDate(0, 0, 31))
	s.Require().NoError(err)
	s.Equal(1, n)

	doc, err = s.service.Get(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, doc.Status)

	_, err = s.service.MarkUsed(s.GetContext(), manager, doc.ID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *WorkflowServiceSuite) TestMarkUsed() {
	doc := s.signed()
	manager := Actor{UserID: s.outside.ID, Manager: true}

	_, err := s.service.MarkUsed(s.GetContext(), manager, doc.ID)
	s.True(ierr.IsInvalidOperation(err), "signed documents must be activated first")

	_, err = s.service.Activate(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)
	doc, err = s.service.MarkUsed(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUsed, doc.Status)
	s.NotNil(doc.UsedAt)
}

func (s *WorkflowServiceSuite) TestMarkUsedExpiresOverdueDocument() {
	doc := s.signed()
	manager := Actor{UserID: s.outside.ID, Manager: true}
	_, err := s.service.Activate(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)

	s.service.now = func() time.Time { return time.Now().UTC().AddDate(0, 2, 0) }
	_, err = s.service.MarkUsed(s.GetContext(), manager, doc.ID)
	s.True(ierr.IsInvalidOperation(err))

	doc, err = s.service.Get(s.GetContext(), manager, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, doc.Status)
}

func (s *WorkflowServiceSuite) TestVisibility() {
	doc := s.draft()

	_, err := s.service.Get(s.GetContext(), as(s.outside), doc.ID)
	s.True(ierr.IsNotFound(err))

	_, err = s.service.Get(s.GetContext(), as(s.second), doc.ID)
	s.NoError(err, "signatories see the document")

	page, err := s.service.List(s.GetContext(), as(s.outside), repository.DocumentFilter{})
	s.Require().NoError(err)
	s.Zero(page.Total)

	page, err = s.service.List(s.GetContext(), Actor{UserID: s.outside.ID, Manager: true}, repository.DocumentFilter{})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)
}

func (s *WorkflowServiceSuite) TestAwaitingFilter() {
	doc := s.submitted()

	page, err := s.service.List(s.GetContext(), as(s.first), repository.DocumentFilter{AwaitingUser: s.first.ID})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)

	page, err = s.service.List(s.GetContext(), as(s.second), repository.DocumentFilter{AwaitingUser: s.second.ID})
	s.Require().NoError(err)
	s.Zero(page.Total)

	_, err = s.service.Sign(s.GetContext(), as(s.first), doc.ID, typed("First"))
	s.Require().NoError(err)

	page, err = s.service.List(s.GetContext(), as(s.second), repository.DocumentFilter{AwaitingUser: s.second.ID})
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)
}

func (s *WorkflowServiceSuite) TestDraftPDFAndDelete() {
	doc := s.draft()

	file, err := s.service.PDF(s.GetContext(), as(s.creator), doc.ID)
	s.Require().NoError(err)
	s.False(file.Sealed)
	s.True(strings.HasPrefix(string(file.Content), "%PDF"))
	s.Equal(doc.Reference+".pdf", file.Filename)

	s.True(ierr.IsNotFound(s.service.Delete(s.GetContext(), as(s.outside), doc.ID)))
	s.NoError(s.service.Delete(s.GetContext(), as(s.creator), doc.ID))
	_, err = s.service.Get(s.GetContext(), as(s.creator), doc.ID)
	s.True(ierr.IsNotFound(err))
}
