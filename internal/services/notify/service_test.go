package notify

import (
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/testutil"
	"github.com/kami-operation/kamiops/internal/websocket"
)

type NotifyServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *Service
}

func TestNotifyService(t *testing.T) {
	suite.Run(t, new(NotifyServiceSuite))
}

func (s *NotifyServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewService(s.GetRepos(), s.GetPublisher(), s.GetLogger())
}

func (s *NotifyServiceSuite) TestNotifyPersistsAndPublishes() {
	docID := models.NewID()
	list, err := s.service.Notify(s.GetContext(), Input{
		UserIDs:    []string{"u1", "u2", "u1", ""},
		Type:       models.NotifySignatureRequested,
		Title:      "Signature requested",
		Message:    "LEAVE-1 awaits your signature",
		Data:       map[string]interface{}{"reference": "LEAVE-1"},
		DocumentID: &docID,
	})
	s.Require().NoError(err)
	s.Len(list, 2, "recipients are deduplicated")

	events := s.GetPublisher().OfType(websocket.EventNotificationCreated)
	s.Require().Len(events, 2)
	s.Equal([]string{"u1"}, events[0].UserIDs)
	s.Equal([]string{"u2"}, events[1].UserIDs)

	n, err := s.service.UnreadCount(s.GetContext(), "u1")
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *NotifyServiceSuite) TestNotifyWithoutRecipients() {
	list, err := s.service.Notify(s.GetContext(), Input{Type: models.NotifyDocumentSigned})
	s.NoError(err)
	s.Empty(list)
	s.Empty(s.GetPublisher().Events)
}

func (s *NotifyServiceSuite) TestReadState() {
	for i := 0; i < 3; i++ {
		_, err := s.service.Notify(s.GetContext(), Input{UserIDs: []string{"u1"}, Type: models.NotifyDocumentSigned, Title: "t"})
		s.Require().NoError(err)
	}
	_, err := s.service.Notify(s.GetContext(), Input{UserIDs: []string{"u2"}, Type: models.NotifyDocumentSigned, Title: "t"})
	s.Require().NoError(err)

	page, err := s.service.List(s.GetContext(), repository.NotificationFilter{UserID: "u1"})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 3)

	n, err := s.service.MarkRead(s.GetContext(), "u1", []string{page.Items[0].ID, page.Items[0].ID})
	s.Require().NoError(err)
	s.EqualValues(1, n)

	n, err = s.service.MarkRead(s.GetContext(), "u2", []string{page.Items[1].ID})
	s.Require().NoError(err)
	s.EqualValues(0, n, "cannot mark another user's notification")

	_, err = s.service.MarkRead(s.GetContext(), "u1", nil)
	s.True(ierr.IsValidation(err))

	unread, err := s.service.List(s.GetContext(), repository.NotificationFilter{UserID: "u1", UnreadOnly: true})
	s.Require().NoError(err)
	s.EqualValues(2, unread.Total)

	n, err = s.service.MarkAllRead(s.GetContext(), "u1")
	s.Require().NoError(err)
	s.EqualValues(2, n)

	count, err := s.service.UnreadCount(s.GetContext(), "u1")
	s.Require().NoError(err)
	s.Zero(count)

	count, err = s.service.UnreadCount(s.GetContext(), "u2")
	s.Require().NoError(err)
	s.EqualValues(1, count)

	s.True(ierr.IsNotFound(s.service.Delete(s.GetContext(), "u2", page.Items[2].ID)))
	s.NoError(s.service.Delete(s.GetContext(), "u1", page.Items[2].ID))
}
