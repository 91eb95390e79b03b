package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/testutil"
)

type DashboardServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *Service
}

func TestDashboardService(t *testing.T) {
	suite.Run(t, new(DashboardServiceSuite))
}

func (s *DashboardServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewService(s.GetRepos(), s.GetLogger())
}

func (s *DashboardServiceSuite) TestStats() {
	ctx := s.GetContext()
	repos := s.GetRepos()
	creator := s.CreateUser("creator", nil)
	signer := s.CreateUser("signer", nil)

	dt := &models.DocumentType{Code: "LEAVE", Name: "Leave", CategoryID: models.NewID(), IsActive: true}
	s.Require().NoError(repos.DocumentTypes.Create(ctx, dt))

	statuses := []models.DocumentStatus{models.StatusDraft, models.StatusDraft, models.StatusSubmitted, models.StatusSigned}
	for i, st := range statuses {
		doc := &models.Document{
			Reference:      "LEAVE-" + string(rune('A'+i)),
			Title:          "Leave",
			DocumentTypeID: dt.ID,
			Status:         st,
			CreatedBy:      creator.ID,
		}
		if st == models.StatusSubmitted {
			doc.Signatories = []models.Signatory{{UserID: signer.ID, Order: 1, Status: models.SignatoryPending}}
		}
		s.Require().NoError(repos.Documents.Create(ctx, doc))
	}
	s.Require().NoError(repos.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: signer.ID, Type: models.NotifySignatureRequested, Title: "Sign"},
	}))

	stats, err := s.service.Stats(ctx, signer.ID, false)
	s.Require().NoError(err)
	s.EqualValues(1, stats.Total, "signer only sees the document they sign")
	s.EqualValues(1, stats.PendingSignatures)
	s.EqualValues(1, stats.UnreadNotifications)
	s.Len(stats.ByStatus, len(models.AllDocumentStatuses))

	stats, err = s.service.Stats(ctx, creator.ID, true)
	s.Require().NoError(err)
	s.EqualValues(4, stats.Total)
	s.Zero(stats.PendingSignatures)

	counts := map[string]int64{}
	for _, c := range stats.ByStatus {
		counts[c.Key] = c.Count
	}
	s.EqualValues(2, counts["DRAFT"])
	s.EqualValues(1, counts["SUBMITTED"])
	s.EqualValues(1, counts["SIGNED"])
	s.Zero(counts["EXPIRED"])

	s.Require().Len(stats.ByType, 1)
	s.Equal(repository.StatusCount{Key: "LEAVE", Label: "Leave", Count: 4}, stats.ByType[0])

	s.Require().Len(stats.ByMonth, months)
	current := time.Now().UTC().Format("2006-01")
	s.Equal(current, stats.ByMonth[months-1].Key)
	s.EqualValues(4, stats.ByMonth[months-1].Count)
	s.Zero(stats.ByMonth[0].Count)
}

func (s *DashboardServiceSuite) TestFillMonthsCrossesYear() {
	since := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	out := fillMonths([]repository.StatusCount{{Key: "2026-01", Count: 3}}, since)
	s.Equal([]string{"2025-10", "2025-11", "2025-12", "2026-01", "2026-02", "2026-03"},
		[]string{out[0].Key, out[1].Key, out[2].Key, out[3].Key, out[4].Key, out[5].Key})
	s.EqualValues(3, out[3].Count)
}
