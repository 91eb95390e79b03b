package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

// months covered by the activity chart
const months = 6

// Service aggregates the numbers shown on the dashboard home page
type Service struct {
	documents     repository.DocumentRepository
	notifications repository.NotificationRepository
	now           func() time.Time
	log           zerolog.Logger
}

// NewService creates a new dashboard service
func NewService(repos *repository.Repositories, log zerolog.Logger) *Service {
	return &Service{
		documents:     repos.Documents,
		notifications: repos.Notifications,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log.With().Str("service", "dashboard").Logger(),
	}
}

// Stats is the dashboard payload; charts are drawn by the client
type Stats struct {
	Total               int64                    `json:"total"`
	ByStatus            []repository.StatusCount `json:"byStatus"`
	ByType              []repository.StatusCount `json:"byType"`
	ByMonth             []repository.StatusCount `json:"byMonth"`
	PendingSignatures   int64                    `json:"pendingSignatures"`
	UnreadNotifications int64                    `json:"unreadNotifications"`
}

// Stats counts the documents visible to the user; managers see every document
func (s *Service) Stats(ctx context.Context, userID string, manager bool) (*Stats, error) {
	visibleTo := userID
	if manager {
		visibleTo = ""
	}

	byStatus, err := s.documents.CountByStatus(ctx, visibleTo)
	if err != nil {
		return nil, err
	}
	byType, err := s.documents.CountByType(ctx, visibleTo)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	byMonth, err := s.documents.CountByMonth(ctx, visibleTo, since)
	if err != nil {
		return nil, err
	}

	_, pending, err := s.documents.List(ctx, repository.DocumentFilter{
		Pagination:   repository.Pagination{PageSize: 1},
		AwaitingUser: userID,
	})
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := fillStatuses(byStatus)
	return &Stats{
		Total:               lo.SumBy(statuses, func(c repository.StatusCount) int64 { return c.Count }),
		ByStatus:            statuses,
		ByType:              lo.Ternary(byType == nil, []repository.StatusCount{}, byType),
		ByMonth:             fillMonths(byMonth, since),
		PendingSignatures:   pending,
		UnreadNotifications: unread,
	}, nil
}

// fillStatuses returns one bucket per status in lifecycle order
func fillStatuses(counts []repository.StatusCount) []repository.StatusCount {
	byKey := lo.SliceToMap(counts, func(c repository.StatusCount) (string, int64) { return c.Key, c.Count })
	return lo.Map(models.AllDocumentStatuses, func(st models.DocumentStatus, _ int) repository.StatusCount {
		return repository.StatusCount{Key: string(st), Count: byKey[string(st)]}
	})
}

// fillMonths returns one YYYY-MM bucket per month from since onwards
func fillMonths(counts []repository.StatusCount, since time.Time) []repository.StatusCount {
	byKey := lo.SliceToMap(counts, func(c repository.StatusCount) (string, int64) { return c.Key, c.Count })
	out := make([]repository.StatusCount, 0, months)
	for i := 0; i < months; i++ {
		key := since.AddDate(0, i, 0).Format("2006-01")
		out = append(out, repository.StatusCount{Key: key, Count: byKey[key]})
	}
	return out
}
