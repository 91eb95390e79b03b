package notify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/metrics"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/websocket"
)

// Service persists notifications and pushes them to connected clients
type Service struct {
	notifications repository.NotificationRepository
	publisher     websocket.Publisher
	log           zerolog.Logger
}

// NewService creates a new notification service
func NewService(repos *repository.Repositories, publisher websocket.Publisher, log zerolog.Logger) *Service {
	return &Service{
		notifications: repos.Notifications,
		publisher:     publisher,
		log:           log.With().Str("service", "notify").Logger(),
	}
}

// Input is one message fanned out to several users
type Input struct {
	UserIDs    []string
	Type       string
	Title      string
	Message    string
	Data       map[string]interface{}
	DocumentID *string
}

// Notify stores one row per recipient and publishes notification.created to each
func (s *Service) Notify(ctx context.Context, in Input) ([]models.Notification, error) {
	recipients := lo.Uniq(lo.Compact(in.UserIDs))
	if len(recipients) == 0 {
		return nil, nil
	}

	list := lo.Map(recipients, func(userID string, _ int) models.Notification {
		return models.Notification{
			ID:         models.NewID(),
			UserID:     userID,
			Type:       in.Type,
			Title:      in.Title,
			Message:    in.Message,
			Data:       models.JSONB(in.Data),
			DocumentID: in.DocumentID,
		}
	})
	if err := s.notifications.CreateBatch(ctx, list); err != nil {
		return nil, err
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(in.Type).Add(float64(len(list)))

	for _, n := range list {
		ev := websocket.NewEvent(websocket.EventNotificationCreated, n)
		if err := s.publisher.Publish(ctx, []string{n.UserID}, ev); err != nil {
			s.log.Warn().Err(err).Str("user_id", n.UserID).Str("type", n.Type).Msg("failed to publish notification")
		}
	}
	s.log.Debug().Str("type", in.Type).Int("recipients", len(list)).Msg("notifications created")
	return list, nil
}

func (s *Service) List(ctx context.Context, f repository.NotificationFilter) (repository.Page[models.Notification], error) {
	items, total, err := s.notifications.List(ctx, f)
	if err != nil {
		return repository.Page[models.Notification]{}, err
	}
	return repository.NewPage(items, total, f.Pagination), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

// MarkRead marks the given notifications of the user as read
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return 0, ierr.NewError("no notification ids").
			WithHint("Select at least one notification").
			Mark(ierr.ErrValidation)
	}
	return s.notifications.MarkRead(ctx, userID, ids)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.notifications.Delete(ctx, userID, id)
}
