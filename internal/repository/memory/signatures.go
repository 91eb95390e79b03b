package memory

import (
	"context"
	"sort"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

type signatureRepo struct{ s *Store }

func (r *signatureRepo) Create(_ context.Context, sig *models.Signature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sig.ID == "" {
		sig.ID = models.NewID()
	}
	sig.CreatedAt = r.s.tick()
	sig.UpdatedAt = sig.CreatedAt
	r.s.signatures[sig.ID] = *sig
	return nil
}

func (r *signatureRepo) Get(_ context.Context, id string) (*models.Signature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.signatures[id]
	if !ok {
		return nil, notFound("Signature")
	}
	return &sig, nil
}

func (r *signatureRepo) ListSaved(_ context.Context, userID string) ([]models.Signature, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Signature{}
	for _, sig := range r.s.signatures {
		if sig.UserID == userID && sig.Saved {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *signatureRepo) Update(_ context.Context, sig *models.Signature) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.signatures[sig.ID]; !ok {
		return notFound("Signature")
	}
	sig.UpdatedAt = r.s.tick()
	r.s.signatures[sig.ID] = *sig
	return nil
}

func (r *signatureRepo) ClearDefault(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sig := range r.s.signatures {
		if sig.UserID == userID && sig.IsDefault {
			sig.IsDefault = false
			r.s.signatures[id] = sig
		}
	}
	return nil
}

func (r *signatureRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.signatures[id]; !ok {
		return notFound("Signature")
	}
	delete(r.s.signatures, id)
	return nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) CreateBatch(_ context.Context, list []models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range list {
		if list[i].ID == "" {
			list[i].ID = models.NewID()
		}
		list[i].CreatedAt = r.s.tick()
		r.s.notifications[list[i].ID] = list[i]
	}
	return nil
}

func (r *notificationRepo) List(_ context.Context, f repository.NotificationFilter) ([]models.Notification, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Notification
	for _, n := range r.s.notifications {
		if n.UserID != f.UserID || (f.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, x := range r.s.notifications {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (r *notificationRepo) markRead(userID string, match func(models.Notification) bool) int64 {
	now := r.s.tick()
	var n int64
	for id, x := range r.s.notifications {
		if x.UserID != userID || x.Read || !match(x) {
			continue
		}
		x.Read = true
		x.ReadAt = &now
		r.s.notifications[id] = x
		n++
	}
	return n
}

func (r *notificationRepo) MarkRead(_ context.Context, userID string, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.markRead(userID, func(x models.Notification) bool { return want[x.ID] }), nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.markRead(userID, func(models.Notification) bool { return true }), nil
}

func (r *notificationRepo) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	x, ok := r.s.notifications[id]
	if !ok || x.UserID != userID {
		return notFound("Notification")
	}
	delete(r.s.notifications, id)
	return nil
}
