package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) CreateBatch(ctx context.Context, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&list).Error; err != nil {
		return dbErr(err, "Notification")
	}
	return nil
}

func (r *notificationRepo) List(ctx context.Context, f NotificationFilter) ([]models.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", f.UserID)
	if f.UnreadOnly {
		q = q.Where("read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "Notification")
	}

	var list []models.Notification
	p := f.Pagination.Normalize()
	if err := q.Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&list).Error; err != nil {
		return nil, 0, dbErr(err, "Notification")
	}
	return list, total, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, dbErr(err, "Notification")
	}
	return n, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND read = ?", userID, ids, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return 0, dbErr(res.Error, "Notification")
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return 0, dbErr(res.Error, "Notification")
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&models.Notification{})
	if res.Error != nil {
		return dbErr(res.Error, "Notification")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "Notification")
	}
	return nil
}
