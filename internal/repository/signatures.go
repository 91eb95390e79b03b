package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type signatureRepo struct {
	db *gorm.DB
}

func (r *signatureRepo) Create(ctx context.Context, s *models.Signature) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return dbErr(err, "Signature")
	}
	return nil
}

func (r *signatureRepo) Get(ctx context.Context, id string) (*models.Signature, error) {
	var s models.Signature
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Signature")
	}
	return &s, nil
}

func (r *signatureRepo) ListSaved(ctx context.Context, userID string) ([]models.Signature, error) {
	var list []models.Signature
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND saved = ?", userID, true).
		Order("is_default DESC, created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, dbErr(err, "Signature")
	}
	return list, nil
}

func (r *signatureRepo) Update(ctx context.Context, s *models.Signature) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return dbErr(err, "Signature")
	}
	return nil
}

func (r *signatureRepo) ClearDefault(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&models.Signature{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
	if err != nil {
		return dbErr(err, "Signature")
	}
	return nil
}

func (r *signatureRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Signature{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "Signature")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "Signature")
	}
	return nil
}
