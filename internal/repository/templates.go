package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type templateRepo struct {
	db *gorm.DB
}

func (r *templateRepo) Create(ctx context.Context, t *models.PDFTemplate) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return dbErr(err, "Template")
	}
	return nil
}

func (r *templateRepo) Get(ctx context.Context, id string) (*models.PDFTemplate, error) {
	var t models.PDFTemplate
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Template")
	}
	return &t, nil
}

func (r *templateRepo) List(ctx context.Context, f TemplateFilter) ([]models.PDFTemplate, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.PDFTemplate{})
	if f.Search != "" {
		q = q.Where("name ILIKE ?", like(f.Search))
	}
	if f.DocumentTypeID != "" {
		q = q.Where("document_type_id = ? OR document_type_id IS NULL", f.DocumentTypeID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "Template")
	}

	var list []models.PDFTemplate
	p := f.Pagination.Normalize()
	if err := q.Order("updated_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&list).Error; err != nil {
		return nil, 0, dbErr(err, "Template")
	}
	return list, total, nil
}

func (r *templateRepo) Update(ctx context.Context, t *models.PDFTemplate) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return dbErr(err, "Template")
	}
	return nil
}

func (r *templateRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.PDFTemplate{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "Template")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "Template")
	}
	return nil
}
