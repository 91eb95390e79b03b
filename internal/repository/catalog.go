package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type categoryRepo struct {
	db *gorm.DB
}

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Omit("Parent").Create(c).Error; err != nil {
		return dbErr(err, "Category")
	}
	return nil
}

func (r *categoryRepo) Get(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Preload("Parent").First(&c, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Category")
	}
	return &c, nil
}

func (r *categoryRepo) List(ctx context.Context, f CategoryFilter) ([]models.Category, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Category{})
	if f.Search != "" {
		q = q.Where("code ILIKE ? OR name ILIKE ?", like(f.Search), like(f.Search))
	}
	if f.ParentID != "" {
		q = q.Where("parent_id = ?", f.ParentID)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "Category")
	}

	var list []models.Category
	p := f.Pagination.Normalize()
	if err := q.Order("name").Offset(p.Offset()).Limit(p.PageSize).Find(&list).Error; err != nil {
		return nil, 0, dbErr(err, "Category")
	}
	return list, total, nil
}

func (r *categoryRepo) Update(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Omit("Parent").Save(c).Error; err != nil {
		return dbErr(err, "Category")
	}
	return nil
}

func (r *categoryRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "Category")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "Category")
	}
	return nil
}

func (r *categoryRepo) CountChildren(ctx context.Context, id string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).Where("parent_id = ?", id).Count(&n).Error; err != nil {
		return 0, dbErr(err, "Category")
	}
	return n, nil
}

type documentTypeRepo struct {
	db *gorm.DB
}

func (r *documentTypeRepo) Create(ctx context.Context, d *models.DocumentType) error {
	if err := r.db.WithContext(ctx).Omit("Category").Create(d).Error; err != nil {
		return dbErr(err, "Document type")
	}
	return nil
}

func (r *documentTypeRepo) Get(ctx context.Context, id string) (*models.DocumentType, error) {
	var d models.DocumentType
	if err := r.db.WithContext(ctx).Preload("Category").First(&d, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Document type")
	}
	return &d, nil
}

func (r *documentTypeRepo) List(ctx context.Context, f DocumentTypeFilter) ([]models.DocumentType, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.DocumentType{})
	if f.Search != "" {
		q = q.Where("code ILIKE ? OR name ILIKE ?", like(f.Search), like(f.Search))
	}
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "Document type")
	}

	var list []models.DocumentType
	p := f.Pagination.Normalize()
	if err := q.Preload("Category").Order("name").Offset(p.Offset()).Limit(p.PageSize).Find(&list).Error; err != nil {
		return nil, 0, dbErr(err, "Document type")
	}
	return list, total, nil
}

func (r *documentTypeRepo) Update(ctx context.Context, d *models.DocumentType) error {
	if err := r.db.WithContext(ctx).Omit("Category").Save(d).Error; err != nil {
		return dbErr(err, "Document type")
	}
	return nil
}

func (r *documentTypeRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.DocumentType{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "Document type")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "Document type")
	}
	return nil
}

func (r *documentTypeRepo) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.DocumentType{}).Where("category_id = ?", categoryID).Count(&n).Error
	if err != nil {
		return 0, dbErr(err, "Document type")
	}
	return n, nil
}
