package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Omit("Role").Create(u).Error; err != nil {
		return dbErr(err, "User")
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Role.Permissions").First(&u, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "User")
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Role.Permissions").
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, dbErr(err, "User")
	}
	return &u, nil
}

func (r *userRepo) GetMany(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, dbErr(err, "User")
	}
	return users, nil
}

func (r *userRepo) List(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if f.Search != "" {
		q = q.Where("username ILIKE ? OR email ILIKE ? OR name ILIKE ?", like(f.Search), like(f.Search), like(f.Search))
	}
	if f.RoleID != "" {
		q = q.Where("role_id = ?", f.RoleID)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "User")
	}

	var users []models.User
	p := f.Pagination.Normalize()
	err := q.Preload("Role").Order("created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&users).Error
	if err != nil {
		return nil, 0, dbErr(err, "User")
	}
	return users, total, nil
}

func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Omit("Role").Save(u).Error; err != nil {
		return dbErr(err, "User")
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "User")
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "User")
	}
	return nil
}

func (r *userRepo) CountByRole(ctx context.Context, roleID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("role_id = ?", roleID).Count(&n).Error; err != nil {
		return 0, dbErr(err, "User")
	}
	return n, nil
}
