package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kami-operation/kamiops/internal/models"
)

type roleRepo struct {
	db *gorm.DB
}

func (r *roleRepo) Create(ctx context.Context, role *models.Role) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms := role.Permissions
		if err := tx.Omit("Permissions").Create(role).Error; err != nil {
			return err
		}
		if len(perms) > 0 {
			return tx.Model(role).Association("Permissions").Replace(perms)
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Role")
	}
	return nil
}

func (r *roleRepo) Get(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").First(&role, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Role")
	}
	return &role, nil
}

func (r *roleRepo) GetByCode(ctx context.Context, code string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").First(&role, "code = ?", code).Error; err != nil {
		return nil, dbErr(err, "Role")
	}
	return &role, nil
}

func (r *roleRepo) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").Order("is_system DESC, name").Find(&roles).Error; err != nil {
		return nil, dbErr(err, "Role")
	}
	return roles, nil
}

// Update saves role columns and replaces the permission set
func (r *roleRepo) Update(ctx context.Context, role *models.Role) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms := role.Permissions
		if err := tx.Omit("Permissions").Save(role).Error; err != nil {
			return err
		}
		return tx.Model(role).Association("Permissions").Replace(perms)
	})
	if err != nil {
		return dbErr(err, "Role")
	}
	return nil
}

func (r *roleRepo) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role := models.Role{ID: id}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&role)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Role")
	}
	return nil
}

type permissionRepo struct {
	db *gorm.DB
}

func (r *permissionRepo) Create(ctx context.Context, p *models.Permission) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return dbErr(err, "Permission")
	}
	return nil
}

func (r *permissionRepo) Get(ctx context.Context, id string) (*models.Permission, error) {
	var p models.Permission
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Permission")
	}
	return &p, nil
}

func (r *permissionRepo) GetByCodes(ctx context.Context, codes []string) ([]models.Permission, error) {
	var perms []models.Permission
	if len(codes) == 0 {
		return perms, nil
	}
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&perms).Error; err != nil {
		return nil, dbErr(err, "Permission")
	}
	return perms, nil
}

func (r *permissionRepo) List(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := r.db.WithContext(ctx).Order("module, code").Find(&perms).Error; err != nil {
		return nil, dbErr(err, "Permission")
	}
	return perms, nil
}

func (r *permissionRepo) Update(ctx context.Context, p *models.Permission) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return dbErr(err, "Permission")
	}
	return nil
}

func (r *permissionRepo) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Permission{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Permission")
	}
	return nil
}
