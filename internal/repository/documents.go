package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kami-operation/kamiops/internal/models"
)

type documentRepo struct {
	db *gorm.DB
}

const (
	visibleToClause = `(documents.created_by = ? OR EXISTS (
		SELECT 1 FROM document_signatories vs WHERE vs.document_id = documents.id AND vs.user_id = ?))`

	// current signer is the lowest-order pending signatory
	awaitingClause = `documents.status IN ? AND EXISTS (
		SELECT 1 FROM document_signatories s
		WHERE s.document_id = documents.id AND s.user_id = ? AND s.status = ?
		AND NOT EXISTS (
			SELECT 1 FROM document_signatories p
			WHERE p.document_id = s.document_id AND p.status = ? AND p."order" < s."order"))`
)

func (r *documentRepo) preload(q *gorm.DB) *gorm.DB {
	return q.Preload("DocumentType").
		Preload("Creator").
		Preload("Signatories", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC, created_at ASC`)
		}).
		Preload("Signatories.User").
		Preload("Signatories.Signature")
}

func (r *documentRepo) Create(ctx context.Context, d *models.Document) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		signatories := d.Signatories
		if err := tx.Omit(clause.Associations).Create(d).Error; err != nil {
			return err
		}
		for i := range signatories {
			signatories[i].DocumentID = d.ID
			if err := tx.Omit("User", "Signature").Create(&signatories[i]).Error; err != nil {
				return err
			}
		}
		d.Signatories = signatories
		return nil
	})
	if err != nil {
		return dbErr(err, "Document")
	}
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	if err := r.preload(r.db.WithContext(ctx)).First(&d, "documents.id = ?", id).Error; err != nil {
		return nil, dbErr(err, "Document")
	}
	return &d, nil
}

func (r *documentRepo) GetByVerificationCode(ctx context.Context, code string) (*models.Document, error) {
	var d models.Document
	if err := r.preload(r.db.WithContext(ctx)).First(&d, "verification_code = ?", code).Error; err != nil {
		return nil, dbErr(err, "Document")
	}
	return &d, nil
}

func (r *documentRepo) filtered(ctx context.Context, f DocumentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Document{})
	if f.Search != "" {
		q = q.Where("documents.reference ILIKE ? OR documents.title ILIKE ?", like(f.Search), like(f.Search))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("documents.status IN ?", f.Statuses)
	}
	if f.DocumentTypeID != "" {
		q = q.Where("documents.document_type_id = ?", f.DocumentTypeID)
	}
	if f.CreatedBy != "" {
		q = q.Where("documents.created_by = ?", f.CreatedBy)
	}
	if f.VisibleTo != "" {
		q = q.Where(visibleToClause, f.VisibleTo, f.VisibleTo)
	}
	if f.AwaitingUser != "" {
		q = q.Where(awaitingClause,
			[]models.DocumentStatus{models.StatusSubmitted, models.StatusInProgress},
			f.AwaitingUser, models.SignatoryPending, models.SignatoryPending)
	}
	return q
}

func (r *documentRepo) List(ctx context.Context, f DocumentFilter) ([]models.Document, int64, error) {
	q := r.filtered(ctx, f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbErr(err, "Document")
	}

	var docs []models.Document
	p := f.Pagination.Normalize()
	err := r.preload(q).Order("documents.created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&docs).Error
	if err != nil {
		return nil, 0, dbErr(err, "Document")
	}
	return docs, total, nil
}

func (r *documentRepo) Update(ctx context.Context, d *models.Document) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(d).Error; err != nil {
			return err
		}
		for _, s := range d.Signatories {
			err := tx.Model(&models.Signatory{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
				"status":       s.Status,
				"signature_id": s.SignatureID,
				"signed_at":    s.SignedAt,
				"comment":      s.Comment,
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Document")
	}
	return nil
}

func (r *documentRepo) ReplaceSignatories(ctx context.Context, documentID string, list []models.Signatory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.Signatory{}).Error; err != nil {
			return err
		}
		for i := range list {
			list[i].DocumentID = documentID
			if err := tx.Omit("User", "Signature").Create(&list[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Signatory")
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Signatory{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Document{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return dbErr(err, "Document")
	}
	return nil
}

func (r *documentRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := r.preload(r.db.WithContext(ctx)).
		Where("documents.status = ? AND documents.valid_until IS NOT NULL AND documents.valid_until < ?", models.StatusActive, now).
		Order("documents.valid_until ASC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, dbErr(err, "Document")
	}
	return docs, nil
}

func (r *documentRepo) CountByDocumentType(ctx context.Context, documentTypeID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).Where("document_type_id = ?", documentTypeID).Count(&n).Error
	if err != nil {
		return 0, dbErr(err, "Document")
	}
	return n, nil
}

func (r *documentRepo) CountByStatus(ctx context.Context, visibleTo string) ([]StatusCount, error) {
	var out []StatusCount
	err := r.filtered(ctx, DocumentFilter{VisibleTo: visibleTo}).
		Select("documents.status AS key, COUNT(*) AS count").
		Group("documents.status").
		Scan(&out).Error
	if err != nil {
		return nil, dbErr(err, "Document")
	}
	return out, nil
}

func (r *documentRepo) CountByType(ctx context.Context, visibleTo string) ([]StatusCount, error) {
	var out []StatusCount
	err := r.filtered(ctx, DocumentFilter{VisibleTo: visibleTo}).
		Select("document_types.code AS key, document_types.name AS label, COUNT(*) AS count").
		Joins("JOIN document_types ON document_types.id = documents.document_type_id").
		Group("document_types.code, document_types.name").
		Order("count DESC").
		Scan(&out).Error
	if err != nil {
		return nil, dbErr(err, "Document")
	}
	return out, nil
}

func (r *documentRepo) CountByMonth(ctx context.Context, visibleTo string, since time.Time) ([]StatusCount, error) {
	var out []StatusCount
	err := r.filtered(ctx, DocumentFilter{VisibleTo: visibleTo}).
		Select("to_char(documents.created_at, 'YYYY-MM') AS key, COUNT(*) AS count").
		Where("documents.created_at >= ?", since).
		Group("key").
		Order("key").
		Scan(&out).Error
	if err != nil {
		return nil, dbErr(err, "Document")
	}
	return out, nil
}
