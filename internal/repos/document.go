package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Document, error)
	// ClaimNextUploaded atomically flips the oldest uploaded document to
	// loading and returns it, or nil when the queue is empty.
	ClaimNextUploaded(ctx context.Context, tx *gorm.DB) (*types.Document, error)
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MarkProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, processingError string) error
	HasProcessed(ctx context.Context, tx *gorm.DB) (bool, error)
	ListProcessed(ctx context.Context, tx *gorm.DB) ([]*types.Document, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var doc types.Document
	if err := transaction.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.Document
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) ClaimNextUploaded(ctx context.Context, tx *gorm.DB) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var claimed *types.Document
	err := transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		var doc types.Document
		if err := inner.
			Where("status = ?", types.DocStatusUploaded).
			Order("created_at ASC").
			First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		res := inner.Model(&types.Document{}).
			Where("id = ? AND status = ?", doc.ID, types.DocStatusUploaded).
			Update("status", types.DocStatusLoading)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Someone else claimed it between select and update.
			return nil
		}
		doc.Status = types.DocStatusLoading
		claimed = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *documentRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Document{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *documentRepo) MarkProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           types.DocStatusProcessed,
			"processed":        true,
			"processing_error": "",
		}).Error
}

func (r *documentRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, processingError string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           types.DocStatusFailed,
			"processed":        false,
			"processing_error": processingError,
		}).Error
}

func (r *documentRepo) HasProcessed(ctx context.Context, tx *gorm.DB) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).Model(&types.Document{}).
		Where("processed = ?", true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *documentRepo) ListProcessed(ctx context.Context, tx *gorm.DB) ([]*types.Document, error) {
	return r.ListByStatus(ctx, tx, types.DocStatusProcessed)
}
