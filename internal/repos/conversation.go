package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/types"
)

type ConversationRepo interface {
	// GetOrCreateBySession returns the session's conversation, creating an
	// active one on first contact.
	GetOrCreateBySession(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error)
	Touch(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) GetOrCreateBySession(ctx context.Context, tx *gorm.DB, sessionID string) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var convo types.Conversation
	err := transaction.WithContext(ctx).First(&convo, "session_id = ?", sessionID).Error
	if err == nil {
		return &convo, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	convo = types.Conversation{
		SessionID: sessionID,
		Status:    types.ConversationStatusActive,
	}
	if err := transaction.WithContext(ctx).Create(&convo).Error; err != nil {
		return nil, err
	}
	return &convo, nil
}

func (r *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(conversation).
		Update("updated_at", time.Now()).Error
}
