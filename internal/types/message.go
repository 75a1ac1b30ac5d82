package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderAdmin     = "admin"
)

// Message rows are immutable once created except for the read flag.
// Ordering within a conversation is by CreatedAt.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_message_conversation_created" json:"conversation_id"`
	Conversation   *Conversation `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`
	Sender         string    `gorm:"column:sender;not null" json:"sender"`
	Content        string    `gorm:"column:content;not null" json:"content"`
	Model          string    `gorm:"column:model" json:"model,omitempty"`
	IsRead         bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"not null;default:now();index:idx_message_conversation_created" json:"created_at"`
}

func (Message) TableName() string { return "message" }

func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
