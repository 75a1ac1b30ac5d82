package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document lifecycle. A document moves strictly forward through the pipeline
// states and ends in processed or failed; failures record ProcessingError.
const (
	DocStatusUploaded  = "uploaded"
	DocStatusLoading   = "loading"
	DocStatusChunking  = "chunking"
	DocStatusEmbedding = "embedding"
	DocStatusProcessed = "processed"
	DocStatusFailed    = "failed"
)

const (
	DocTypePDF      = "pdf"
	DocTypeText     = "txt"
	DocTypeMarkdown = "md"
	DocTypeWord     = "docx"
)

type Document struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	FilePath        string         `gorm:"column:file_path;not null" json:"file_path"`
	FileType        string         `gorm:"column:file_type;not null" json:"file_type"`
	Status          string         `gorm:"column:status;not null;default:'uploaded';index" json:"status"`
	Processed       bool           `gorm:"column:processed;not null;default:false" json:"processed"`
	ProcessingError string         `gorm:"column:processing_error" json:"processing_error,omitempty"`
	Meta            datatypes.JSON `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

// BeforeCreate assigns an id client-side so the sqlite driver, which has no
// uuid_generate_v4, produces valid rows too.
func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// AllowedFileType reports whether the declared upload type is one the
// ingestion pipeline can extract text from. Rejection happens before any
// processing is enqueued.
func AllowedFileType(fileType string) bool {
	switch fileType {
	case DocTypePDF, DocTypeText, DocTypeMarkdown, DocTypeWord:
		return true
	default:
		return false
	}
}
