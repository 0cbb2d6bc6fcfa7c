package entities

import (
	"time"

	"gorm.io/gorm"
)

// Document represents one uploaded file owned by a single user.
//
// StoragePath is the stable object key in cloud storage; URL is a
// time-limited presigned download URL refreshed on each listing.
type Document struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"index" json:"user_id"`
	Title       string `gorm:"index;size:512" json:"title"`
	URL         string `gorm:"size:2048" json:"url"`
	StoragePath string `gorm:"uniqueIndex;size:1024" json:"storage_path"`
	MIMEType    string `gorm:"size:128" json:"mime_type"`
	Size        int64  `json:"size"`

	// Reading progress. One record per document, created implicitly on the
	// first position-change event. Progress is an opaque marker whose
	// semantics are owned by the reader variant that wrote it.
	Progress           string `gorm:"size:1024" json:"progress"`
	ProgressPercentage int    `gorm:"default:0" json:"progress_percentage"`
	IsFinished         bool   `gorm:"default:false" json:"is_finished"`

	User User `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
