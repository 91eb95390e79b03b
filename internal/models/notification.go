package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification event types
const (
	NotifySignatureRequested = "signature.requested"
	NotifyDocumentSigned     = "document.signed"
	NotifyDocumentCompleted  = "document.completed"
	NotifyDocumentRejected   = "document.rejected"
	NotifyDocumentCancelled  = "document.cancelled"
	NotifyDocumentExpired    = "document.expired"
	NotifyDocumentActivated  = "document.activated"
)

// Notification is a persisted message for one user
type Notification struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;index:idx_notifications_user_read;not null" json:"userId"`
	Type       string     `gorm:"type:varchar(50);not null" json:"type"`
	Title      string     `gorm:"not null" json:"title"`
	Message    string     `gorm:"type:text" json:"message"`
	Data       JSONB      `gorm:"type:jsonb" json:"data,omitempty"`
	DocumentID *string    `gorm:"type:uuid;index" json:"documentId,omitempty"`
	Read       bool       `gorm:"not null;index:idx_notifications_user_read" json:"read"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns the primary key
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}
