package models

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// DocumentStatus is the lifecycle state of a document
type DocumentStatus string

const (
	StatusDraft      DocumentStatus = "DRAFT"
	StatusSubmitted  DocumentStatus = "SUBMITTED"
	StatusInProgress DocumentStatus = "IN_PROGRESS" // at least one signature collected
	StatusValidated  DocumentStatus = "VALIDATED"   // every signatory signed
	StatusSigned     DocumentStatus = "SIGNED"      // sealed PDF issued
	StatusActive     DocumentStatus = "ACTIVE"
	StatusExpired    DocumentStatus = "EXPIRED"
	StatusCancelled  DocumentStatus = "CANCELLED"
	StatusUsed       DocumentStatus = "USED"
)

// AllDocumentStatuses in lifecycle order
var AllDocumentStatuses = []DocumentStatus{
	StatusDraft, StatusSubmitted, StatusInProgress, StatusValidated, StatusSigned,
	StatusActive, StatusExpired, StatusCancelled, StatusUsed,
}

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:      {StatusSubmitted, StatusCancelled},
	StatusSubmitted:  {StatusInProgress, StatusValidated, StatusCancelled},
	StatusInProgress: {StatusValidated, StatusCancelled},
	StatusValidated:  {StatusSigned, StatusCancelled},
	StatusSigned:     {StatusActive, StatusCancelled},
	StatusActive:     {StatusExpired, StatusUsed, StatusCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s DocumentStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Valid reports whether s is a known status
func (s DocumentStatus) Valid() bool {
	for _, v := range AllDocumentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// SignatoryStatus tracks one signer's progress
type SignatoryStatus string

const (
	SignatoryPending  SignatoryStatus = "PENDING"
	SignatorySigned   SignatoryStatus = "SIGNED"
	SignatoryRejected SignatoryStatus = "REJECTED"
)

// Document is a filled-in instance of a DocumentType moving through the signing workflow
type Document struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Reference      string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	Title          string         `gorm:"not null" json:"title"`
	DocumentTypeID string         `gorm:"type:uuid;index;not null" json:"documentTypeId"`
	DocumentType   *DocumentType  `gorm:"foreignKey:DocumentTypeID" json:"documentType,omitempty"`
	TemplateID     *string        `gorm:"type:uuid" json:"templateId,omitempty"`
	Status         DocumentStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Data           JSONB          `gorm:"type:jsonb" json:"data"`
	CreatedBy      string         `gorm:"type:uuid;index;not null" json:"createdBy"`
	Creator        *User          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Signatories    []Signatory    `gorm:"foreignKey:DocumentID" json:"signatories"`

	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	ValidatedAt  *time.Time `json:"validatedAt,omitempty"`
	SignedAt     *time.Time `json:"signedAt,omitempty"`
	ActivatedAt  *time.Time `json:"activatedAt,omitempty"`
	ValidUntil   *time.Time `gorm:"index" json:"validUntil,omitempty"`
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancelReason,omitempty"`

	// Sealing output
	VerificationCode *string `gorm:"type:varchar(64);uniqueIndex" json:"verificationCode,omitempty"`
	PDFKey           string  `json:"-"`
	PDFHash          string  `gorm:"type:varchar(64)" json:"pdfHash,omitempty"`
	SealSignature    string  `gorm:"type:text" json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns the primary key
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = NewID()
	}
	return nil
}

// CurrentSignatory returns the lowest-order signatory that has not signed yet
func (d *Document) CurrentSignatory() *Signatory {
	SortSignatories(d.Signatories)
	for i := range d.Signatories {
		if d.Signatories[i].Status == SignatoryPending {
			return &d.Signatories[i]
		}
	}
	return nil
}

// AllSigned reports whether every signatory has signed
func (d *Document) AllSigned() bool {
	for _, s := range d.Signatories {
		if s.Status != SignatorySigned {
			return false
		}
	}
	return true
}

// SignatoryFor returns the signatory entry of a user
func (d *Document) SignatoryFor(userID string) *Signatory {
	for i := range d.Signatories {
		if d.Signatories[i].UserID == userID {
			return &d.Signatories[i]
		}
	}
	return nil
}

// Participants returns creator and signatory user IDs
func (d *Document) Participants() []string {
	ids := []string{d.CreatedBy}
	for _, s := range d.Signatories {
		if s.UserID != d.CreatedBy {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

// Signatory is one ordered signer of a document
type Signatory struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	DocumentID  string          `gorm:"type:uuid;index;not null" json:"documentId"`
	UserID      string          `gorm:"type:uuid;index;not null" json:"userId"`
	User        *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Order       int             `gorm:"not null" json:"order"`
	Label       string          `json:"label,omitempty"` // e.g. "Approver", "Director"
	Status      SignatoryStatus `gorm:"type:varchar(20);not null" json:"status"`
	SignatureID *string         `gorm:"type:uuid" json:"signatureId,omitempty"`
	Signature   *Signature      `gorm:"foreignKey:SignatureID" json:"signature,omitempty"`
	SignedAt    *time.Time      `json:"signedAt,omitempty"`
	Comment     string          `gorm:"type:text" json:"comment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Signatory) TableName() string {
	return "document_signatories"
}

// BeforeCreate assigns the primary key
func (s *Signatory) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// SortSignatories orders signers by their order field, oldest first on ties
func SortSignatories(list []Signatory) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Order != list[j].Order {
			return list[i].Order < list[j].Order
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
