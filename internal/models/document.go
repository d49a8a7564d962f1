package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentType names the kind of identity document uploaded.
type DocumentType string

const (
	DocumentTypeAadhaar DocumentType = "aadhaar"
	DocumentTypeLicense DocumentType = "driving_license"
)

// DocumentStatus is the verification state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// Document is an uploaded identity document and its OCR verification result.
// The raw image lives in object storage; only the storage key and the
// extracted fields are persisted here.
type Document struct {
	gorm.Model

	DocumentID string         `json:"document_id" gorm:"uniqueIndex"`
	PartnerID  string         `json:"partner_id" gorm:"index;not null"`
	Type       DocumentType   `json:"type" gorm:"not null"`
	StorageKey string         `json:"-" gorm:"not null"`
	Status     DocumentStatus `json:"status" gorm:"default:pending"`

	ExtractedName string     `json:"extracted_name"`
	ExtractedDOB  string     `json:"extracted_dob"`
	NumberLast4   string     `json:"number_last4"` // last 4 digits only at rest
	Confidence    float64    `json:"confidence"`
	Notes         string     `json:"notes"`
	VerifiedAt    *time.Time `json:"verified_at"`
}

// BeforeCreate generates the DocumentID when unset.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.DocumentID == "" {
		d.DocumentID = GenerateID("DOC")
	}
	return nil
}
