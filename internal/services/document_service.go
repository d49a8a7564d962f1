package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/objectstore"
	"github.com/zipdrophq/zipdrop-backend/internal/ocr"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// minConfidence is the extractor confidence below which a document is
// rejected for manual review.
const minConfidence = 0.6

// DocumentService handles identity-document upload and OCR verification.
// The OCR backend and object store are fallible externals: their failures
// surface as ErrDependencyUnavailable and leave the document pending.
type DocumentService struct {
	store     storage.Store
	objects   objectstore.Storage
	extractor ocr.Extractor
	log       *zap.Logger
}

// NewDocumentService creates a document service.
func NewDocumentService(store storage.Store, objects objectstore.Storage, extractor ocr.Extractor, log *zap.Logger) *DocumentService {
	return &DocumentService{store: store, objects: objects, extractor: extractor, log: log}
}

// Upload stores the image and creates a pending document record.
func (s *DocumentService) Upload(ctx context.Context, partnerID string, docType models.DocumentType, data []byte, contentType string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrValidation)
	}
	partner, err := s.store.GetPartner(partnerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("documents/%s/%s/%s", partner.PartnerID, docType, uuid.NewString())
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	doc := &models.Document{
		PartnerID:  partner.PartnerID,
		Type:       docType,
		StorageKey: key,
		Status:     models.DocumentStatusPending,
	}
	return s.store.CreateDocument(doc)
}

// Verify fetches the stored image, runs OCR and records the outcome. On a
// verified Aadhaar the partner is marked verified and the masked number is
// copied to their profile.
func (s *DocumentService) Verify(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.store.GetDocument(documentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	data, err := s.objects.Fetch(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	result, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	doc.Confidence = result.Confidence
	if doc.Type == models.DocumentTypeAadhaar {
		fields := ocr.ParseAadhaar(result)
		doc.ExtractedName = fields.Name
		doc.ExtractedDOB = fields.DOB
		doc.NumberLast4 = fields.NumberLast4

		if fields.NumberLast4 == "" {
			doc.Status = models.DocumentStatusRejected
			doc.Notes = "aadhaar number not found in scan"
		} else if result.Confidence < minConfidence {
			doc.Status = models.DocumentStatusRejected
			doc.Notes = fmt.Sprintf("confidence %.2f below threshold", result.Confidence)
		} else {
			now := time.Now()
			doc.Status = models.DocumentStatusVerified
			doc.VerifiedAt = &now
		}
	} else {
		now := time.Now()
		if result.Confidence < minConfidence {
			doc.Status = models.DocumentStatusRejected
			doc.Notes = fmt.Sprintf("confidence %.2f below threshold", result.Confidence)
		} else {
			doc.Status = models.DocumentStatusVerified
			doc.VerifiedAt = &now
		}
	}

	if err := s.store.UpdateDocument(doc); err != nil {
		return nil, err
	}

	if doc.Status == models.DocumentStatusVerified && doc.Type == models.DocumentTypeAadhaar {
		partner, perr := s.store.GetPartner(doc.PartnerID)
		if perr == nil {
			partner.Verified = true
			partner.AadhaarLast4 = doc.NumberLast4
			if uerr := s.store.UpdatePartner(partner); uerr != nil {
				s.log.Warn("failed to mark partner verified", zap.String("partner_id", doc.PartnerID), zap.Error(uerr))
			}
		}
	}
	return doc, nil
}

// Get returns a document by ID.
func (s *DocumentService) Get(documentID string) (*models.Document, error) {
	doc, err := s.store.GetDocument(documentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// SignedURL returns a time-limited download link for the stored image.
func (s *DocumentService) SignedURL(ctx context.Context, documentID string, expiry time.Duration) (string, error) {
	doc, err := s.Get(documentID)
	if err != nil {
		return "", err
	}
	url, err := s.objects.SignURL(ctx, doc.StorageKey, expiry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return url, nil
}
