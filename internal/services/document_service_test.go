package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/ocr"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
)

// fakeObjectStore keeps uploads in a map.
type fakeObjectStore struct {
	objects map[string][]byte
	fail    bool
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.fail {
		return errors.New("bucket unreachable")
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Fetch(_ context.Context, key string) ([]byte, error) {
	if f.fail {
		return nil, errors.New("bucket unreachable")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (f *fakeObjectStore) SignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.fail {
		return "", errors.New("bucket unreachable")
	}
	return fmt.Sprintf("https://objects.test/%s", key), nil
}

// fakeExtractor returns a canned OCR result.
type fakeExtractor struct {
	result *ocr.Result
	err    error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (*ocr.Result, error) {
	return f.result, f.err
}

func TestDocumentUploadAndVerifyAadhaar(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjectStore()
	extractor := &fakeExtractor{result: &ocr.Result{
		Text:       "Name: Ravi Kumar\nDOB: 01/01/1990\n1234 5678 9012",
		Confidence: 0.92,
	}}
	svc := NewDocumentService(store, objects, extractor, testLogger())
	partner := newTestPartner(t, store)
	partner.Verified = false
	require.NoError(t, store.UpdatePartner(partner))

	doc, err := svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, []byte("scan"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, doc.Status)
	assert.Contains(t, doc.StorageKey, partner.PartnerID)

	doc, err = svc.Verify(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusVerified, doc.Status)
	assert.Equal(t, "Ravi Kumar", doc.ExtractedName)
	assert.Equal(t, "9012", doc.NumberLast4)
	require.NotNil(t, doc.VerifiedAt)

	// Verification flows through to the partner profile.
	updated, err := store.GetPartner(partner.PartnerID)
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Equal(t, "9012", updated.AadhaarLast4)
}

func TestDocumentVerifyRejectsLowConfidence(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjectStore()
	extractor := &fakeExtractor{result: &ocr.Result{
		Text:       "1234 5678 9012",
		Confidence: 0.3,
	}}
	svc := NewDocumentService(store, objects, extractor, testLogger())
	partner := newTestPartner(t, store)
	partner.Verified = false
	require.NoError(t, store.UpdatePartner(partner))

	doc, err := svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, []byte("blurry"), "image/jpeg")
	require.NoError(t, err)

	doc, err = svc.Verify(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRejected, doc.Status)
	assert.Contains(t, doc.Notes, "confidence")

	updated, err := store.GetPartner(partner.PartnerID)
	require.NoError(t, err)
	assert.False(t, updated.Verified)
}

func TestDocumentVerifyRejectsMissingNumber(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjectStore()
	extractor := &fakeExtractor{result: &ocr.Result{
		Text:       "Name: Ravi Kumar",
		Confidence: 0.95,
	}}
	svc := NewDocumentService(store, objects, extractor, testLogger())
	partner := newTestPartner(t, store)

	doc, err := svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, []byte("scan"), "image/jpeg")
	require.NoError(t, err)

	doc, err = svc.Verify(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRejected, doc.Status)
}

func TestDocumentUploadValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewDocumentService(store, newFakeObjectStore(), &fakeExtractor{}, testLogger())

	_, err := svc.Upload(context.Background(), "PTR-missing", models.DocumentTypeAadhaar, []byte("scan"), "image/jpeg")
	assert.ErrorIs(t, err, ErrPartnerNotFound)

	partner := newTestPartner(t, store)
	_, err = svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, nil, "image/jpeg")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDocumentExternalFailuresAreDependencyErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjectStore()
	svc := NewDocumentService(store, objects, &fakeExtractor{err: errors.New("ocr down")}, testLogger())
	partner := newTestPartner(t, store)

	doc, err := svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, []byte("scan"), "image/jpeg")
	require.NoError(t, err)

	// OCR backend failure leaves the document pending.
	_, err = svc.Verify(context.Background(), doc.DocumentID)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	current, err := svc.Get(doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, current.Status)

	// Object store failure blocks upload entirely.
	objects.fail = true
	_, err = svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeAadhaar, []byte("scan"), "image/jpeg")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	_, err = svc.SignedURL(context.Background(), doc.DocumentID, time.Minute)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestDocumentSignedURL(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := newFakeObjectStore()
	svc := NewDocumentService(store, objects, &fakeExtractor{}, testLogger())
	partner := newTestPartner(t, store)

	doc, err := svc.Upload(context.Background(), partner.PartnerID, models.DocumentTypeLicense, []byte("scan"), "image/jpeg")
	require.NoError(t, err)

	url, err := svc.SignedURL(context.Background(), doc.DocumentID, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, doc.StorageKey)

	_, err = svc.SignedURL(context.Background(), "DOC-missing", time.Minute)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
