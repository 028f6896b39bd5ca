package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/export"
)

type documentStoreStub struct {
	byID    map[string]*models.Document
	created []*models.Document
	deleted []string
}

func (s *documentStoreStub) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := s.byID[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) List(ctx context.Context, contactID, category string) ([]models.Document, error) {
	return nil, nil
}

func (s *documentStoreStub) Create(ctx context.Context, doc *models.Document) error {
	s.created = append(s.created, doc)
	return nil
}

func (s *documentStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type fileStoreStub struct {
	saved   map[string][]byte
	deleted []string
}

func (s *fileStoreStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *fileStoreStub) Open(filename string) (*os.File, error) {
	if _, ok := s.saved[filename]; !ok {
		return nil, fmt.Errorf("open %s: no such file", filename)
	}
	return os.Open(os.DevNull)
}

func (s *fileStoreStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

type signerStub struct{}

func (s *signerStub) Generate(documentID, relPath string) (string, time.Time, error) {
	return documentID + ".token", time.Now().Add(time.Minute), nil
}

func (s *signerStub) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	if token == "bad" {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	return "doc-1", "2026/06/doc-1.pdf", time.Now().Add(time.Minute), nil
}

type waiverRendererStub struct {
	rendered []export.WaiverDocument
}

func (s *waiverRendererStub) Render(doc export.WaiverDocument) ([]byte, error) {
	s.rendered = append(s.rendered, doc)
	return []byte("%PDF-1.4 waiver"), nil
}

func pngSignature(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
}

func newDocumentService(store *documentStoreStub, files *fileStoreStub, waivers *waiverRendererStub, audit *auditStub, limits DocumentLimits) *DocumentService {
	return NewDocumentService(store, files, &signerStub{}, waivers, audit, limits, nil, nil)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	files := &fileStoreStub{}
	svc := newDocumentService(&documentStoreStub{}, files, nil, nil, DocumentLimits{MaxFileSizeBytes: 4})

	_, err := svc.Upload(context.Background(), "big.pdf", "application/pdf", []byte("12345"), nil, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
}

func TestUploadRejectsDisallowedMIME(t *testing.T) {
	svc := newDocumentService(&documentStoreStub{}, &fileStoreStub{}, nil, nil, DocumentLimits{
		AllowedMIMEs: []string{"application/pdf"},
	})

	_, err := svc.Upload(context.Background(), "notes.exe", "application/octet-stream", []byte("data"), nil, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestUploadStoresFileAndMetadata(t *testing.T) {
	store := &documentStoreStub{}
	files := &fileStoreStub{}
	audit := &auditStub{}
	svc := newDocumentService(store, files, nil, audit, DocumentLimits{AllowedMIMEs: []string{"application/pdf"}})

	contactID := "contact-1"
	doc, err := svc.Upload(context.Background(), "permission slip.pdf", "application/pdf", []byte("%PDF"), &contactID, testClaims())
	require.NoError(t, err)

	assert.Equal(t, models.DocumentCategoryGeneral, doc.Category)
	assert.Equal(t, int64(4), doc.SizeBytes)
	require.Len(t, store.created, 1)
	assert.Contains(t, files.saved, doc.FilePath)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentUpload, audit.logs[0].Action)
}

func TestSignWaiverStoresWaiverDocument(t *testing.T) {
	store := &documentStoreStub{}
	files := &fileStoreStub{}
	waivers := &waiverRendererStub{}
	audit := &auditStub{}
	svc := newDocumentService(store, files, waivers, audit, DocumentLimits{})

	doc, err := svc.SignWaiver(context.Background(), "contact-1", dto.SignWaiverRequest{
		ParticipantName: "Sam Alder",
		GuardianName:    "Kit Alder",
		SignaturePNG:    pngSignature(t),
	}, testClaims())
	require.NoError(t, err)

	assert.Equal(t, models.DocumentCategoryWaiver, doc.Category)
	assert.Equal(t, "application/pdf", doc.MimeType)
	require.NotNil(t, doc.ContactID)
	assert.Equal(t, "contact-1", *doc.ContactID)

	require.Len(t, waivers.rendered, 1)
	assert.Equal(t, "Sam Alder", waivers.rendered[0].ParticipantName)
	assert.NotEmpty(t, waivers.rendered[0].BodyText)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionWaiverSign, audit.logs[0].Action)
}

func TestSignWaiverRejectsNonPNGSignature(t *testing.T) {
	svc := newDocumentService(&documentStoreStub{}, &fileStoreStub{}, &waiverRendererStub{}, nil, DocumentLimits{})

	_, err := svc.SignWaiver(context.Background(), "contact-1", dto.SignWaiverRequest{
		ParticipantName: "Sam Alder",
		SignaturePNG:    base64.StdEncoding.EncodeToString([]byte("not an image")),
	}, testClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDownloadLinkSignsToken(t *testing.T) {
	store := &documentStoreStub{byID: map[string]*models.Document{
		"doc-1": {ID: "doc-1", FileName: "waiver.pdf", FilePath: "2026/06/doc-1.pdf"},
	}}
	svc := newDocumentService(store, &fileStoreStub{}, nil, nil, DocumentLimits{})

	resp, err := svc.DownloadLink(context.Background(), "doc-1", testClaims())
	require.NoError(t, err)
	assert.Equal(t, "/documents/download/doc-1.token", resp.DownloadURL)
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestOpenByTokenRejectsPathMismatch(t *testing.T) {
	store := &documentStoreStub{byID: map[string]*models.Document{
		"doc-1": {ID: "doc-1", FilePath: "2026/06/other.pdf"},
	}}
	svc := newDocumentService(store, &fileStoreStub{}, nil, nil, DocumentLimits{})

	_, _, err := svc.OpenByToken(context.Background(), "doc-1.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDeleteRemovesFileAndRow(t *testing.T) {
	store := &documentStoreStub{byID: map[string]*models.Document{
		"doc-1": {ID: "doc-1", FilePath: "2026/06/doc-1.pdf"},
	}}
	files := &fileStoreStub{}
	audit := &auditStub{}
	svc := newDocumentService(store, files, nil, audit, DocumentLimits{})

	require.NoError(t, svc.Delete(context.Background(), "doc-1", testClaims()))
	assert.Equal(t, []string{"doc-1"}, store.deleted)
	assert.Equal(t, []string{"2026/06/doc-1.pdf"}, files.deleted)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentDelete, audit.logs[0].Action)
}
