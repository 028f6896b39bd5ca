package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/export"
)

const documentResource = "document"

// waiverBodyText is the agreement presented on every signed waiver.
const waiverBodyText = `I acknowledge that outdoor play and nature-based programming involve inherent risks, including uneven terrain, weather exposure, and contact with natural materials. I voluntarily allow the named participant to take part in programs and release the organization, its staff, and volunteers from liability for injuries arising from ordinary participation. I confirm that the participant is in suitable health for outdoor activity and that I have shared any relevant medical information with program staff.`

type documentStore interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, contactID, category string) ([]models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

type fileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, relPath string, expiresAt time.Time, err error)
}

type waiverRenderer interface {
	Render(doc export.WaiverDocument) ([]byte, error)
}

// DocumentLimits bounds uploaded files.
type DocumentLimits struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService manages document metadata, file bytes, signed download
// links, and waiver generation.
type DocumentService struct {
	repo      documentStore
	files     fileStore
	signer    downloadSigner
	waivers   waiverRenderer
	audit     auditLogger
	limits    DocumentLimits
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentService builds a DocumentService.
func NewDocumentService(repo documentStore, files fileStore, signer downloadSigner, waivers waiverRenderer, audit auditLogger, limits DocumentLimits, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if waivers == nil {
		waivers = export.NewWaiverRenderer()
	}
	if limits.MaxFileSizeBytes <= 0 {
		limits.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	return &DocumentService{
		repo:      repo,
		files:     files,
		signer:    signer,
		waivers:   waivers,
		audit:     audit,
		limits:    limits,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns document metadata, optionally scoped to a contact or category.
func (s *DocumentService) List(ctx context.Context, contactID, category string) ([]models.Document, error) {
	docs, err := s.repo.List(ctx, contactID, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Upload validates and stores an uploaded file plus its metadata row.
func (s *DocumentService) Upload(ctx context.Context, fileName, mimeType string, data []byte, contactID *string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if fileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name required")
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(data)) > s.limits.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.limits.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("mime type %q is not allowed", mimeType))
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		ContactID: contactID,
		FileName:  sanitizeFileName(fileName),
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		Category:  models.DocumentCategoryGeneral,
		CreatedAt: s.now(),
	}
	doc.UploadedBy = &actor.UserID
	doc.FilePath = filepath.Join(doc.CreatedAt.Format("2006/01"), doc.ID+filepath.Ext(doc.FileName))

	if _, err := s.files.Save(doc.FilePath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		// Best effort rollback of the orphaned file.
		if cleanupErr := s.files.Delete(doc.FilePath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("path", doc.FilePath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	s.emitAudit(ctx, actor, models.AuditActionDocumentUpload, doc.ID, nil, doc)
	return doc, nil
}

// SignWaiver renders a waiver PDF with the captured signature and stores
// it as a waiver-category document for the contact.
func (s *DocumentService) SignWaiver(ctx context.Context, contactID string, req dto.SignWaiverRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if contactID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "contact id required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waiver payload")
	}

	signature, err := decodeSignaturePNG(req.SignaturePNG)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signature must be a base64-encoded PNG")
	}

	signedAt := s.now()
	content, err := s.waivers.Render(export.WaiverDocument{
		ParticipantName: req.ParticipantName,
		GuardianName:    req.GuardianName,
		BodyText:        waiverBodyText,
		SignedAt:        signedAt,
		SignaturePNG:    signature,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render waiver")
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		ContactID: &contactID,
		FileName:  fmt.Sprintf("waiver-%s.pdf", signedAt.Format("2006-01-02")),
		MimeType:  "application/pdf",
		SizeBytes: int64(len(content)),
		Category:  models.DocumentCategoryWaiver,
		CreatedAt: signedAt,
	}
	doc.UploadedBy = &actor.UserID
	doc.FilePath = filepath.Join(signedAt.Format("2006/01"), doc.ID+".pdf")

	if _, err := s.files.Save(doc.FilePath, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store waiver")
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if cleanupErr := s.files.Delete(doc.FilePath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned waiver", zap.String("path", doc.FilePath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record waiver")
	}

	s.emitAudit(ctx, actor, models.AuditActionWaiverSign, doc.ID, nil, doc)
	return doc, nil
}

// DownloadLink returns document metadata with a short-lived signed URL.
func (s *DocumentService) DownloadLink(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DocumentDownloadResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	return &dto.DocumentDownloadResponse{
		Document:    *doc,
		DownloadURL: "/documents/download/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// OpenByToken validates a signed token and opens the referenced file.
// The token is the only credential; no session is required.
func (s *DocumentService) OpenByToken(ctx context.Context, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}

	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}

	file, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return doc, file, nil
}

// Delete removes a document row and its file bytes.
func (s *DocumentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.files.Delete(doc.FilePath); err != nil {
		s.logger.Warn("failed to remove document file", zap.String("path", doc.FilePath), zap.Error(err))
	}

	s.emitAudit(ctx, actor, models.AuditActionDocumentDelete, id, doc, nil)
	return nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.limits.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.limits.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

func decodeSignaturePNG(raw string) ([]byte, error) {
	// Accept data URLs from browser canvases as well as bare base64.
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		return nil, fmt.Errorf("not a png image")
	}
	return data, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}

func (s *DocumentService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	var oldValues, newValues []byte
	if oldValue != nil {
		oldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newValues, _ = json.Marshal(newValue)
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   documentResource,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "document-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record document audit", zap.Error(err))
	}
}
