package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

const contactResource = "contact"

type contactStore interface {
	FindByID(ctx context.Context, id string) (*models.Contact, error)
	FindByEmail(ctx context.Context, email string) (*models.Contact, error)
	List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error)
	Create(ctx context.Context, contact *models.Contact) error
	Update(ctx context.Context, contact *models.Contact) error
	Delete(ctx context.Context, id string) error
	ListTags(ctx context.Context) ([]string, error)
}

// ContactService owns contact CRUD, tag listing, and CSV import.
type ContactService struct {
	repo      contactStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContactService builds a ContactService with sane defaults.
func NewContactService(repo contactStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ContactService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns contacts with pagination metadata.
func (s *ContactService) List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, *models.Pagination, error) {
	contacts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contacts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return contacts, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one contact by id.
func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contact")
	}
	return contact, nil
}

// Create stores a new contact.
func (s *ContactService) Create(ctx context.Context, req dto.CreateContactRequest, actor *models.JWTClaims) (*models.Contact, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}

	contact := &models.Contact{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            req.Email,
		Phone:            req.Phone,
		Organization:     req.Organization,
		ContactTypes:     pq.StringArray(req.ContactTypes),
		Tags:             pq.StringArray(req.Tags),
		Notes:            req.Notes,
		ReferredBy:       req.ReferredBy,
		MarketingConsent: req.MarketingConsent,
	}
	if contact.ContactTypes == nil {
		contact.ContactTypes = pq.StringArray{}
	}
	if contact.Tags == nil {
		contact.Tags = pq.StringArray{}
	}

	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contact")
	}

	s.emitAudit(ctx, actor, models.AuditActionContactCreate, contact.ID, nil, contact)
	return contact, nil
}

// Update replaces the mutable fields of a contact.
func (s *ContactService) Update(ctx context.Context, id string, req dto.UpdateContactRequest, actor *models.JWTClaims) (*models.Contact, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}

	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contact")
	}

	previous := *contact
	contact.FirstName = strings.TrimSpace(req.FirstName)
	contact.LastName = strings.TrimSpace(req.LastName)
	contact.Email = req.Email
	contact.Phone = req.Phone
	contact.Organization = req.Organization
	contact.ContactTypes = pq.StringArray(req.ContactTypes)
	contact.Tags = pq.StringArray(req.Tags)
	contact.Notes = req.Notes
	contact.ReferredBy = req.ReferredBy
	contact.MarketingConsent = req.MarketingConsent
	if contact.ContactTypes == nil {
		contact.ContactTypes = pq.StringArray{}
	}
	if contact.Tags == nil {
		contact.Tags = pq.StringArray{}
	}

	if err := s.repo.Update(ctx, contact); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contact")
	}

	s.emitAudit(ctx, actor, models.AuditActionContactUpdate, contact.ID, &previous, contact)
	return contact, nil
}

// Delete removes a contact by id.
func (s *ContactService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contact")
	}
	s.emitAudit(ctx, actor, models.AuditActionContactDelete, id, nil, nil)
	return nil
}

// ListTags returns every tag in use.
func (s *ContactService) ListTags(ctx context.Context) ([]string, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	return tags, nil
}

// FindOrCreateByEmail returns the contact with the given email, creating
// one when none exists. Used by the booking sync to attach attendees.
func (s *ContactService) FindOrCreateByEmail(ctx context.Context, email, fullName string) (*models.Contact, error) {
	contact, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up contact")
	}

	first, last := splitName(fullName)
	note := "Added automatically via Cal.com"
	created := &models.Contact{
		FirstName:    first,
		LastName:     last,
		Email:        &email,
		ContactTypes: pq.StringArray{"parent"},
		Tags:         pq.StringArray{},
		Notes:        &note,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contact")
	}
	return created, nil
}

// ImportCSV parses an uploaded CSV and creates one contact per valid
// row. Rows without a name are skipped and reported, not fatal.
func (s *ContactService) ImportCSV(ctx context.Context, r io.Reader, actor *models.JWTClaims) (*dto.ImportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv file is empty or unreadable")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}
	if _, hasFirst := columns["first_name"]; !hasFirst {
		if _, hasName := columns["name"]; !hasName {
			return nil, appErrors.Clone(appErrors.ErrValidation, "csv must contain a name or first_name column")
		}
	}

	result := &dto.ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		contact := contactFromRecord(columns, record)
		if contact.FirstName == "" && contact.LastName == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: name is required", line))
			continue
		}

		if err := s.repo.Create(ctx, contact); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Imported++
	}

	s.emitAudit(ctx, actor, models.AuditActionContactImport, "", nil, result)
	return result, nil
}

func contactFromRecord(columns map[string]int, record []string) *models.Contact {
	value := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	optional := func(name string) *string {
		v := value(name)
		if v == "" {
			return nil
		}
		return &v
	}

	first := value("first_name")
	last := value("last_name")
	if first == "" && last == "" {
		first, last = splitName(value("name"))
	}

	return &models.Contact{
		FirstName:    first,
		LastName:     last,
		Email:        optional("email"),
		Phone:        optional("phone"),
		Organization: optional("organization"),
		ContactTypes: pq.StringArray(splitMulti(value("contact_types"))),
		Tags:         pq.StringArray(splitMulti(value("tags"))),
		Notes:        optional("notes"),
		ReferredBy:   optional("referred_by"),
	}
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}

// splitMulti splits a multi-value cell on commas, semicolons, or pipes.
func splitMulti(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.Fields(full)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

func (s *ContactService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
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
	var resID *string
	if resourceID != "" {
		resID = &resourceID
	}
	log := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   contactResource,
		ResourceID: resID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "contact-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record contact audit", zap.Error(err))
	}
}
