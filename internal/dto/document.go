package dto

import (
	"time"

	"github.com/wildrock/crm-api/internal/models"
)

// DocumentDownloadResponse enriches metadata with a signed download URL.
type DocumentDownloadResponse struct {
	models.Document
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignWaiverRequest captures a waiver signature for a contact.
type SignWaiverRequest struct {
	ParticipantName string `json:"participant_name" validate:"required"`
	GuardianName    string `json:"guardian_name"`
	// SignaturePNG is the base64-encoded PNG of the drawn signature.
	SignaturePNG string `json:"signature_png" validate:"required"`
}
