package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

// DocumentHandler exposes document and waiver endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// List returns document metadata, optionally scoped by contact or category.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), c.Query("contact_id"), c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Upload stores a multipart file and its metadata.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file required in 'file' field"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}

	var contactID *string
	if v := c.PostForm("contact_id"); v != "" {
		contactID = &v
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := h.documents.Upload(c.Request.Context(), fileHeader.Filename, mimeType, data, contactID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// DownloadLink returns document metadata with a short-lived signed URL.
func (h *DocumentHandler) DownloadLink(c *gin.Context) {
	link, err := h.documents.DownloadLink(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download streams a document's bytes for a valid signed token. The
// token is the only credential; the route carries no session.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, file, err := h.documents.OpenByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Header("Content-Type", doc.MimeType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

// Delete removes a document and its stored file.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SignWaiver generates a signed waiver PDF for a contact.
func (h *DocumentHandler) SignWaiver(c *gin.Context) {
	var req dto.SignWaiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	doc, err := h.documents.SignWaiver(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}
