package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, actor *models.Principal, kind dto.DocumentKind, r io.Reader) (*dto.UploadedDocument, error)
	Open(ctx context.Context, actor *models.Principal, token string) (*os.File, string, error)
}

// DocumentHandler accepts requester documents and serves them back via signed links.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler builds a new handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a supporting document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param kind formData string true "Document kind"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	kind := dto.DocumentKind(strings.ToLower(strings.TrimSpace(c.PostForm("kind"))))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	doc, err := h.service.Upload(c.Request.Context(), principalFromContext(c), kind, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Download godoc
// @Summary Download a document by signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	file, mimeType, err := h.service.Open(c.Request.Context(), principalFromContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", path.Base(info.Name())))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, file, nil)
}
