package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/storage"
)

// sniffLen is the number of leading bytes inspected to detect the content type.
const sniffLen = 3072

type documentStore interface {
	SaveStream(name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type urlSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (owner, relPath string, expiresAt time.Time, err error)
}

// DocumentConfig governs uploads.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	// PublicPath prefixes the returned URL, e.g. "/api/v1/documents".
	PublicPath string
}

// DocumentService stores requester uploads and hands out signed download URLs.
type DocumentService struct {
	store  documentStore
	signer urlSigner
	config DocumentConfig
	logger *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(store documentStore, signer urlSigner, config DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	config.PublicPath = strings.TrimRight(config.PublicPath, "/")
	return &DocumentService{store: store, signer: signer, config: config, logger: logger}
}

// Upload validates and stores a document for the actor.
func (s *DocumentService) Upload(ctx context.Context, actor *models.Principal, kind dto.DocumentKind, r io.Reader) (*dto.UploadedDocument, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, appErrors.Validation("kind", "is not a supported document kind")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Validation("file", "is required")
	}

	detected := mimetype.Detect(head)
	if !mimetype.EqualsAny(detected.String(), s.config.AllowedMIMEs...) {
		return nil, appErrors.Validation("file", fmt.Sprintf("type %s is not allowed", detected.String()))
	}

	name := fmt.Sprintf("%s/%s/%s%s", kind, actor.UserID, uuid.NewString(), detected.Extension())
	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.config.MaxFileSizeBytes+1)
	written, err := s.store.SaveStream(name, limited)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	if written > s.config.MaxFileSizeBytes {
		if err := s.store.Delete(name); err != nil {
			s.logger.Warn("failed to remove oversized upload", zap.String("name", name), zap.Error(err))
		}
		return nil, appErrors.Validation("file", fmt.Sprintf("must not exceed %d bytes", s.config.MaxFileSizeBytes))
	}

	token, expiresAt, err := s.signer.Generate(actor.UserID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document url")
	}
	s.logger.Info("document uploaded",
		zap.String("kind", string(kind)), zap.String("user_id", actor.UserID), zap.Int64("size", written))

	return &dto.UploadedDocument{
		Kind:      kind,
		URL:       s.config.PublicPath + "/" + token,
		MimeType:  detected.String(),
		SizeBytes: written,
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a signed token into a readable file. Only the uploader and admins may read it.
func (s *DocumentService) Open(ctx context.Context, actor *models.Principal, token string) (*os.File, string, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, "", err
	}
	owner, name, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "document link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	if owner != actor.UserID && !actor.IsAdmin() {
		return nil, "", appErrors.ErrForbidden
	}
	file, err := s.store.Open(name)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	detected, err := mimetype.DetectReader(file)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = file.Close()
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document")
	}
	return file, detected.String(), nil
}
