package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/dto"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/storage"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newDocumentServiceForTest(t *testing.T, maxSize int64) *DocumentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewDocumentService(store, signer, DocumentConfig{MaxFileSizeBytes: maxSize, PublicPath: "/api/v1/documents/"}, zap.NewNop())
}

func TestDocumentUploadAndOpen(t *testing.T) {
	svc := newDocumentServiceForTest(t, 1024)
	ctx := context.Background()
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 64)...)

	doc, err := svc.Upload(ctx, userActor, dto.DocumentValidID, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.MimeType)
	assert.Equal(t, int64(len(content)), doc.SizeBytes)
	require.True(t, strings.HasPrefix(doc.URL, "/api/v1/documents/"))
	token := strings.TrimPrefix(doc.URL, "/api/v1/documents/")

	file, mime, err := svc.Open(ctx, userActor, token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "image/png", mime)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, _, err = svc.Open(ctx, otherActor, token)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	admin, _, err := svc.Open(ctx, adminActor, token)
	require.NoError(t, err)
	admin.Close()

	_, _, err = svc.Open(ctx, userActor, "garbage")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestDocumentUploadRejects(t *testing.T) {
	svc := newDocumentServiceForTest(t, 32)
	ctx := context.Background()

	_, err := svc.Upload(ctx, userActor, dto.DocumentKind("selfie"), bytes.NewReader(pngHeader))
	assert.Equal(t, "kind", appErrors.FromError(err).Detail("field"))

	_, err = svc.Upload(ctx, userActor, dto.DocumentAffidavit, strings.NewReader("plain text is not allowed"))
	assert.Equal(t, "file", appErrors.FromError(err).Detail("field"))

	_, err = svc.Upload(ctx, userActor, dto.DocumentAffidavit, bytes.NewReader(nil))
	assert.Equal(t, "file", appErrors.FromError(err).Detail("field"))

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 64)...)
	_, err = svc.Upload(ctx, userActor, dto.DocumentAffidavit, bytes.NewReader(big))
	appErr := appErrors.FromError(err)
	assert.Equal(t, "file", appErr.Detail("field"))
	assert.Contains(t, appErr.Detail("reason"), "32 bytes")

	_, err = svc.Upload(ctx, nil, dto.DocumentAffidavit, bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
