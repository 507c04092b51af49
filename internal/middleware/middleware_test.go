package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

type authenticatorStub struct {
	principals map[string]*models.Principal
}

func (a authenticatorStub) Authenticate(token string) (*models.Principal, error) {
	if p, ok := a.principals[token]; ok {
		return p, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditRecorderStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditRecorderStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	path   string
	status int
}

func (o *observerStub) ObserveHTTPRequest(_, path string, status int, _ time.Duration) {
	o.path = path
	o.status = status
}

func newAuth() authenticatorStub {
	return authenticatorStub{principals: map[string]*models.Principal{
		"admin-token": {UserID: "admin-1", Role: models.RoleAdmin},
		"user-token":  {UserID: "user-1", Role: models.RoleUser},
	}}
}

func perform(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(newAuth()), func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFromContext(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "bogus").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", "user-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", JWT(newAuth()), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/users/:userId", JWT(newAuth()), RBAC(string(models.RoleAdmin), "SELF"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/admin", "admin-token").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", "user-token").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/users/user-1", "user-token").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/users/user-2", "user-token").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/open", "").Code)
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditRecorderStub{}
	r := gin.New()
	r.GET("/exports/:kind", JWT(newAuth()), Audit(recorder, nil, models.AuditActionExport, "export", "kind"), func(c *gin.Context) {
		if c.Param("kind") == "broken" {
			response.Error(c, appErrors.ErrInternal)
			return
		}
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/exports/plots?format=csv", "admin-token").Code)
	require.Equal(t, http.StatusInternalServerError, perform(r, http.MethodGet, "/exports/broken", "admin-token").Code)

	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionExport, log.Action)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "admin-1", *log.UserID)
	require.NotNil(t, log.ResourceID)
	assert.Equal(t, "plots", *log.ResourceID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(log.NewValues, &body))
	assert.Equal(t, "format=csv", body["query"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/plots/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/plots/rb-l1-k1", "")
	assert.Equal(t, "/plots/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	perform(r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.Nil(t, ExtractMeta(c))
	SetWarning(c, "")
	assert.Nil(t, ExtractMeta(c))

	SetWarning(c, "action completed but notification failed")
	SetMeta(c, MetaRegistered, false)
	meta := ExtractMeta(c)
	assert.Equal(t, "action completed but notification failed", meta[MetaWarning])
	assert.Equal(t, false, meta[MetaRegistered])
}
