package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

func TestJSONDropsEmptyMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, map[string]string{"plot_id": "rb-l1-k1"}, nil, map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotContains(t, w.Body.String(), "meta")
}

func TestErrorHidesUntypedCauses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: relation \"plots\" does not exist"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.Len(t, c.Errors, 1)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Error(c, appErrors.InvalidTransition("rejected", "approved"))
	require.Equal(t, http.StatusConflict, w.Code)

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)
	assert.Equal(t, "approved", body.Error.Details["to"])
}
