package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/middleware"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.PrincipalFromContext(c)
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// queryList accepts both repeated (?status=a&status=b) and comma separated (?status=a,b) values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// respond writes data together with any metadata collected on the context.
func respond(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	response.JSON(c, status, data, pagination, middleware.ExtractMeta(c))
}
