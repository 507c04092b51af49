package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation id between the portal, this API and its logs.
const Header = "X-Request-ID"

const (
	contextKey = "request_id"
	maxLength  = 128
)

// Middleware tags every request with an id. A caller-supplied id is kept when it is short
// printable ASCII, so ids from the portal's proxy survive into audit and notification logs.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// Value returns the id assigned to the request, or "" outside the middleware.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
