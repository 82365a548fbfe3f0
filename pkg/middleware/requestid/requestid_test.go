package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return seen, w.Header().Get(Header)
}

func TestMiddlewareKeepsInboundID(t *testing.T) {
	seen, echoed := serve(t, "abc-123")
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", echoed)
}

func TestMiddlewareReplacesMissingOrUnsafeID(t *testing.T) {
	for _, inbound := range []string{"", "has space", strings.Repeat("x", 200)} {
		seen, echoed := serve(t, inbound)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, inbound)
		assert.Equal(t, seen, echoed)
	}
}
