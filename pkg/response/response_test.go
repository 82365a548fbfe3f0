package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

func TestContentDispositionEncodesUTF8(t *testing.T) {
	header := ContentDisposition("三年甲班_student_preferences_20240301_101500.xlsx")

	assert.Contains(t, header, `attachment; filename="___`)
	assert.Contains(t, header, "filename*=UTF-8''%E4%B8%89%E5%B9%B4%E7%94%B2%E7%8F%AD_student_preferences_20240301_101500.xlsx")
}

func TestContentDispositionEscapesSpaces(t *testing.T) {
	header := ContentDisposition("class a.pdf")
	assert.Equal(t, `attachment; filename="class a.pdf"; filename*=UTF-8''class%20a.pdf`, header)
}

func TestErrorExposesDetailsAsMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.WithDetails(appErrors.ErrAlreadyReviewed, "company already reviewed (status=approved)", map[string]interface{}{"status": "approved"}))

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ALREADY_REVIEWED", body["error"]["code"])
	assert.Equal(t, "approved", body["meta"]["status"])
}

func TestAttachmentWritesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Attachment(c, "report.csv", "text/csv", []byte("a,b\n"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="report.csv"`)
}
