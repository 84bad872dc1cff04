package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txservice/internal/registry"
	"txservice/internal/wrangle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, bodyLimit int64) *gin.Engine {
	t.Helper()
	svc, err := wrangle.New(wrangle.Options{Registry: registry.NewSystem()})
	require.NoError(t, err)
	return NewRouter(NewHandler(svc, ""), bodyLimit)
}

func post(r http.Handler, recipe *string, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transform", strings.NewReader(string(body)))
	if recipe != nil {
		req.Header.Set(RecipeHeader, *recipe)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ptr(s string) *string { return &s }

func TestTransformMissingRecipeHeader(t *testing.T) {
	w := post(newRouter(t, 0), nil, "", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestTransformEmptyBody(t *testing.T) {
	w := post(newRouter(t, 0), ptr("uppercase :body"), "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestTransformUppercase(t *testing.T) {
	w := post(newRouter(t, 0), ptr("uppercase :body"), "text/plain", []byte("hello"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"body":"HELLO"}]`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestTransformLegacyRecipe(t *testing.T) {
	w := post(newRouter(t, 0), ptr("parse-number body"), "", []byte("42"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"body":42}]`, w.Body.String())
}

func TestTransformEmptyRecipeIsIdentity(t *testing.T) {
	w := post(newRouter(t, 0), ptr(""), "", []byte("as is"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"body":"as is"}]`, w.Body.String())
}

func TestTransformFilteredToNothing(t *testing.T) {
	w := post(newRouter(t, 0), ptr(`filter-row exp:{row.body == "drop me"} true`), "", []byte("drop me"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTransformRecipeFailure(t *testing.T) {
	w := post(newRouter(t, 0), ptr("parse-number :body"), "", []byte("abc"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var msg string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Contains(t, msg, "parse-number")
	assert.Contains(t, msg, "value 'abc' in column 'body' could not be parsed as a number")
}

func TestTransformNonFiniteNumberIsRejected(t *testing.T) {
	for _, body := range []string{"NaN", "Inf", "infinity"} {
		w := post(newRouter(t, 0), ptr("parse-number :body"), "", []byte(body))
		require.Equal(t, http.StatusBadRequest, w.Code, body)

		var msg string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg), body)
		assert.Contains(t, msg, "could not be parsed as a number", body)
	}
}

func TestTransformUnencodableResult(t *testing.T) {
	w := post(newRouter(t, 0), ptr("set-column :body exp:{double('NaN')}"), "", []byte("x"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var msg string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg)
}

func TestTransformUnknownDirective(t *testing.T) {
	w := post(newRouter(t, 0), ptr("frobnicate :body"), "", []byte("abc"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var msg string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Contains(t, msg, "frobnicate")
}

func TestTransformDeclaredCharset(t *testing.T) {
	latin1 := []byte{'c', 'a', 'f', 0xe9}
	w := post(newRouter(t, 0), ptr("uppercase :body"), "text/plain; charset=iso-8859-1", latin1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"body":"CAFÉ"}]`, w.Body.String())
}

func TestTransformInvalidUTF8(t *testing.T) {
	w := post(newRouter(t, 0), ptr("uppercase :body"), "", []byte{0xff, 0xfe, 0xfd})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestTransformUnknownCharset(t *testing.T) {
	w := post(newRouter(t, 0), ptr("uppercase :body"), "text/plain; charset=klingon", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransformBodyLimit(t *testing.T) {
	w := post(newRouter(t, 4), ptr("uppercase :body"), "", []byte("far too long"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/transform", strings.NewReader("x"))
	req.Header.Set(RecipeHeader, "trim :body")
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	newRouter(t, 0).ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, 0).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
