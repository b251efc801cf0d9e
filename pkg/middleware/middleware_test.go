package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/context"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newServer(handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context(), Logger(testLogger()))
	e.GET("/test", handler)
	return e
}

func TestContext_SetsRequestValues(t *testing.T) {
	var requestID, userID string
	e := newServer(func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		userID = context.GetUserID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	req.Header.Set(HeaderUserID, "u-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
}

func TestContext_GeneratesRequestID(t *testing.T) {
	var requestID string
	e := newServer(func(c echo.Context) error {
		requestID = context.GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, requestID)
}

func TestError_RendersHTTPError(t *testing.T) {
	e := newServer(func(c echo.Context) error {
		return httperror.NewHTTPError(http.StatusConflict, "nothing to undo")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-2")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nothing to undo", body.Message)
	assert.Equal(t, "req-2", body.RequestID)
}

func TestError_UnknownErrorIsInternal(t *testing.T) {
	e := newServer(func(c echo.Context) error {
		return errors.New("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal Server Error", body.Message)
}

func TestError_EchoNotFound(t *testing.T) {
	e := newServer(func(c echo.Context) error { return nil })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestError_UnwrapsWrappedHTTPError(t *testing.T) {
	e := newServer(func(c echo.Context) error {
		herr := httperror.NewHTTPError(http.StatusUnprocessableEntity, "column type is required").
			AddMetaValue("command", "Create table draft")
		return errors.Wrap(herr, "save failed")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "column type is required", body.Message)
	assert.Equal(t, "Create table draft", body.Meta["command"])
}
