package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/session"
)

// ParseUUID parses a UUID from a path parameter
func ParseUUID(c echo.Context, param string) (uuid.UUID, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return uuid.Nil, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a valid UUID", param)
	}

	return id, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// NotFound returns a 404 Not Found error
func NotFound(message string) error {
	return httperror.NewHTTPError(http.StatusNotFound, message)
}

// toHTTPError maps session and edit errors onto API status codes.
func toHTTPError(err error) error {
	if err == nil || httperror.IsHTTPError(err) {
		return err
	}

	var verr *edit.ValidationError
	if errors.As(err, &verr) {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, verr.Err.Error()).
			AddMetaValue("command", verr.Command.Title())
	}

	var perr *edit.PersistError
	if errors.As(err, &perr) {
		return httperror.NewHTTPError(http.StatusBadGateway, perr.Err.Error()).
			AddMetaValue("command", perr.Command.Title()).
			AddMetaValue("action", perr.Action).
			AddMetaValue("kind", perr.Kind.String())
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return httperror.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		return httperror.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, edit.ErrNotConnected):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, edit.ErrNothingToUndo),
		errors.Is(err, edit.ErrNothingToRedo),
		errors.Is(err, edit.ErrNotUndoable),
		errors.Is(err, session.ErrSaveInProgress):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, edit.ErrSaveCanceled):
		return httperror.NewHTTPError(http.StatusRequestTimeout, err.Error())
	}
	return err
}
