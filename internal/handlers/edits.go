package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/session"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validate"
)

// ColumnRequest describes one column
type ColumnRequest struct {
	Name       string  `json:"name" validate:"required,identifier"`
	Type       string  `json:"type" validate:"required"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	Comment    string  `json:"comment,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
}

func (r ColumnRequest) spec() schema.ColumnSpec {
	return schema.ColumnSpec{
		Name:       r.Name,
		Type:       r.Type,
		Nullable:   r.Nullable,
		Default:    r.Default,
		Comment:    r.Comment,
		PrimaryKey: r.PrimaryKey,
	}
}

// CreateTableRequest represents the create table request body. Existing
// registers a table that is already in the database instead of creating it.
type CreateTableRequest struct {
	Schema   string          `json:"schema,omitempty" validate:"omitempty,identifier"`
	Name     string          `json:"name" validate:"required,identifier"`
	Columns  []ColumnRequest `json:"columns" validate:"required,min=1,dive"`
	Existing bool            `json:"existing"`
}

// RenameTableRequest represents the rename table request body
type RenameTableRequest struct {
	Name string `json:"name" validate:"required,identifier"`
}

// AlterColumnRequest changes the given attributes of a column
type AlterColumnRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,identifier"`
	Type        *string `json:"type,omitempty" validate:"omitempty,min=1"`
	Nullable    *bool   `json:"nullable,omitempty"`
	Default     *string `json:"default,omitempty"`
	DropDefault bool    `json:"drop_default"`
	Comment     *string `json:"comment,omitempty"`
}

// RowRequest carries row values keyed by column name. Existing registers a
// row that is already in the database.
type RowRequest struct {
	Values   map[string]any `json:"values" validate:"required,min=1"`
	Existing bool           `json:"existing"`
}

// EditResponse is returned by every edit
type EditResponse struct {
	ID    *uuid.UUID    `json:"id,omitempty"`
	State session.State `json:"state"`
}

func edited(s *session.Session, id *uuid.UUID) EditResponse {
	return EditResponse{ID: id, State: s.State()}
}

func bindValid[T any](c echo.Context, req *T) error {
	if err := c.Bind(req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := validate.Struct(*req); err != nil {
		return BadRequest(err.Error())
	}
	return nil
}

func (h *SessionHandler) table(c echo.Context) (*session.Session, *schema.Table, error) {
	s, err := h.session(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := ParseUUID(c, "table")
	if err != nil {
		return nil, nil, err
	}
	t := s.Catalog.Table(id)
	if t == nil {
		return nil, nil, NotFound("table not found")
	}
	return s, t, nil
}

func (h *SessionHandler) column(c echo.Context) (*session.Session, *schema.Column, error) {
	s, t, err := h.table(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := ParseUUID(c, "column")
	if err != nil {
		return nil, nil, err
	}
	col := t.Column(id)
	if col == nil {
		return nil, nil, NotFound("column not found")
	}
	return s, col, nil
}

func (h *SessionHandler) row(c echo.Context) (*session.Session, *schema.Row, error) {
	s, t, err := h.table(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := ParseUUID(c, "row")
	if err != nil {
		return nil, nil, err
	}
	r := t.Row(id)
	if r == nil {
		return nil, nil, NotFound("row not found")
	}
	return s, r, nil
}

func knownColumns(t *schema.Table, values map[string]any) error {
	for name := range values {
		if t.FindColumn(name) == nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown column %q", name)
		}
	}
	return nil
}

// CreateTable creates or attaches a table
func (h *SessionHandler) CreateTable(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.CreateTable")
	defer span.End()

	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req CreateTableRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if s.Catalog.FindTable(req.Name) != nil {
		return httperror.NewHTTPErrorf(http.StatusConflict, "table %s already exists", req.Name)
	}

	specs := make([]schema.ColumnSpec, 0, len(req.Columns))
	for _, col := range req.Columns {
		specs = append(specs, col.spec())
	}

	var table *schema.Table
	if req.Existing {
		err = s.Edit(func() error {
			table = s.Catalog.AttachTable(req.Schema, req.Name, specs...)
			return nil
		})
	} else {
		table = s.Catalog.NewTable(req.Schema, req.Name, specs...)
		err = s.Execute(schema.NewCreateTable(table))
	}
	if err != nil {
		return toHTTPError(err)
	}

	h.logger.WithContext(ctx).WithField("existing", req.Existing).Infof("Added table: %s", req.Name)
	return CreatedResponse(c, edited(s, &table.ID))
}

// RenameTable renames a table
func (h *SessionHandler) RenameTable(c echo.Context) error {
	s, t, err := h.table(c)
	if err != nil {
		return err
	}
	var req RenameTableRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if other := s.Catalog.FindTable(req.Name); other != nil && other != t {
		return httperror.NewHTTPErrorf(http.StatusConflict, "table %s already exists", req.Name)
	}
	if err := s.Execute(schema.NewRenameTable(t, req.Name)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}

// DropTable drops a table
func (h *SessionHandler) DropTable(c echo.Context) error {
	s, t, err := h.table(c)
	if err != nil {
		return err
	}
	if err := s.Execute(schema.NewDropTable(t)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}

// AddColumn adds a column to a table
func (h *SessionHandler) AddColumn(c echo.Context) error {
	s, t, err := h.table(c)
	if err != nil {
		return err
	}
	var req ColumnRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if t.FindColumn(req.Name) != nil {
		return httperror.NewHTTPErrorf(http.StatusConflict, "column %s already exists", req.Name)
	}

	col := t.NewColumn(req.spec())
	if err := s.Execute(schema.NewAddColumn(col)); err != nil {
		return toHTTPError(err)
	}
	return CreatedResponse(c, edited(s, &col.ID))
}

// AlterColumn changes the attributes of a column
func (h *SessionHandler) AlterColumn(c echo.Context) error {
	s, col, err := h.column(c)
	if err != nil {
		return err
	}
	var req AlterColumnRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	var spec schema.ColumnSpec
	s.Catalog.View(func() {
		spec = col.Spec
	})
	if req.Name != nil {
		if other := col.Table().FindColumn(*req.Name); other != nil && other != col {
			return httperror.NewHTTPErrorf(http.StatusConflict, "column %s already exists", *req.Name)
		}
		spec.Name = *req.Name
	}
	if req.Type != nil {
		spec.Type = *req.Type
	}
	if req.Nullable != nil {
		spec.Nullable = *req.Nullable
	}
	if req.DropDefault {
		spec.Default = nil
	} else if req.Default != nil {
		spec.Default = req.Default
	}
	if req.Comment != nil {
		spec.Comment = *req.Comment
	}

	if err := s.Execute(schema.NewAlterColumn(col, spec)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}

// DropColumn drops a column
func (h *SessionHandler) DropColumn(c echo.Context) error {
	s, col, err := h.column(c)
	if err != nil {
		return err
	}
	if err := s.Execute(schema.NewDropColumn(col)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}

// InsertRow inserts or attaches a row
func (h *SessionHandler) InsertRow(c echo.Context) error {
	s, t, err := h.table(c)
	if err != nil {
		return err
	}
	var req RowRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := knownColumns(t, req.Values); err != nil {
		return err
	}

	var row *schema.Row
	if req.Existing {
		err = s.Edit(func() error {
			row = t.AttachRow(req.Values)
			return nil
		})
	} else {
		row = t.NewRow(req.Values)
		err = s.Execute(schema.NewInsertRow(row))
	}
	if err != nil {
		return toHTTPError(err)
	}
	return CreatedResponse(c, edited(s, &row.ID))
}

// UpdateRow changes row values
func (h *SessionHandler) UpdateRow(c echo.Context) error {
	s, row, err := h.row(c)
	if err != nil {
		return err
	}
	var req RowRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := knownColumns(row.Table(), req.Values); err != nil {
		return err
	}
	if err := s.Execute(schema.NewUpdateRow(row, req.Values)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}

// DeleteRow deletes a row
func (h *SessionHandler) DeleteRow(c echo.Context) error {
	s, row, err := h.row(c)
	if err != nil {
		return err
	}
	if err := s.Execute(schema.NewDeleteRow(row)); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, edited(s, nil))
}
