package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/session"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validate"
)

const defaultJournalLimit = 100

// JournalReader lists the statements a session ran.
type JournalReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.JournalEntry, error)
}

// SessionHandler handles the edit session API
type SessionHandler struct {
	manager *session.Manager
	journal JournalReader
	logger  ectologger.Logger
}

// NewSessionHandler creates a new session handler. journal may be nil.
func NewSessionHandler(manager *session.Manager, journal JournalReader, logger ectologger.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		journal: journal,
		logger:  logger,
	}
}

// OpenSessionRequest represents the open session request body
type OpenSessionRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// SessionSummary is one entry of the session list
type SessionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dirty     bool   `json:"dirty"`
	CreatedAt string `json:"created_at"`
	LastUsed  string `json:"last_used"`
}

// Register registers session routes
func (h *SessionHandler) Register(g *echo.Group) {
	g.POST("", h.Open)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Close)
	g.GET("/:id/journal", h.Journal)

	g.POST("/:id/undo", h.Undo)
	g.POST("/:id/redo", h.Redo)
	g.POST("/:id/save", h.Save)
	g.POST("/:id/reset", h.Reset)

	g.POST("/:id/tables", h.CreateTable)
	g.PATCH("/:id/tables/:table", h.RenameTable)
	g.DELETE("/:id/tables/:table", h.DropTable)

	g.POST("/:id/tables/:table/columns", h.AddColumn)
	g.PATCH("/:id/tables/:table/columns/:column", h.AlterColumn)
	g.DELETE("/:id/tables/:table/columns/:column", h.DropColumn)

	g.POST("/:id/tables/:table/rows", h.InsertRow)
	g.PATCH("/:id/tables/:table/rows/:row", h.UpdateRow)
	g.DELETE("/:id/tables/:table/rows/:row", h.DeleteRow)
}

func (h *SessionHandler) session(c echo.Context) (*session.Session, error) {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return nil, err
	}
	s, err := h.manager.Get(id)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return s, nil
}

// Open opens a new edit session
func (h *SessionHandler) Open(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Open")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req OpenSessionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if _, err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	s, err := h.manager.Open(ctx, req.Name)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to open session")
		return BadRequest(err.Error())
	}
	return CreatedResponse(c, s.State())
}

// List returns the open sessions
func (h *SessionHandler) List(c echo.Context) error {
	sessions := h.manager.List()
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			ID:        s.ID.String(),
			Name:      s.Name,
			Dirty:     s.Context.IsDirty(),
			CreatedAt: s.CreatedAt.Format(time.RFC3339),
			LastUsed:  s.LastUsed().UTC().Format(time.RFC3339),
		})
	}
	return SuccessResponse(c, out)
}

// Get returns the state of a session
func (h *SessionHandler) Get(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return SuccessResponse(c, s.State())
}

// Close discards a session and its pending commands
func (h *SessionHandler) Close(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Close")
	defer span.End()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.manager.Close(ctx, id); err != nil {
		return toHTTPError(err)
	}
	return NoContentResponse(c)
}

// Journal lists the statements the session ran, newest first
func (h *SessionHandler) Journal(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Journal")
	defer span.End()

	if h.journal == nil {
		return NotFound("statement journal is disabled")
	}
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	limit := defaultJournalLimit
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return BadRequest("limit must be a positive integer")
		}
	}

	entries, err := h.journal.ListBySession(ctx, id.String(), limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list journal entries")
		return err
	}
	return SuccessResponse(c, entries)
}

// Undo reverts the newest batch of commands
func (h *SessionHandler) Undo(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Undo(); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, s.State())
}

// Redo re-applies the newest undone batch
func (h *SessionHandler) Redo(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Redo(); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, s.State())
}

// Save persists the pending commands of a session
func (h *SessionHandler) Save(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SessionHandler.Save")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Save(ctx); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Session save failed")
		return toHTTPError(err)
	}

	h.logger.WithContext(ctx).Infof("Saved session: %s", s.ID)
	return SuccessResponse(c, s.State())
}

// Reset discards every pending command of a session
func (h *SessionHandler) Reset(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Reset(); err != nil {
		return toHTTPError(err)
	}
	return SuccessResponse(c, s.State())
}
