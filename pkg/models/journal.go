package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// JournalEntry is one statement executed while saving a session.
type JournalEntry struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	SessionID   string               `db:"session_id" json:"session_id"`
	Purpose     string               `db:"purpose" json:"purpose"`
	Description string               `db:"description" json:"description"`
	Statement   string               `db:"statement" json:"statement"`
	Args        database.JSON[[]any] `db:"args" json:"args"`
	DurationMS  int64                `db:"duration_ms" json:"duration_ms"`
	Error       *string              `db:"error" json:"error,omitempty"`
	ExecutedAt  time.Time            `db:"executed_at" json:"executed_at"`
}
