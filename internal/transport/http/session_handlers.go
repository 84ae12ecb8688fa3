package http

import (
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/store"
	"github.com/vovakirdan/wiredraw-server/internal/utils"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionHandlers serves the page routes around a room.
type SessionHandlers struct {
	store     store.SessionStore
	staticDir string
	log       *zerolog.Logger
}

// NewSessionHandlers creates a new session handlers instance.
func NewSessionHandlers(st store.SessionStore, staticDir string, logger *zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		store:     st,
		staticDir: staticDir,
		log:       logger,
	}
}

// Provision creates a new room and redirects to it.
// GET /
func (h *SessionHandlers) Provision(c *gin.Context) {
	roomID := utils.NewRoomID()

	// The real host is recorded once the first connection joins.
	if err := h.store.CreateOrUpdateSession(c.Request.Context(), roomID, core.NoHost); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to record new session")
	} else {
		h.log.Info().Str("room_id", roomID).Msg("session provisioned")
	}

	c.Redirect(http.StatusFound, "/s/"+roomID)
}

// Shell serves the client page for a room.
// GET /s/:roomId
func (h *SessionHandlers) Shell(c *gin.Context) {
	if !roomIDPattern.MatchString(c.Param("roomId")) {
		c.String(http.StatusNotFound, "room not found")
		return
	}
	c.File(filepath.Join(h.staticDir, "index.html"))
}
