package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kanban/internal/session"
)

// WSHandler upgrades a request into a live board session.
type WSHandler struct {
	ctx      context.Context
	deps     session.Deps
	settings session.Settings
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewWSHandler serves sessions until ctx is done.
func NewWSHandler(ctx context.Context, deps session.Deps, settings session.Settings) *WSHandler {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		ctx:      ctx,
		deps:     deps,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Serve opens the session before upgrading so access errors are plain HTTP responses
func (h *WSHandler) Serve(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := paramID(c, "id", "board")
	if !ok {
		return
	}

	s := session.New(h.ctx, userID, boardID, h.deps, h.settings)
	if err := s.Open(c.Request.Context()); err != nil {
		s.Close()
		if errors.Is(err, session.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.log.WithError(err).Warn("websocket upgrade failed")
		s.Close()
		return
	}
	s.Serve(conn)
}
