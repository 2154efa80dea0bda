package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"schemacanvas-backend/pkg/auth"
	apperrors "schemacanvas-backend/pkg/errors"
)

// RoomAuthorizer decides whether a user may join a project's room. Any role
// on the project suffices; viewers receive events even though they cannot
// save.
type RoomAuthorizer interface {
	AuthorizeRoom(ctx context.Context, projectID, userID string) error
}

// Server upgrades HTTP requests to websocket connections and attaches them to
// the hub.
type Server struct {
	hub        *Hub
	authorizer RoomAuthorizer
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer creates a websocket server.
func NewServer(hub *Hub, authorizer RoomAuthorizer, logger *zap.Logger) *Server {
	return &Server{
		hub:        hub,
		authorizer: authorizer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens at the CORS layer in front of the
			// upgrade; the relay accepts any origin that made it through.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleConnection is the GET /ws?project=<id> endpoint. Authentication
// middleware has already placed the user in the request context.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		http.Error(w, "missing project parameter", http.StatusBadRequest)
		return
	}

	if err := s.authorizer.AuthorizeRoom(r.Context(), projectID, user.UserID); err != nil {
		status := http.StatusForbidden
		if appErr := apperrors.GetAppError(err); appErr != nil {
			status = appErr.HTTPStatus
		}
		http.Error(w, "access denied", status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return
	}

	client := NewClient(user.UserID, projectID, s.hub, conn, s.logger)
	client.Start()
}
