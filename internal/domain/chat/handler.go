package chat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/consultas/consultas/internal/platform/auth"
)

// Handler serves the read-only REST surface for clients outside the live
// websocket connection.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/chat/rooms", h.ListRooms)
	g.GET("/chat/rooms/:name/messages", h.RoomMessages)
}

func (h *Handler) ListRooms(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	rooms, err := h.svc.RoomsForUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rooms == nil {
		rooms = []RoomPreview{}
	}
	return c.JSON(http.StatusOK, rooms)
}

func (h *Handler) RoomMessages(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	role := auth.RoleFromContext(c.Request().Context())

	msgs, err := h.svc.RoomMessages(c.Request().Context(), userID, role, c.Param("name"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "room not found")
		case errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if msgs == nil {
		msgs = []WireMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}
