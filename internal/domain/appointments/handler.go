package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/platform/auth"
	"github.com/consultas/consultas/internal/platform/media"
	"github.com/consultas/consultas/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.Create)
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.PUT("/appointments/:id", h.Update)
	g.DELETE("/appointments/:id", h.Delete, auth.RequireRole(accounts.RoleAdmin))

	g.POST("/appointments/:id/multimedia", h.AddMultimedia)
	g.GET("/appointments/:id/multimedia", h.ListMultimedia)
	g.GET("/appointments/:id/multimedia/:media_id/file", h.DownloadMultimedia)
	g.DELETE("/appointments/:id/multimedia/:media_id", h.DeleteMultimedia)
}

func actorFrom(c echo.Context) (Actor, error) {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return Actor{ID: userID, Role: auth.RoleFromContext(c.Request().Context())}, nil
}

func domainError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, media.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, media.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

type appointmentRequest struct {
	DoctorID    *uuid.UUID      `json:"doctor_id"`
	Type        string          `json:"type"`
	Children    json.RawMessage `json:"children"`
	Aggressor   json.RawMessage `json:"aggressor"`
	Description string          `json:"description"`
	Audio       *string         `json:"audio"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Create(c.Request().Context(), actor, CreateInput{
		DoctorID:    req.DoctorID,
		Type:        req.Type,
		Children:    req.Children,
		Aggressor:   req.Aggressor,
		Description: req.Description,
		Audio:       req.Audio,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	f := ListFilter{
		Type:   c.QueryParam("type"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		f.To = &t
	}

	items, total, err := h.svc.List(c.Request().Context(), actor, f)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Update(c.Request().Context(), actor, id, UpdateInput{
		DoctorID:    req.DoctorID,
		Type:        req.Type,
		Children:    req.Children,
		Aggressor:   req.Aggressor,
		Description: req.Description,
		Audio:       req.Audio,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddMultimedia(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	m, err := h.svc.AddMultimedia(c.Request().Context(), actor, id, fh.Filename,
		fh.Header.Get("Content-Type"), src)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) DownloadMultimedia(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	mediaID, err := uuid.Parse(c.Param("media_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid media id")
	}

	m, rc, err := h.svc.OpenMultimedia(c.Request().Context(), actor, id, mediaID)
	if err != nil {
		return domainError(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+m.FileName+`"`)
	return c.Stream(http.StatusOK, m.ContentType, rc)
}

func (h *Handler) ListMultimedia(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	items, err := h.svc.ListMultimedia(c.Request().Context(), actor, id)
	if err != nil {
		return domainError(err)
	}
	if items == nil {
		items = []*Multimedia{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteMultimedia(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	mediaID, err := uuid.Parse(c.Param("media_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid media id")
	}

	if err := h.svc.DeleteMultimedia(c.Request().Context(), actor, id, mediaID); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
