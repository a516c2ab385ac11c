package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the account endpoints. register and login are public
// and should sit behind the rate limiter passed in.
func (h *Handler) RegisterRoutes(api *echo.Group, limiter ...echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Register, limiter...)
	g.POST("/login", h.Login, limiter...)
	g.GET("/me", h.Me)
}

func respondError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInactive):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	p := auth.MustPrincipal(c)
	u, err := h.svc.GetUser(c.Request().Context(), p.ID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, u)
}
