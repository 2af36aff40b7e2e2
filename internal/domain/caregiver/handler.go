package caregiver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the two public account endpoints.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/reg-mother", h.Register)
	g.POST("/motherlogin", h.Login)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	_, err := h.svc.Register(c.Request().Context(), req)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, map[string]string{"message": "Mother registered successfully"})
	case errors.Is(err, ErrPasswordMismatch):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Passwords do not match"})
	case errors.Is(err, ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	motherID, err := ParseMotherID(req.MotherID.String())
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Mother not found"})
	}

	token, err := h.svc.Login(c.Request().Context(), motherID, req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"message": "Login successful", "token": token})
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Mother not found"})
	case errors.Is(err, ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
