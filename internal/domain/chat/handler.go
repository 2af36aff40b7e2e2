package chat

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mhr/mhr/internal/platform/auth"
	"github.com/mhr/mhr/internal/platform/llm"
	"github.com/mhr/mhr/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the chat endpoints. ask wraps the model backed
// endpoint, typically with a rate limiter.
func (h *Handler) RegisterRoutes(g *echo.Group, ask ...echo.MiddlewareFunc) {
	g.POST("/chat", h.Ask, ask...)
	g.GET("/chat/history", h.History)
}

func (h *Handler) Ask(c echo.Context) error {
	motherID, _ := auth.CaregiverIDFromContext(c.Request().Context())

	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Valid question required (1-500 characters)"})
	}

	advice, err := h.svc.Ask(c.Request().Context(), motherID, req.Question)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": advice})
	case errors.Is(err, ErrInvalidQuestion):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Valid question required (1-500 characters)"})
	case errors.Is(err, ErrCaregiverNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Mother not found"})
	case errors.Is(err, llm.ErrResponseFormat):
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":   "Response format error",
			"message": "Could not parse medical advice",
		})
	}

	status := llm.StatusCode(err)
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	reference := fmt.Sprintf("ERR-%d", time.Now().UnixMilli())
	h.logger.Error().Err(err).
		Int64("caregiver_id", motherID).
		Str("reference", reference).
		Msg("chat request failed")
	return c.JSON(status, map[string]string{
		"error":     "Medical query processing failed",
		"action":    "Please contact support",
		"reference": reference,
	})
}

func (h *Handler) History(c echo.Context) error {
	motherID, _ := auth.CaregiverIDFromContext(c.Request().Context())

	// the full history is returned unless a page is asked for
	var pg pagination.Params
	paged := pagination.Requested(c)
	if paged {
		pg = pagination.FromContext(c)
	}

	turns, total, err := h.svc.History(c.Request().Context(), motherID, pg.Limit, pg.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not retrieve chat history"})
	}
	if turns == nil {
		turns = []*Turn{}
	}

	resp := map[string]interface{}{"success": true, "history": turns}
	if paged {
		resp["page"] = pagination.NewPage(total, pg)
	}
	return c.JSON(http.StatusOK, resp)
}
