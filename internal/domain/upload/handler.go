package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mhr/mhr/internal/platform/auth"
	"github.com/mhr/mhr/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the upload endpoints. process wraps the pipeline
// endpoint, typically with a body limit and a rate limiter.
func (h *Handler) RegisterRoutes(g *echo.Group, process ...echo.MiddlewareFunc) {
	g.POST("/upload-test", h.Upload, process...)
	g.GET("/uploads", h.List)
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
	}
	motherID, ok := auth.CaregiverIDFromContext(c.Request().Context())
	if !ok || motherID <= 0 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized: motherId missing in token"})
	}

	src, err := fh.Open()
	if err != nil {
		return h.failed(c, motherID, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return h.failed(c, motherID, err)
	}

	rec, err := h.svc.Process(c.Request().Context(), motherID, File{
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get(echo.HeaderContentType),
		Data:         data,
	})
	if errors.Is(err, ErrMissingIdentity) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized: motherId missing in token"})
	}
	if err != nil {
		return h.failed(c, motherID, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":               "File uploaded, decoded, parsed, predicted, explained, and webhook notified",
		"fileRecord":            rec,
		"decodedText":           rec.DecodedText,
		"webhookResponse":       rec.WebhookResponse,
		"predictionResponse":    rec.PredictionResponse,
		"explanation":           rec.Explanation,
		"uploadWebhookResponse": rec.UploadWebhookResponse,
	})
}

func (h *Handler) failed(c echo.Context, motherID int64, err error) error {
	h.logger.Error().Err(err).Int64("caregiver_id", motherID).Msg("upload failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "File upload failed"})
}

func (h *Handler) List(c echo.Context) error {
	motherID, _ := auth.CaregiverIDFromContext(c.Request().Context())
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), motherID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*FileRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"uploads": items,
		"page":    pagination.NewPage(total, pg),
	})
}
