package pregnancy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhr/mhr/internal/platform/auth"
	"github.com/mhr/mhr/internal/platform/predictor"
	"github.com/mhr/mhr/pkg/pagination"
)

const msgNotObject = "Invalid input. Expected a JSON object."

type Handler struct {
	svc *Service
	// exposeDetails adds error text to 500 responses outside production.
	exposeDetails bool
}

func NewHandler(svc *Service, exposeDetails bool) *Handler {
	return &Handler{svc: svc, exposeDetails: exposeDetails}
}

// RegisterRoutes mounts the record endpoints. scored wraps the endpoints that
// call the scoring service, typically with a rate limiter.
func (h *Handler) RegisterRoutes(g *echo.Group, scored ...echo.MiddlewareFunc) {
	g.POST("/post-record", h.CreateRecord)
	g.GET("/records", h.ListRecords)
	g.POST("/predict", h.Predict, scored...)
	g.POST("/save-and-predict", h.SaveAndPredict, scored...)
}

// bindObject decodes the request body, which must be a JSON object.
func bindObject(c echo.Context) (map[string]interface{}, bool) {
	var body interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return nil, false
	}
	obj, ok := body.(map[string]interface{})
	return obj, ok
}

func (h *Handler) CreateRecord(c echo.Context) error {
	motherID, _ := auth.CaregiverIDFromContext(c.Request().Context())
	body, ok := bindObject(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msgNotObject})
	}

	rec, err := h.svc.CreateRecord(c.Request().Context(), motherID, body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) || errors.Is(err, ErrMissingIdentity) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	motherID, ok := auth.CaregiverIDFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusBadRequest, failure("Mother ID missing in token."))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), motherID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"records": items,
		"page":    pagination.NewPage(total, pg),
	})
}

func (h *Handler) Predict(c echo.Context) error {
	body, ok := bindObject(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, failure(msgNotObject))
	}

	result, err := h.svc.Predict(c.Request().Context(), body)
	if err != nil {
		var upstream *predictor.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode != 0 {
			resp := failure("Error from FastAPI backend")
			resp["details"] = upstream.Body
			return c.JSON(upstream.StatusCode, resp)
		}
		resp := failure("Internal server error during prediction")
		resp["error"] = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": result})
}

func (h *Handler) SaveAndPredict(c echo.Context) error {
	motherID, ok := auth.CaregiverIDFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusBadRequest, failure("Mother ID missing in token."))
	}
	body, ok := bindObject(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, failure(msgNotObject))
	}

	a, err := h.svc.SaveAndPredict(c.Request().Context(), motherID, body)
	if err != nil {
		var upstream *predictor.UpstreamError
		switch {
		case errors.Is(err, ErrMissingIdentity):
			return c.JSON(http.StatusBadRequest, failure("Mother ID missing in token."))
		case errors.As(err, &upstream) && upstream.StatusCode != 0:
			resp := failure("FastAPI error")
			resp["details"] = upstream.Body
			return c.JSON(upstream.StatusCode, resp)
		}
		resp := failure("Internal server error")
		if h.exposeDetails {
			resp["details"] = err.Error()
		}
		return c.JSON(http.StatusInternalServerError, resp)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":          true,
		"message":          "Record saved, prediction completed, explanation generated",
		"record":           a.Record,
		"prediction":       a.Prediction,
		"explanation":      a.Explanation,
		"webhookResponses": a.WebhookResponses,
	})
}

func failure(message string) map[string]interface{} {
	return map[string]interface{}{"success": false, "message": message}
}
