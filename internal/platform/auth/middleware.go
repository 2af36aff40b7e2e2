package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const CaregiverIDKey contextKey = "caregiver_id"

var (
	ErrUnauthenticated = errors.New("missing or invalid token header")
	ErrExpired         = errors.New("access token has expired")
	ErrInvalid         = errors.New("token verification failed")
	ErrMissingClaim    = fmt.Errorf("%w: motherId missing in token", ErrInvalid)
)

// Claims is the payload of a caregiver credential.
type Claims struct {
	jwt.RegisteredClaims
	InternalID string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	MotherID   int64  `json:"motherId"`
}

type GateConfig struct {
	SigningKey []byte
	// Skipper reports requests that bypass verification entirely.
	Skipper func(c echo.Context) bool
}

// Verify parses a raw bearer token and returns its claims.
func Verify(tokenStr string, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.MotherID == 0 {
		return nil, ErrMissingClaim
	}
	return claims, nil
}

func bearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// Gate verifies the bearer credential on every request the skipper does not
// exempt and attaches the caregiver id to the request context.
func Gate(cfg GateConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c.Request().Header.Get("Authorization"))
			if err != nil {
				return c.JSON(StatusFor(err), map[string]string{"message": "Missing or invalid token header"})
			}

			claims, err := Verify(tokenStr, cfg.SigningKey)
			if err != nil {
				return c.JSON(StatusFor(err), map[string]string{"message": messageFor(err)})
			}

			c.Set(string(CaregiverIDKey), claims.MotherID)
			c.SetRequest(c.Request().WithContext(WithCaregiverID(c.Request().Context(), claims.MotherID)))

			return next(c)
		}
	}
}

// StatusFor maps a gate error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMissingClaim):
		return http.StatusBadRequest
	default:
		return http.StatusForbidden
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "Access token has expired"
	case errors.Is(err, ErrMissingClaim):
		return "motherId missing in token"
	default:
		return "Token verification failed"
	}
}

func WithCaregiverID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, CaregiverIDKey, id)
}

// CaregiverIDFromContext returns the verified caregiver id, if any.
func CaregiverIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CaregiverIDKey).(int64)
	return id, ok && id != 0
}
