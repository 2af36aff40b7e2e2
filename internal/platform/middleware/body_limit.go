package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

// BodyLimit caps request bodies. JSON endpoints get jsonLimit; multipart
// uploads get uploadLimit since reports arrive as scanned PDFs and photos.
// Limits are sizes such as "1M" or "512K"; a bare number is bytes.
func BodyLimit(jsonLimit, uploadLimit string) echo.MiddlewareFunc {
	jsonMax, uploadMax := parseLimit(jsonLimit), parseLimit(uploadLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := jsonMax
			if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				limit = uploadMax
			}
			if req.ContentLength > limit {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
					"success": false,
					"message": fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", limit),
				})
			}

			// Content-Length may be absent or wrong.
			req.Body = &cappedBody{rc: req.Body, left: limit}
			return next(c)
		}
	}
}

// cappedBody fails the read that would take it past its budget.
type cappedBody struct {
	rc   io.ReadCloser
	left int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, errBodyTooLarge
	}
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.rc.Read(p)
	if b.left -= int64(n); b.left < 0 {
		return 0, errBodyTooLarge
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30}, {"G", 30},
	{"MB", 20}, {"M", 20},
	{"KB", 10}, {"K", 10},
}

// parseLimit turns "1M", "512K" or "10G" into bytes. Anything unreadable is
// 1 MB.
func parseLimit(s string) int64 {
	const fallback = 1 << 20

	s = strings.ToUpper(strings.TrimSpace(s))
	var shift uint
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, shift = strings.TrimSuffix(s, u.suffix), u.shift
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n << shift
}
