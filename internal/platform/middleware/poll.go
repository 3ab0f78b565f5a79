package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HeaderPollInterval tells polling clients how many seconds to wait before
// the next request.
const HeaderPollInterval = "X-Poll-Interval"

// IntervalFunc picks the poll interval for the caller bound to ctx.
type IntervalFunc func(ctx context.Context) time.Duration

// FixedInterval returns an IntervalFunc that ignores the caller.
func FixedInterval(d time.Duration) IntervalFunc {
	return func(context.Context) time.Duration { return d }
}

// ---------------------------------------------------------------------------
// Buffered response writer
// ---------------------------------------------------------------------------

// bufferedResponseWriter captures the response body so the ETag can be
// compared before anything reaches the client.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        *bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		writer:     w,
		buf:        &bytes.Buffer{},
		statusCode: http.StatusOK,
	}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferedResponseWriter) Flush() {}

// flushTo sends the buffered response and records its status on res so
// the request logger sees what went on the wire.
func (w *bufferedResponseWriter) flushTo(res *echo.Response) error {
	res.Status = w.statusCode
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// PollMiddleware
// ---------------------------------------------------------------------------

// PollMiddleware implements the polling contract for GET endpoints that
// dashboards refresh on a timer. Every successful response carries
// X-Poll-Interval and a weak ETag; a request whose If-None-Match matches
// gets 304 with no body.
//
// A handler may set the ETag itself when part of the body changes on every
// request (an as_of timestamp, say). Otherwise the ETag is the hash of the
// body.
func PollMiddleware(interval IntervalFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}

			res := c.Response()
			seconds := int(interval(req.Context()).Round(time.Second) / time.Second)
			res.Header().Set(HeaderPollInterval, strconv.Itoa(seconds))

			origWriter := res.Writer
			buf := newBufferedResponseWriter(origWriter)
			res.Writer = buf
			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if buf.statusCode >= 400 || buf.statusCode == http.StatusNoContent {
				return buf.flushTo(res)
			}

			res.Header().Set("Cache-Control", "private, no-cache")
			res.Header().Set("Vary", "Authorization")
			etag := res.Header().Get("ETag")
			if etag == "" {
				etag = ComputeETag(buf.buf.Bytes())
				res.Header().Set("ETag", etag)
			}

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				res.Status = http.StatusNotModified
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo(res)
		}
	}
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ComputeETag returns a weak ETag based on the MD5 hash of body.
func ComputeETag(body []byte) string {
	hash := md5.Sum(body)
	return fmt.Sprintf(`W/"%x"`, hash)
}

// etagMatch checks an If-None-Match header value against etag. Supports
// comma-separated lists and the wildcard "*".
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag {
			return true
		}
		// Weak comparison: W/"x" matches W/"x" or "x".
		if stripWeakPrefix(candidate) == stripWeakPrefix(etag) {
			return true
		}
	}
	return false
}

func stripWeakPrefix(etag string) string {
	if strings.HasPrefix(etag, `W/`) {
		return etag[2:]
	}
	return etag
}
