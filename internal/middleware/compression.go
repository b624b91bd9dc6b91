package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/labstack/echo/v4"
)

// AcceptsBrotli reports whether the client listed br in Accept-Encoding
// with a non-zero quality. A bare "*" is left to the gzip middleware.
func AcceptsBrotli(c echo.Context) bool {
	return acceptsEncoding(c.Request().Header.Values(echo.HeaderAcceptEncoding), "br")
}

func acceptsEncoding(headers []string, coding string) bool {
	for _, header := range headers {
		for _, token := range strings.Split(header, ",") {
			name, params, _ := strings.Cut(token, ";")
			if !strings.EqualFold(strings.TrimSpace(name), coding) {
				continue
			}
			return qualityOf(params) > 0
		}
	}
	return false
}

// qualityOf returns the q parameter of an Accept-Encoding entry, 1 when
// absent and 0 when unparseable.
func qualityOf(params string) float64 {
	for _, param := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return q
	}
	return 1
}

// Brotli compresses response bodies for clients that accept br. Responses
// without a body are left untouched.
func Brotli(level int) echo.MiddlewareFunc {
	pool := sync.Pool{
		New: func() any { return brotli.NewWriterLevel(nil, level) },
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			res.Header().Add(echo.HeaderVary, echo.HeaderAcceptEncoding)
			if !AcceptsBrotli(c) {
				return next(c)
			}

			w := &brotliResponseWriter{ResponseWriter: res.Writer, pool: &pool}
			res.Writer = w
			defer func() {
				w.finish()
				res.Writer = w.ResponseWriter
			}()
			return next(c)
		}
	}
}

type brotliResponseWriter struct {
	http.ResponseWriter
	pool   *sync.Pool
	bw     *brotli.Writer
	status int
}

func (w *brotliResponseWriter) WriteHeader(code int) {
	w.status = code
}

func (w *brotliResponseWriter) Write(b []byte) (int, error) {
	if w.bw == nil {
		h := w.Header()
		h.Set(echo.HeaderContentEncoding, "br")
		h.Del(echo.HeaderContentLength)
		if h.Get(echo.HeaderContentType) == "" {
			h.Set(echo.HeaderContentType, http.DetectContentType(b))
		}
		if w.status == 0 {
			w.status = http.StatusOK
		}
		w.ResponseWriter.WriteHeader(w.status)

		w.bw = w.pool.Get().(*brotli.Writer)
		w.bw.Reset(w.ResponseWriter)
	}
	return w.bw.Write(b)
}

func (w *brotliResponseWriter) Flush() {
	if w.bw != nil {
		_ = w.bw.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *brotliResponseWriter) finish() {
	if w.bw == nil {
		if w.status != 0 {
			w.ResponseWriter.WriteHeader(w.status)
		}
		return
	}
	_ = w.bw.Close()
	w.pool.Put(w.bw)
	w.bw = nil
}
