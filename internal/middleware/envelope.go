package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/pkg/envelope"
)

const (
	msgPublicKeyNotHex = "public_key should be hex encoded"
	msgCannotDecrypt   = "server not able to decrypt the encrypted_body"
	msgInvalidEnvelope = "invalid request"
)

// Envelope decrypts enveloped request bodies for the wrapped handler and
// seals its successful responses back to the sender.
type Envelope struct {
	key *envelope.Keypair
	now func() time.Time
}

func NewEnvelope(key *envelope.Keypair) *Envelope {
	return &Envelope{key: key, now: time.Now}
}

type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header { return w.header }

func (w *bufferedWriter) WriteHeader(code int) { w.status = code }

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (m *Envelope) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req envelope.Request
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msgInvalidEnvelope})
		}

		clientKey, body, err := envelope.OpenRequest(m.key, &req)
		if errors.Is(err, envelope.ErrInvalidKey) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msgPublicKeyNotHex})
		}
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msgCannotDecrypt})
		}

		r := c.Request()
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

		res := c.Response()
		orig := res.Writer
		buf := &bufferedWriter{header: orig.Header()}
		res.Writer = buf

		err = next(c)
		res.Writer = orig
		res.Committed = false
		res.Size = 0
		if err != nil {
			return err
		}

		status := buf.status
		if status == 0 {
			status = http.StatusOK
		}
		if status < 200 || status > 299 || buf.body.Len() == 0 {
			res.WriteHeader(status)
			_, err := res.Write(buf.body.Bytes())
			return err
		}

		sealed, err := envelope.SealResponse(m.key, clientKey, buf.body.Bytes(), m.now())
		if err != nil {
			c.Logger().Errorf("sealing response: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "error sealing response"})
		}
		return c.JSON(status, sealed)
	}
}
