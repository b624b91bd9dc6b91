package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/internal/governor"
	"github.com/nckslvrmn/stash/internal/storage/provider/local"
	"github.com/nckslvrmn/stash/pkg/utils"
)

// doCancelled runs handler with a request whose context is already done, as
// after a client disconnect or the timeout middleware firing.
func doCancelled(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBuffer(jsonBody)).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	return rec
}

func TestStorageSurvivesCancelledRequest(t *testing.T) {
	store, err := local.NewSQLiteStore(filepath.Join(t.TempDir(), "secrets.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := echo.New()
	h := New(store, governor.New(time.Minute, testMaxAttempts), Options{SecretMaxLength: testMaxLength})
	id := utils.DeriveSecretID(ident, authKey)

	if rec := doCancelled(t, e, h.Store, StoreRequest{ident, authKey, blob}); rec.Code != http.StatusCreated {
		t.Fatalf("Store() status = %v, want 201, body %s", rec.Code, rec.Body.String())
	}
	got, err := store.ReadByID(context.Background(), id)
	if err != nil || got == nil || got.EncryptedSecret != blob {
		t.Fatalf("ReadByID() after Store() = %+v, %v, want persisted secret", got, err)
	}

	if rec := doCancelled(t, e, h.Fetch, FetchRequest{ident, authKey}); rec.Code != http.StatusOK {
		t.Errorf("Fetch() status = %v, want 200", rec.Code)
	}

	if rec := doCancelled(t, e, h.Trash, FetchRequest{ident, authKey}); rec.Code != http.StatusAccepted {
		t.Fatalf("Trash() status = %v, want 202", rec.Code)
	}
	got, err = store.ReadByID(context.Background(), id)
	if err != nil || got != nil {
		t.Errorf("ReadByID() after Trash() = %+v, %v, want nil, nil", got, err)
	}
}
