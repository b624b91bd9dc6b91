package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/internal/governor"
	"github.com/nckslvrmn/stash/internal/storage/mock"
	"github.com/nckslvrmn/stash/internal/storage/types"
	"github.com/nckslvrmn/stash/pkg/utils"
)

const (
	testCooldown    = 15 * time.Minute
	testMaxAttempts = 3
	testMaxLength   = 64
)

var (
	ident   = strings.Repeat("1", 64)
	authKey = strings.Repeat("2", 64)
	wrong   = strings.Repeat("3", 64)
	blob    = "c29tZXRoaW5n"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fixture struct {
	e     *echo.Echo
	h     *Handler
	gov   *governor.Governor
	store *mock.MockSecretStore
	clock *fakeClock
}

func setupTest() *fixture {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	gov := governor.New(testCooldown, testMaxAttempts).WithClock(clock)
	store := mock.NewMockSecretStore()
	h := New(store, gov, Options{SecretMaxLength: testMaxLength, Canary: "canary"})
	return &fixture{e: echo.New(), h: h, gov: gov, store: store, clock: clock}
}

func (f *fixture) do(t *testing.T, handler echo.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBuffer(jsonBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if err := handler(c); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	return rec
}

func decodeAttempt(t *testing.T, rec *httptest.ResponseRecorder) AttemptResponse {
	t.Helper()
	var resp AttemptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding attempt response: %v", err)
	}
	return resp
}

func TestStore(t *testing.T) {
	tests := []struct {
		name       string
		body       StoreRequest
		wantStatus int
		wantError  string
	}{
		{
			name:       "Valid request",
			body:       StoreRequest{ident, authKey, blob},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "Short identifier",
			body:       StoreRequest{ident[:63], authKey, blob},
			wantStatus: http.StatusBadRequest,
			wantError:  msgInvalidHashes,
		},
		{
			name:       "Non hex authentication key",
			body:       StoreRequest{ident, strings.Repeat("g", 64), blob},
			wantStatus: http.StatusBadRequest,
			wantError:  msgInvalidHashes,
		},
		{
			name:       "Empty secret",
			body:       StoreRequest{ident, authKey, ""},
			wantStatus: http.StatusBadRequest,
			wantError:  msgEmptySecret,
		},
		{
			name:       "Secret not base64",
			body:       StoreRequest{ident, authKey, "not base64!"},
			wantStatus: http.StatusBadRequest,
			wantError:  msgSecretNotBase64,
		},
		{
			name:       "Secret too long",
			body:       StoreRequest{ident, authKey, strings.Repeat("A", testMaxLength+4)},
			wantStatus: http.StatusBadRequest,
			wantError:  "encrypted_secret length exceeds the limit 64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTest()
			rec := f.do(t, f.h.Store, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Store() status = %v, want %v", rec.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				var resp ErrorResponse
				json.Unmarshal(rec.Body.Bytes(), &resp)
				if resp.Error != tt.wantError {
					t.Errorf("Store() error = %q, want %q", resp.Error, tt.wantError)
				}
				if f.store.Len() != 0 {
					t.Error("Store() wrote a secret for an invalid request")
				}
			}
		})
	}
}

func TestStoreDuplicate(t *testing.T) {
	f := setupTest()
	body := StoreRequest{ident, authKey, blob}

	if rec := f.do(t, f.h.Store, body); rec.Code != http.StatusCreated {
		t.Fatalf("first Store() status = %v, want 201", rec.Code)
	}
	rec := f.do(t, f.h.Store, StoreRequest{ident, authKey, "b3RoZXI="})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("second Store() status = %v, want 403", rec.Code)
	}

	got, _ := f.store.ReadByID(t.Context(), utils.DeriveSecretID(ident, authKey))
	if got.EncryptedSecret != blob {
		t.Errorf("duplicate store overwrote secret: %q", got.EncryptedSecret)
	}
}

func TestStoreBackendError(t *testing.T) {
	f := setupTest()
	f.store.Err = errors.New("disk full")

	rec := f.do(t, f.h.Store, StoreRequest{ident, authKey, blob})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Store() status = %v, want 400", rec.Code)
	}
}

func TestStoreFetchScenario(t *testing.T) {
	f := setupTest()

	if rec := f.do(t, f.h.Store, StoreRequest{ident, authKey, blob}); rec.Code != http.StatusCreated {
		t.Fatalf("Store() status = %v, want 201", rec.Code)
	}

	rec := f.do(t, f.h.Fetch, FetchRequest{ident, authKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("Fetch() status = %v, want 200", rec.Code)
	}
	var secret types.Secret
	if err := json.Unmarshal(rec.Body.Bytes(), &secret); err != nil {
		t.Fatal(err)
	}
	if secret.EncryptedSecret != blob {
		t.Errorf("Fetch() encrypted_secret = %q, want %q", secret.EncryptedSecret, blob)
	}
	if want := utils.Sha256Hex([]byte(ident + authKey)); secret.ID != want {
		t.Errorf("Fetch() id = %q, want %q", secret.ID, want)
	}

	for i := 1; i <= testMaxAttempts; i++ {
		rec := f.do(t, f.h.Fetch, FetchRequest{ident, wrong})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("wrong Fetch() #%d status = %v, want 401", i, rec.Code)
		}
		resp := decodeAttempt(t, rec)
		if resp.Attempts != i {
			t.Errorf("wrong Fetch() #%d attempts = %d", i, resp.Attempts)
		}
		if resp.Cooldown != 15 {
			t.Errorf("cooldown = %d, want 15", resp.Cooldown)
		}
		if resp.Error != msgInvalidPair {
			t.Errorf("error = %q", resp.Error)
		}
	}

	// Locked out even with the correct pair.
	rec = f.do(t, f.h.Fetch, FetchRequest{ident, authKey})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked Fetch() status = %v, want 429", rec.Code)
	}
	resp := decodeAttempt(t, rec)
	if resp.Attempts != testMaxAttempts {
		t.Errorf("locked attempts = %d, want %d", resp.Attempts, testMaxAttempts)
	}
	if resp.RequestedAt != "2024-01-01T12:00:00Z" {
		t.Errorf("requested_at = %q", resp.RequestedAt)
	}
	if rec.Header().Get("Retry-After") != "900" {
		t.Errorf("Retry-After = %q, want 900", rec.Header().Get("Retry-After"))
	}

	f.clock.Advance(testCooldown)
	if rec := f.do(t, f.h.Fetch, FetchRequest{ident, authKey}); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Fetch() at cooldown boundary status = %v, want 429", rec.Code)
	}

	f.clock.Advance(time.Second)
	if rec := f.do(t, f.h.Fetch, FetchRequest{ident, authKey}); rec.Code != http.StatusOK {
		t.Fatalf("Fetch() after cooldown status = %v, want 200", rec.Code)
	}
	if _, ok := f.gov.Lookup(ident); ok {
		t.Error("governor entry should be removed after cooldown")
	}
}

func TestFetchSuccessKeepsFailures(t *testing.T) {
	f := setupTest()
	f.do(t, f.h.Store, StoreRequest{ident, authKey, blob})

	f.do(t, f.h.Fetch, FetchRequest{ident, wrong})
	if rec := f.do(t, f.h.Fetch, FetchRequest{ident, authKey}); rec.Code != http.StatusOK {
		t.Fatalf("Fetch() status = %v, want 200", rec.Code)
	}
	entry, ok := f.gov.Lookup(ident)
	if !ok || entry.Attempts != 1 {
		t.Errorf("entry after success = %+v, %v; want 1 attempt kept", entry, ok)
	}
}

func TestFetchValidationLeavesGovernorUntouched(t *testing.T) {
	f := setupTest()

	bodies := []FetchRequest{
		{ident[:10], authKey},
		{ident + "0", authKey},
		{ident, strings.Repeat("z", 64)},
		{"", ""},
	}
	for _, body := range bodies {
		rec := f.do(t, f.h.Fetch, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Fetch(%+v) status = %v, want 400", body, rec.Code)
		}
		rec = f.do(t, f.h.Trash, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Trash(%+v) status = %v, want 400", body, rec.Code)
		}
	}
	if f.gov.Len() != 0 {
		t.Errorf("governor has %d entries after invalid requests", f.gov.Len())
	}
	if f.store.Reads != 0 {
		t.Errorf("store was read %d times for invalid requests", f.store.Reads)
	}
}

func TestFetchLockedOutSkipsStore(t *testing.T) {
	f := setupTest()
	for i := 0; i < testMaxAttempts; i++ {
		f.do(t, f.h.Fetch, FetchRequest{ident, wrong})
	}
	reads := f.store.Reads

	f.do(t, f.h.Fetch, FetchRequest{ident, authKey})
	if f.store.Reads != reads {
		t.Error("locked out request reached the store")
	}
}

func TestFetchBackendErrorNotCounted(t *testing.T) {
	f := setupTest()
	f.store.Err = errors.New("connection refused")

	rec := f.do(t, f.h.Fetch, FetchRequest{ident, authKey})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Fetch() status = %v, want 500", rec.Code)
	}
	if f.gov.Len() != 0 {
		t.Error("backend error recorded as a failed attempt")
	}
}

func TestTrash(t *testing.T) {
	f := setupTest()
	f.do(t, f.h.Store, StoreRequest{ident, authKey, blob})

	rec := f.do(t, f.h.Trash, FetchRequest{ident, authKey})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Trash() status = %v, want 202", rec.Code)
	}
	var secret types.Secret
	json.Unmarshal(rec.Body.Bytes(), &secret)
	if secret.EncryptedSecret != blob {
		t.Errorf("Trash() encrypted_secret = %q, want %q", secret.EncryptedSecret, blob)
	}
	if f.store.Len() != 0 {
		t.Error("Trash() did not delete the secret")
	}

	rec = f.do(t, f.h.Fetch, FetchRequest{ident, authKey})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Fetch() after Trash() status = %v, want 401", rec.Code)
	}

	// The slot is free again.
	if rec := f.do(t, f.h.Store, StoreRequest{ident, authKey, blob}); rec.Code != http.StatusCreated {
		t.Errorf("Store() after Trash() status = %v, want 201", rec.Code)
	}
}

func TestInfo(t *testing.T) {
	f := setupTest()
	f.h.opts.PublicKey = "ab"

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	rec := httptest.NewRecorder()
	if err := f.h.Info(f.e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Info() status = %v", rec.Code)
	}

	var resp InfoResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Cooldown != 15 || resp.SecretMaxLength != testMaxLength || resp.MaxFailedAttempts != testMaxAttempts {
		t.Errorf("Info() = %+v", resp)
	}
	if resp.Message != "canary" || resp.PublicKey != "ab" {
		t.Errorf("Info() message/public_key = %q/%q", resp.Message, resp.PublicKey)
	}
	if resp.Timestamp == 0 {
		t.Error("Info() timestamp is zero")
	}
}
