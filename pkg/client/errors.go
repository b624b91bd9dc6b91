package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string

	// Attempts, Cooldown (minutes) and RequestedAt are set on 401 and 429.
	Attempts    int
	Cooldown    int64
	RequestedAt string

	// RetryAfter comes from the Retry-After header on 429.
	RetryAfter time.Duration
}

func (err *APIError) Error() string {
	if err.Attempts > 0 {
		return fmt.Sprintf("stash: HTTP %d: %s (attempts %d, cooldown %dm)", err.StatusCode, err.Message, err.Attempts, err.Cooldown)
	}
	return fmt.Sprintf("stash: HTTP %d: %s", err.StatusCode, err.Message)
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	var decoded struct {
		Error       string `json:"error"`
		Message     string `json:"message"`
		Attempts    int    `json:"attempts"`
		Cooldown    int64  `json:"cooldown"`
		RequestedAt string `json:"requested_at"`
	}
	_ = json.Unmarshal(body, &decoded)

	apiErr := &APIError{
		StatusCode:  resp.StatusCode,
		Message:     decoded.Error,
		Attempts:    decoded.Attempts,
		Cooldown:    decoded.Cooldown,
		RequestedAt: decoded.RequestedAt,
	}
	if apiErr.Message == "" {
		apiErr.Message = decoded.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsDuplicate reports whether a store was refused because the slot is taken.
func IsDuplicate(err error) bool { return hasStatus(err, http.StatusForbidden) }

// IsUnauthorized reports whether no secret matched the credentials.
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

// IsLockedOut reports whether the identifier is cooling down.
func IsLockedOut(err error) bool { return hasStatus(err, http.StatusTooManyRequests) }

func IsBadRequest(err error) bool { return hasStatus(err, http.StatusBadRequest) }
