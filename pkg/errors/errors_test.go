package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit status wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"zero status uses sentinel", Newf(ErrUnknownCollection, 0, "collection %q", "rooms"), http.StatusNotFound},
		{"wrapped sentinel", fmt.Errorf("building: %w", ErrIndexNotReady), http.StatusServiceUnavailable},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"source unavailable", ErrSourceUnavailable, http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := fmt.Errorf("loading: %w", Newf(ErrInvalidConfig, 0, "collection %q has no fields", "rooms"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("errors.Is failed for %v", err)
	}
	want := `loading: invalid configuration: collection "rooms" has no fields`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
