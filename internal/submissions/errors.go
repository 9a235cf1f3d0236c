package submissions

import (
	"errors"
	"net/http"
)

// Domain errors for submission state.
var (
	ErrNotFound        = errors.New("submission not found")
	ErrDuplicate       = errors.New("submission already exists")
	ErrPayloadNotFound = errors.New("submission payload not found")
)

// MapHTTPStatus maps submission errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPayloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
