package processing

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/handlers"
)

// Intake errors.
var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrUnsupportedType   = errors.New("unsupported content type")
	ErrEmptyPayload      = errors.New("submission payload is empty")
	ErrPayloadTooLarge   = errors.New("payload exceeds maximum upload size")
)

// MapHTTPStatus maps intake, pipeline and submission errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	var f *workflow.Failure
	if errors.As(err, &f) {
		switch f.Kind {
		case workflow.KindBadAudio, workflow.KindBadLocationKey:
			return http.StatusUnprocessableEntity
		case workflow.KindNotFound:
			return http.StatusNotFound
		default:
			return http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidSubmission),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrEmptyPayload),
		errors.Is(err, handlers.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict
	}
	return submissions.MapHTTPStatus(err)
}
