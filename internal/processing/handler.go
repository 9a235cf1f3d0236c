package processing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/internal/transcription"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/handlers"
	"github.com/JaimeStill/pathways/pkg/routes"
)

const multipartMemory = 8 << 20

// FailureBody is the error response for pipeline failures.
type FailureBody struct {
	Error string        `json:"error"`
	Kind  workflow.Kind `json:"kind"`
	Retry bool          `json:"retry"`
}

// Handler provides HTTP endpoints for submission intake and processing.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, and upload size limit.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "submissions"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for submission endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/progress", Handler: h.Progress},
			{Method: "POST", Pattern: "/{id}/process", Handler: h.Process},
			{Method: "POST", Pattern: "/{id}/retry", Handler: h.Retry},
		},
	}
}

// Create accepts a multipart form carrying either an audio "file" or a
// "text" field, plus optional "name" and "postcode" fields.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadSize {
		handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidSubmission)
		return
	}

	cmd := CreateCommand{
		SubmitterName: r.FormValue("name"),
		LocationKey:   r.FormValue("postcode"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidSubmission)
			return
		}
		cmd.Data = data
		cmd.ContentType = header.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile):
		cmd.Data = []byte(r.FormValue("text"))
		cmd.ContentType = transcription.ContentTypeText
	default:
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidSubmission)
		return
	}

	sub, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, sub)
}

// Find returns the snapshot for the id path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	sub, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sub)
}

// Progress returns the derived progress view for the id path parameter.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	view, err := h.sys.Progress(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, view)
}

// Process runs the pipeline for the id path parameter.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.sys.Process(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Retry reruns the pipeline from stage 1 for the id path parameter.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	result, err := h.sys.Retry(r.Context(), id)
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidSubmission)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var f *workflow.Failure
	if !errors.As(err, &f) {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("pipeline failure", "status", status, "kind", f.Kind, "error", err)
	} else {
		h.logger.Warn("pipeline failure", "status", status, "kind", f.Kind, "error", err)
	}

	handlers.RespondJSON(w, status, FailureBody{
		Error: f.Message(),
		Kind:  f.Kind,
		Retry: f.Kind.Retryable(),
	})
}
