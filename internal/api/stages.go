package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/pathways/internal/remote"
	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/handlers"
	"github.com/JaimeStill/pathways/pkg/routes"
)

// stageHandler serves the in-process stage clients over HTTP so another
// instance can run with the remote stage provider against this one.
type stageHandler struct {
	stages        Stages
	logger        *slog.Logger
	maxUploadSize int64
}

func newStageHandler(stages Stages, logger *slog.Logger, maxUploadSize int64) *stageHandler {
	return &stageHandler{
		stages:        stages,
		logger:        logger.With("handler", "stages"),
		maxUploadSize: maxUploadSize,
	}
}

func (h *stageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/stages",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/transcribe", Handler: h.transcribe},
			{Method: "GET", Pattern: "/representative", Handler: h.representative},
			{Method: "POST", Pattern: "/documents/{kind}", Handler: h.document},
		},
	}
}

func (h *stageHandler) transcribe(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondStageError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		h.respondStageError(w, http.StatusBadRequest, err)
		return
	}

	transcript, err := h.stages.Transcriber.Transcribe(r.Context(), submissions.Payload{
		Data:        data,
		ContentType: r.Header.Get("Content-Type"),
	})
	if err != nil {
		h.respondStageError(w, stageStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]string{"transcript": transcript})
}

func (h *stageHandler) representative(w http.ResponseWriter, r *http.Request) {
	postcode := r.URL.Query().Get("postcode")
	if postcode == "" {
		h.respondStageError(w, http.StatusBadRequest, workflow.ErrBadLocationKey)
		return
	}

	rep, err := h.stages.Lookup.Lookup(r.Context(), postcode)
	if err != nil {
		h.respondStageError(w, stageStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, rep)
}

func (h *stageHandler) document(w http.ResponseWriter, r *http.Request) {
	kind := workflow.DocumentKind(r.PathValue("kind"))
	if !kind.Valid() {
		h.respondStageError(w, http.StatusNotFound, errors.New("unknown document kind"))
		return
	}

	req, err := handlers.DecodeJSON[workflow.GenerateRequest](w, r, h.maxUploadSize)
	if err != nil {
		h.respondStageError(w, http.StatusBadRequest, err)
		return
	}
	req.Kind = kind

	doc, err := h.stages.Generator.Generate(r.Context(), req)
	if err != nil {
		h.respondStageError(w, stageStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// respondStageError writes the stage error envelope with the classified kind.
func (h *stageHandler) respondStageError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("stage error", "status", status, "error", err)
	} else {
		h.logger.Warn("stage error", "status", status, "error", err)
	}

	handlers.RespondJSON(w, status, remote.ErrorBody{
		Error: err.Error(),
		Kind:  workflow.Classify(err),
	})
}

func stageStatus(err error) int {
	switch workflow.Classify(err) {
	case workflow.KindBadAudio, workflow.KindBadLocationKey:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
