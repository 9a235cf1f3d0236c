package api

import (
	"net/http"

	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/openapi"
	"github.com/JaimeStill/pathways/pkg/routes"
)

const tagSubmissions = "Submissions"

func openAPIGroup(cfg *config.Config, local bool) (routes.Group, error) {
	spec := buildSpec(cfg, local)
	body, err := openapi.MarshalJSON(spec)
	if err != nil {
		return routes.Group{}, err
	}

	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/openapi.json", Handler: openapi.ServeSpec(body)},
		},
	}, nil
}

func buildSpec(cfg *config.Config, local bool) *openapi.Spec {
	spec := openapi.NewSpec(&cfg.API.OpenAPI, cfg.Version)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(schemas())

	id := openapi.PathParam("id", "Submission ID")

	spec.Operation(http.MethodPost, "/submissions", &openapi.Operation{
		Summary:     "Create a submission",
		Description: "Accepts an audio file or a text field. A new upload replaces the pending payload.",
		Tags:        []string{tagSubmissions},
		RequestBody: openapi.RequestBodyMultipart(openapi.Object(map[string]*openapi.Schema{
			"file":     {Type: "string", Format: "binary", Description: "Recorded audio"},
			"text":     openapi.String("Written submission, used when no file is sent"),
			"name":     openapi.String("Submitter name"),
			"postcode": openapi.String("UK postcode used to find the representative"),
		})),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Submission created", "Submission"),
			400: openapi.ResponseRef(openapi.BadRequest),
			413: openapi.ResponseRef(openapi.PayloadTooLarge),
		},
	})

	spec.Operation(http.MethodGet, "/submissions/{id}", &openapi.Operation{
		Summary:    "Find a submission",
		Tags:       []string{tagSubmissions},
		Parameters: []*openapi.Parameter{id},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Submission snapshot", "Submission"),
			400: openapi.ResponseRef(openapi.BadRequest),
			404: openapi.ResponseRef(openapi.NotFound),
		},
	})

	spec.Operation(http.MethodGet, "/submissions/{id}/progress", &openapi.Operation{
		Summary:    "Submission progress",
		Tags:       []string{tagSubmissions},
		Parameters: []*openapi.Parameter{id},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Progress view", "Progress"),
			404: openapi.ResponseRef(openapi.NotFound),
		},
	})

	run := map[int]*openapi.Response{
		200: openapi.ResponseJSON("Pipeline completed", "Result"),
		404: openapi.ResponseJSON("Submission or payload not found", "PipelineFailure"),
		409: openapi.ResponseRef(openapi.Conflict),
		422: openapi.ResponseJSON("Unusable audio or location key", "PipelineFailure"),
		502: openapi.ResponseJSON("Stage failure", "PipelineFailure"),
	}

	spec.Operation(http.MethodPost, "/submissions/{id}/process", &openapi.Operation{
		Summary:    "Run the pipeline",
		Tags:       []string{tagSubmissions},
		Parameters: []*openapi.Parameter{id},
		Responses:  run,
	})

	spec.Operation(http.MethodPost, "/submissions/{id}/retry", &openapi.Operation{
		Summary:    "Rerun the pipeline from transcription",
		Tags:       []string{tagSubmissions},
		Parameters: []*openapi.Parameter{id},
		Responses:  run,
	})

	if local {
		stageOperations(spec)
	}

	return spec
}

func stageOperations(spec *openapi.Spec) {
	tags := []string{"Stages"}
	failure := openapi.ResponseJSON("Stage failure", "StageError")

	spec.Operation(http.MethodPost, "/stages/transcribe", &openapi.Operation{
		Summary: "Transcribe a raw payload",
		Tags:    tags,
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"application/octet-stream": {Schema: &openapi.Schema{Type: "string", Format: "binary"}},
			},
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Transcript", "Transcript"),
			422: failure,
			502: failure,
		},
	})

	spec.Operation(http.MethodGet, "/stages/representative", &openapi.Operation{
		Summary:    "Look up a representative",
		Tags:       tags,
		Parameters: []*openapi.Parameter{openapi.QueryParam("postcode", "string", "UK postcode", true)},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Representative", "Representative"),
			400: openapi.ResponseRef(openapi.BadRequest),
			422: failure,
			502: failure,
		},
	})

	spec.Operation(http.MethodPost, "/stages/documents/{kind}", &openapi.Operation{
		Summary: "Generate a document",
		Tags:    tags,
		Parameters: []*openapi.Parameter{{
			Name:     "kind",
			In:       "path",
			Required: true,
			Schema:   openapi.Enum("Document kind", workflow.DocumentPublic, workflow.DocumentRepresentative),
		}},
		RequestBody: openapi.RequestBodyJSON("GenerateRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Generated document", "Document"),
			404: openapi.ResponseRef(openapi.NotFound),
			502: failure,
		},
	})
}

func schemas() map[string]*openapi.Schema {
	status := openapi.Enum("Pipeline status",
		submissions.StatusUploading,
		submissions.StatusTranscribing,
		submissions.StatusPreparing,
		submissions.StatusComplete,
		submissions.StatusError,
	)
	kind := openapi.Enum("Failure kind",
		workflow.KindBadAudio,
		workflow.KindBadLocationKey,
		workflow.KindNotFound,
		workflow.KindInternal,
	)

	return map[string]*openapi.Schema{
		"Representative": openapi.Object(map[string]*openapi.Schema{
			"name":  openapi.String("Representative name"),
			"email": {Type: "string", Format: "email"},
		}, "name", "email"),
		"Document": openapi.Object(map[string]*openapi.Schema{
			"subject": openapi.String("Document subject"),
			"body":    openapi.String("Document body"),
		}, "subject", "body"),
		"Failure": openapi.Object(map[string]*openapi.Schema{
			"kind":    kind,
			"stage":   status,
			"message": openapi.String("User-facing failure message"),
		}, "kind", "message"),
		"Submission": openapi.Object(map[string]*openapi.Schema{
			"id":                      {Type: "string", Format: "uuid"},
			"content_type":            openapi.String("Payload content type"),
			"submitter_name":          openapi.String("Submitter name"),
			"location_key":            openapi.String("Normalized postcode"),
			"transcript":              openapi.String("Transcript text"),
			"representative":          openapi.SchemaRef("Representative"),
			"public_document":         openapi.SchemaRef("Document"),
			"representative_document": openapi.SchemaRef("Document"),
			"status":                  status,
			"progress":                openapi.Range("Progress percent", 0, 100),
			"failure":                 openapi.SchemaRef("Failure"),
			"created_at":              {Type: "string", Format: "date-time"},
			"updated_at":              {Type: "string", Format: "date-time"},
		}, "id", "status", "progress"),
		"Progress": openapi.Object(map[string]*openapi.Schema{
			"id":      {Type: "string", Format: "uuid"},
			"status":  status,
			"percent": openapi.Range("Progress percent", 0, 100),
			"steps": {
				Type: "array",
				Items: openapi.Object(map[string]*openapi.Schema{
					"stage": status,
					"state": openapi.Enum("Step state",
						workflow.StepCompleted,
						workflow.StepInProgress,
						workflow.StepWaiting,
					),
				}),
			},
			"failure": openapi.SchemaRef("Failure"),
			"retry":   {Type: "boolean"},
		}, "id", "status", "percent", "steps", "retry"),
		"Result": openapi.Object(map[string]*openapi.Schema{
			"submission":     openapi.SchemaRef("Submission"),
			"result_url":     openapi.String("Where the client goes once the grace delay passes"),
			"redirect_after": {Type: "integer", Description: "Grace delay in milliseconds"},
		}, "submission", "result_url", "redirect_after"),
		"PipelineFailure": openapi.Object(map[string]*openapi.Schema{
			"error": openapi.String("User-facing failure message"),
			"kind":  kind,
			"retry": {Type: "boolean"},
		}, "error", "kind", "retry"),
		"StageError": openapi.Object(map[string]*openapi.Schema{
			"error": openapi.String("Error message"),
			"kind":  kind,
		}, "error", "kind"),
		"Transcript": openapi.Object(map[string]*openapi.Schema{
			"transcript": openapi.String("Transcript text"),
		}, "transcript"),
		"GenerateRequest": openapi.Object(map[string]*openapi.Schema{
			"transcript":         openapi.String("Transcript text"),
			"submitterName":      openapi.String("Submitter name"),
			"representativeName": openapi.String("Representative name"),
			"locationKey":        openapi.String("Normalized postcode"),
		}, "transcript", "submitterName"),
	}
}
