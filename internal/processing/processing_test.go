package processing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/internal/processing"
	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
	"github.com/JaimeStill/pathways/pkg/routes"
)

// stages is a configurable stand-in for all three stage clients.
type stages struct {
	transcribeErr error
	lookupErr     error
	generateErr   error
	gate          chan struct{}
	transcribes   atomic.Int32
}

func (s *stages) Transcribe(ctx context.Context, p submissions.Payload) (string, error) {
	s.transcribes.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.transcribeErr != nil {
		return "", s.transcribeErr
	}
	return "transcript of " + string(p.Data), nil
}

func (s *stages) Lookup(ctx context.Context, key string) (*submissions.Representative, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return &submissions.Representative{Name: "Jane Smith", Email: "jane@parliament.uk"}, nil
}

func (s *stages) Generate(ctx context.Context, req workflow.GenerateRequest) (*submissions.Document, error) {
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &submissions.Document{Subject: string(req.Kind), Body: req.Transcript}, nil
}

type fixture struct {
	stages *stages
	store  submissions.Store
	slot   submissions.PayloadSlot
	sys    processing.System
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	f := &fixture{
		stages: &stages{},
		store:  submissions.NewMemoryStore(),
		slot:   submissions.NewMemorySlot(),
	}
	orch := workflow.New(workflow.Runtime{
		Transcriber: f.stages,
		Lookup:      f.stages,
		Generator:   f.stages,
		Store:       f.store,
		Payloads:    f.slot,
		Logger:      discard(),
	})
	f.sys = processing.New(orch, f.store, f.slot, processing.Options{
		ResultPath: "/api/submissions",
		GraceDelay: 1500 * time.Millisecond,
	}, discard())
	return f
}

func (f *fixture) create(t *testing.T, postcode string) *submissions.Submission {
	t.Helper()
	sub, err := f.sys.Create(context.Background(), processing.CreateCommand{
		Data:          []byte("audio"),
		ContentType:   "audio/webm;codecs=opus",
		SubmitterName: " Sam ",
		LocationKey:   postcode,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sub
}

func TestCreate(t *testing.T) {
	f := newFixture()
	sub := f.create(t, "SW1A 1AA")

	if sub.Status != submissions.StatusUploading {
		t.Errorf("Status = %q, want uploading", sub.Status)
	}
	if sub.ContentType != "audio/webm" {
		t.Errorf("ContentType = %q, want audio/webm", sub.ContentType)
	}
	if sub.SubmitterName != "Sam" {
		t.Errorf("SubmitterName = %q, want Sam", sub.SubmitterName)
	}

	p, err := f.slot.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("payload not cached: %v", err)
	}
	if string(p.Data) != "audio" {
		t.Errorf("payload = %q", p.Data)
	}
	if _, err := f.store.Get(context.Background(), sub.ID); err != nil {
		t.Errorf("snapshot not persisted: %v", err)
	}
}

func TestCreateRejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  processing.CreateCommand
		want error
	}{
		{"unsupported type", processing.CreateCommand{Data: []byte("x"), ContentType: "image/png"}, processing.ErrUnsupportedType},
		{"empty audio", processing.CreateCommand{ContentType: "audio/wav"}, processing.ErrEmptyPayload},
		{"blank text", processing.CreateCommand{Data: []byte("   "), ContentType: "text/plain"}, processing.ErrEmptyPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.sys.Create(context.Background(), tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
			if got := processing.MapHTTPStatus(err); got != http.StatusBadRequest {
				t.Errorf("MapHTTPStatus() = %d, want 400", got)
			}
		})
	}
}

func TestProcess(t *testing.T) {
	f := newFixture()
	sub := f.create(t, "SW1A 1AA")

	result, err := f.sys.Process(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if result.Submission.Status != submissions.StatusComplete {
		t.Errorf("Status = %q, want complete", result.Submission.Status)
	}
	if result.ResultURL != "/api/submissions/"+sub.ID.String() {
		t.Errorf("ResultURL = %q", result.ResultURL)
	}
	if result.RedirectAfter != 1500 {
		t.Errorf("RedirectAfter = %d, want 1500", result.RedirectAfter)
	}
	if result.Submission.Representative == nil {
		t.Error("representative not recorded")
	}
}

func TestProcessMissingSubmission(t *testing.T) {
	f := newFixture()

	_, err := f.sys.Process(context.Background(), uuid.New())
	var failure *workflow.Failure
	if !errors.As(err, &failure) || failure.Kind != workflow.KindNotFound {
		t.Fatalf("Process() error = %v, want not found failure", err)
	}
	if got := processing.MapHTTPStatus(err); got != http.StatusNotFound {
		t.Errorf("MapHTTPStatus() = %d, want 404", got)
	}
}

func TestProcessPayloadEvicted(t *testing.T) {
	f := newFixture()
	first := f.create(t, "")
	f.create(t, "")

	_, err := f.sys.Process(context.Background(), first.ID)
	if workflow.Classify(err) != workflow.KindNotFound {
		t.Errorf("Classify() = %v, want not_found", workflow.Classify(err))
	}
}

func TestProcessDedupsConcurrentRuns(t *testing.T) {
	f := newFixture()
	f.stages.gate = make(chan struct{})
	sub := f.create(t, "")

	var wg sync.WaitGroup
	results := make([]*processing.Result, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Go(func() {
			results[i], errs[i] = f.sys.Process(context.Background(), sub.ID)
		})
	}

	// let both callers reach the run before stage 1 proceeds
	deadline := time.Now().Add(2 * time.Second)
	for f.stages.transcribes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.stages.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d error = %v", i, err)
		}
	}
	if got := f.stages.transcribes.Load(); got != 1 {
		t.Errorf("transcribe calls = %d, want 1", got)
	}
}

func TestRetryAfterInternalFailure(t *testing.T) {
	f := newFixture()
	f.stages.generateErr = errors.New("model overloaded")
	sub := f.create(t, "")

	_, err := f.sys.Process(context.Background(), sub.ID)
	if got := processing.MapHTTPStatus(err); got != http.StatusBadGateway {
		t.Fatalf("MapHTTPStatus() = %d, want 502", got)
	}

	view, err := f.sys.Progress(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Progress() error = %v", err)
	}
	if view.Status != submissions.StatusError || !view.Retry {
		t.Errorf("progress = %+v, want retryable error", view)
	}

	f.stages.generateErr = nil
	result, err := f.sys.Retry(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result.Submission.Status != submissions.StatusComplete {
		t.Errorf("Status = %q, want complete", result.Submission.Status)
	}
}

func TestRetryAfterBadAudio(t *testing.T) {
	f := newFixture()
	f.stages.transcribeErr = workflow.ErrBadAudio
	sub := f.create(t, "")

	_, err := f.sys.Process(context.Background(), sub.ID)
	if got := processing.MapHTTPStatus(err); got != http.StatusUnprocessableEntity {
		t.Fatalf("MapHTTPStatus() = %d, want 422", got)
	}

	_, err = f.sys.Retry(context.Background(), sub.ID)
	if workflow.Classify(err) != workflow.KindNotFound {
		t.Errorf("Retry() error = %v, want not found", err)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"too large", processing.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid transition", workflow.ErrInvalidTransition, http.StatusConflict},
		{"missing snapshot", submissions.ErrNotFound, http.StatusNotFound},
		{"bad location key", &workflow.Failure{Kind: workflow.KindBadLocationKey}, http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func newMux(f *fixture, maxUpload int64) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, f.sys.Handler(maxUpload).Routes())
	return mux
}

func multipartBody(t *testing.T, fields map[string]string, file []byte, fileType string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="recording.webm"`)
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHandlerCreateAndProcess(t *testing.T) {
	f := newFixture()
	mux := newMux(f, 1<<20)

	body, contentType := multipartBody(t, map[string]string{"name": "Sam", "postcode": "SW1A 1AA"}, []byte("audio"), "audio/webm")
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}

	var sub submissions.Submission
	if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submissions/"+sub.ID.String()+"/process", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("process status = %d, body = %s", rec.Code, rec.Body)
	}

	var result processing.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Submission.Status != submissions.StatusComplete {
		t.Errorf("Status = %q, want complete", result.Submission.Status)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+sub.ID.String()+"/progress", nil))
	var view workflow.ProgressView
	json.NewDecoder(rec.Body).Decode(&view)
	if view.Percent != workflow.ProgressComplete {
		t.Errorf("Percent = %d, want %d", view.Percent, workflow.ProgressComplete)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submissions/"+sub.ID.String()+"/process", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second process status = %d, want 409", rec.Code)
	}
}

func TestHandlerCreateText(t *testing.T) {
	f := newFixture()
	mux := newMux(f, 1<<20)

	body, contentType := multipartBody(t, map[string]string{"text": "my story in words"}, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"content_type":"text/plain"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHandlerCreateTooLarge(t *testing.T) {
	f := newFixture()
	mux := newMux(f, 64)

	body, contentType := multipartBody(t, nil, bytes.Repeat([]byte("a"), 1024), "audio/wav")
	req := httptest.NewRequest(http.MethodPost, "/submissions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandlerFailureBody(t *testing.T) {
	f := newFixture()
	f.stages.lookupErr = workflow.ErrBadLocationKey
	mux := newMux(f, 1<<20)
	sub := f.create(t, "nope")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submissions/"+sub.ID.String()+"/process", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var body processing.FailureBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != workflow.KindBadLocationKey || body.Retry {
		t.Errorf("body = %+v", body)
	}
	if body.Error != workflow.KindBadLocationKey.Message() {
		t.Errorf("Error = %q", body.Error)
	}
}

func TestHandlerInvalidID(t *testing.T) {
	f := newFixture()
	mux := newMux(f, 1<<20)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
