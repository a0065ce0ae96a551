package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"gavel/internal/judge/languages"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

type fakeProblems struct {
	problem *model.Problem
	err     error
}

func (f *fakeProblems) GetByID(context.Context, int64) (*model.Problem, error) {
	return f.problem, f.err
}
func (f *fakeProblems) GetTestCases(context.Context, int64) ([]model.TestCase, error) {
	return nil, nil
}

type fakeSubs struct {
	created *model.Submission
	byID    *model.Submission
	getErr  error
}

func (f *fakeSubs) Create(_ context.Context, sub *model.Submission) error {
	f.created = sub
	return nil
}
func (f *fakeSubs) GetByID(context.Context, string) (*model.Submission, error) {
	return f.byID, f.getErr
}
func (f *fakeSubs) Finalize(context.Context, string, model.SubmissionStatus, string, int64, int64) (bool, error) {
	return false, nil
}
func (f *fakeSubs) HasAcceptedBefore(context.Context, int64, int64, int64, time.Time, string) (bool, error) {
	return false, nil
}
func (f *fakeSubs) ListForParticipant(context.Context, int64, int64) ([]model.Submission, error) {
	return nil, nil
}

type fakeLive struct {
	status *model.LiveStatus
}

func (f *fakeLive) Set(context.Context, *model.LiveStatus) error { return nil }
func (f *fakeLive) Get(context.Context, string) (*model.LiveStatus, error) {
	if f.status == nil {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	return f.status, nil
}
func (f *fakeLive) Delete(context.Context, string) error { return nil }

type fakeEnqueuer struct {
	jobs []*model.SubmissionJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job *model.SubmissionJob) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func asCaller(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func newSubmissionRouter(t *testing.T, problems *fakeProblems, subs *fakeSubs, live *fakeLive, enq *fakeEnqueuer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry, err := languages.NewRegistry(languages.Defaults())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctrl := NewSubmissionController(registry, problems, subs, live, enq)
	r := gin.New()
	r.Use(asCaller(7))
	r.POST("/submissions", ctrl.Create)
	r.GET("/submissions/:id", ctrl.Get)
	return r
}

func postJSON(r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateSubmission(t *testing.T) {
	problems := &fakeProblems{problem: &model.Problem{ID: 7, Kind: model.ProblemKindCode}}
	subs := &fakeSubs{}
	enq := &fakeEnqueuer{}
	r := newSubmissionRouter(t, problems, subs, &fakeLive{}, enq)

	rec := postJSON(r, "/submissions", SubmitRequest{
		ProblemID: 7, ContestID: 3, Language: "python", Code: "print(1)",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if subs.created == nil || subs.created.Status != model.StatusPending {
		t.Fatalf("created = %+v", subs.created)
	}
	if subs.created.UserID != 7 {
		t.Fatalf("user id = %d, want caller", subs.created.UserID)
	}
	if len(enq.jobs) != 1 || enq.jobs[0].SubmissionID != subs.created.ID {
		t.Fatalf("jobs = %+v", enq.jobs)
	}
}

func TestCreateSubmissionUnknownLanguage(t *testing.T) {
	problems := &fakeProblems{problem: &model.Problem{ID: 7, Kind: model.ProblemKindCode}}
	subs := &fakeSubs{}
	enq := &fakeEnqueuer{}
	r := newSubmissionRouter(t, problems, subs, &fakeLive{}, enq)

	rec := postJSON(r, "/submissions", SubmitRequest{ProblemID: 7, Language: "cobol", Code: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if subs.created != nil || len(enq.jobs) != 0 {
		t.Fatal("rejected submission must not persist or enqueue")
	}
}

func TestCreateSubmissionDisallowedLanguage(t *testing.T) {
	problems := &fakeProblems{problem: &model.Problem{
		ID: 7, Kind: model.ProblemKindCode, Languages: []string{"cpp"},
	}}
	r := newSubmissionRouter(t, problems, &fakeSubs{}, &fakeLive{}, &fakeEnqueuer{})

	rec := postJSON(r, "/submissions", SubmitRequest{ProblemID: 7, Language: "python", Code: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSubmissionCodeTooLarge(t *testing.T) {
	problems := &fakeProblems{problem: &model.Problem{ID: 7, Kind: model.ProblemKindCode}}
	r := newSubmissionRouter(t, problems, &fakeSubs{}, &fakeLive{}, &fakeEnqueuer{})

	rec := postJSON(r, "/submissions", SubmitRequest{
		ProblemID: 7, Language: "python", Code: strings.Repeat("a", maxCodeBytes+1),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSQLSubmissionSkipsRegistry(t *testing.T) {
	problems := &fakeProblems{problem: &model.Problem{ID: 7, Kind: model.ProblemKindSQL}}
	subs := &fakeSubs{}
	enq := &fakeEnqueuer{}
	r := newSubmissionRouter(t, problems, subs, &fakeLive{}, enq)

	rec := postJSON(r, "/submissions", SubmitRequest{ProblemID: 7, Language: "sql", Code: "SELECT 1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(enq.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(enq.jobs))
	}
}

func TestGetSubmissionMergesLiveStatus(t *testing.T) {
	subs := &fakeSubs{byID: &model.Submission{
		ID: "sub-1", ProblemID: 7, Language: "python",
		Status: model.StatusPending, CreatedAt: time.Now(),
	}}
	live := &fakeLive{status: &model.LiveStatus{
		SubmissionID: "sub-1",
		Status:       model.StatusPending,
		Progress:     model.Progress{TotalTests: 10, DoneTests: 4},
	}}
	r := newSubmissionRouter(t, &fakeProblems{}, subs, live, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/submissions/sub-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope struct {
		Data StatusResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Progress.DoneTests != 4 || envelope.Data.Progress.TotalTests != 10 {
		t.Fatalf("progress = %+v", envelope.Data.Progress)
	}
}

func TestGetSubmissionTerminalIgnoresLive(t *testing.T) {
	subs := &fakeSubs{byID: &model.Submission{
		ID: "sub-1", ProblemID: 7, Language: "python",
		Status: model.StatusPass, Message: "passed 10/10 test cases",
		TimeMs: 120, CreatedAt: time.Now(),
	}}
	live := &fakeLive{status: &model.LiveStatus{
		SubmissionID: "sub-1", Status: model.StatusPending,
	}}
	r := newSubmissionRouter(t, &fakeProblems{}, subs, live, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/submissions/sub-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var envelope struct {
		Data StatusResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != string(model.StatusPass) {
		t.Fatalf("status = %s, want terminal row", envelope.Data.Status)
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	subs := &fakeSubs{getErr: appErr.New(appErr.SubmissionNotFound)}
	r := newSubmissionRouter(t, &fakeProblems{}, subs, &fakeLive{}, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/submissions/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
