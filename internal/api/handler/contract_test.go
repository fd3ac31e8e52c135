package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"podforge/internal/api"
	"podforge/internal/api/handler"
	"podforge/internal/cache"
	"podforge/internal/pipeline"
	"podforge/internal/store"
	"podforge/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, jobID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) UpdateJob(_ context.Context, jobID uuid.UUID, status models.JobStatus, opts ...store.JobUpdateOption) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !models.CanTransition(j.Status, status) {
		return nil, store.ErrInvalidTransition
	}
	u := store.ApplyJobUpdateOptions(opts)
	j.Status = status
	if u.ErrorMessage != nil {
		j.ErrorMessage = u.ErrorMessage
	}
	if u.ResultAudioURL != nil {
		j.ResultAudioURL = u.ResultAudioURL
	}
	if u.InputResourceURL != nil {
		j.InputResourceURL = u.InputResourceURL
	}
	cp := *j
	return &cp, nil
}

func (s *mockStore) DeleteJob(_ context.Context, jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	return ok, nil
}

func (s *mockStore) ListJobsByStatus(_ context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*models.Job
	for _, j := range s.jobs {
		if j.Status == filter.Status {
			cp := *j
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

var _ store.Store = (*mockStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.JobStatus
	counters map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{
		statuses: make(map[uuid.UUID]models.JobStatus),
		counters: make(map[string]int64),
	}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status models.JobStatus, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (models.JobStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[jobID]
	return status, ok, nil
}

func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// ─── mock dispatcher ─────────────────────────────────────────────────────────

type mockDispatcher struct {
	mu        sync.Mutex
	started   []pipeline.Request
	cancelled []uuid.UUID
}

func (d *mockDispatcher) Start(req pipeline.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = append(d.started, req)
}

func (d *mockDispatcher) Cancel(jobID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = append(d.cancelled, jobID)
	return true
}

func (d *mockDispatcher) startedRequests() []pipeline.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pipeline.Request(nil), d.started...)
}

var _ handler.Dispatcher = (*mockDispatcher)(nil)

// ─── test harness ────────────────────────────────────────────────────────────

type testServer struct {
	server     *httptest.Server
	store      *mockStore
	cache      *mockCache
	dispatcher *mockDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ms := newMockStore()
	mc := newMockCache()
	md := &mockDispatcher{}

	deps := api.Dependencies{
		AllowedOrigins: []string{"http://localhost:3000"},

		SubmitHandler:   handler.NewSubmitHandler(ms, mc, md, 32<<20),
		StatusHandler:   handler.NewStatusHandler(ms, mc),
		CancelHandler:   handler.NewCancelHandler(ms, md),
		DeleteHandler:   handler.NewDeleteJobHandler(ms),
		ListJobsHandler: handler.NewListJobsHandler(ms),
	}

	srv := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(srv.Close)

	return &testServer{server: srv, store: ms, cache: mc, dispatcher: md}
}

// submitForm builds the multipart body for POST /api/v1/podcasts. A non-nil
// file entry adds a file part with the given content type.
type fileEntry struct {
	name        string
	contentType string
	content     []byte
}

func (ts *testServer) submit(t *testing.T, fields map[string]string, file *fileEntry) *http.Response {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.name))
		hdr.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/v1/podcasts", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.server.Client().Get(ts.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedStoredJob(t *testing.T, ts *testServer, status models.JobStatus) *models.Job {
	t.Helper()
	job := &models.Job{
		JobID:             uuid.New(),
		Status:            status,
		InputResourceType: models.ResourceTypeWeb,
		InputCollectionID: "col-seeded",
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	ts.store.mu.Lock()
	ts.store.jobs[job.JobID] = job
	ts.store.mu.Unlock()
	return job
}

// ─── submit ──────────────────────────────────────────────────────────────────

func TestSubmit_202_YouTube(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "youtube",
		"collection_id": "col-123",
		"resource_data": "https://youtube.com/watch?v=abc123",
	}, nil)

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	location := resp.Header.Get("Location")
	body := parseBody(t, resp)
	data := body["data"].(map[string]any)

	jobID, err := uuid.Parse(data["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "accepted", data["status"])
	assert.Equal(t, "/api/v1/podcasts/"+jobID.String(), data["status_url"])
	assert.Equal(t, data["status_url"], location)

	// The record exists before the pipeline was dispatched.
	job, err := ts.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.ResourceTypeYouTube, job.InputResourceType)
	require.NotNil(t, job.InputResourceURL)
	assert.Equal(t, "https://youtube.com/watch?v=abc123", *job.InputResourceURL)

	started := ts.dispatcher.startedRequests()
	require.Len(t, started, 1)
	assert.Equal(t, jobID, started[0].JobID)
	assert.Equal(t, "col-123", started[0].CollectionID)
}

func TestSubmit_202_File(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "file",
		"collection_id": "col-123",
	}, &fileEntry{name: "paper.pdf", contentType: "application/pdf", content: []byte("%PDF-1.4 test")})

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	jobID, err := uuid.Parse(data["job_id"].(string))
	require.NoError(t, err)

	// File jobs have no resource URL until the upload stage sets one.
	job, err := ts.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Nil(t, job.InputResourceURL)

	started := ts.dispatcher.startedRequests()
	require.Len(t, started, 1)
	assert.Equal(t, "paper.pdf", started[0].FileName)
	assert.Equal(t, "application/pdf", started[0].FileContentType)
	assert.Equal(t, []byte("%PDF-1.4 test"), started[0].FileContent)
}

func TestSubmit_400_UnknownResourceType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "carrier-pigeon",
		"collection_id": "col-123",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ts.dispatcher.startedRequests())
}

func TestSubmit_400_MissingCollectionID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "web",
		"resource_data": "https://example.com/post",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmit_400_FileWithoutPayload(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "file",
		"collection_id": "col-123",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Rejected synchronously: no record, no dispatch.
	ts.store.mu.Lock()
	assert.Empty(t, ts.store.jobs)
	ts.store.mu.Unlock()
	assert.Empty(t, ts.dispatcher.startedRequests())
}

func TestSubmit_400_NonPDFFile(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, map[string]string{
		"resource_type": "file",
		"collection_id": "col-123",
	}, &fileEntry{name: "notes.txt", contentType: "text/plain", content: []byte("hello")})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ts.dispatcher.startedRequests())
}

func TestSubmit_400_InvalidResourceData(t *testing.T) {
	ts := newTestServer(t)

	for _, bad := range []string{"", "not a url", "ftp://example.com/file"} {
		fields := map[string]string{
			"resource_type": "web",
			"collection_id": "col-123",
		}
		if bad != "" {
			fields["resource_data"] = bad
		}
		resp := ts.submit(t, fields, nil)
		assert.Equalf(t, http.StatusBadRequest, resp.StatusCode, "resource_data=%q", bad)
	}
	assert.Empty(t, ts.dispatcher.startedRequests())
}

// ─── status ──────────────────────────────────────────────────────────────────

func TestStatus_404_UnknownJob(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/podcasts/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errBody := parseBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestStatus_404_MalformedID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/podcasts/not-a-uuid")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatus_200_FromStore(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusProcessingTranscript)

	resp := ts.get(t, "/api/v1/podcasts/"+job.JobID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, job.JobID.String(), data["job_id"])
	assert.Equal(t, "processing_transcript", data["status"])
	assert.NotContains(t, data, "audio_url")
	assert.NotContains(t, data, "error")
}

func TestStatus_200_CacheFastPath(t *testing.T) {
	ts := newTestServer(t)

	// Cached non-terminal status answers without any store record.
	jobID := uuid.New()
	require.NoError(t, ts.cache.SetJobStatus(context.Background(), jobID, models.JobStatusProcessingAudio, time.Minute))

	resp := ts.get(t, "/api/v1/podcasts/"+jobID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "processing_audio", data["status"])
}

func TestStatus_200_TerminalBypassesCache(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusComplete)
	audioURL := "https://audio.example.com/episode.mp3"
	job.ResultAudioURL = &audioURL

	// A terminal cached status must not short-circuit: the store carries the
	// audio URL.
	require.NoError(t, ts.cache.SetJobStatus(context.Background(), job.JobID, models.JobStatusComplete, time.Minute))

	resp := ts.get(t, "/api/v1/podcasts/"+job.JobID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "complete", data["status"])
	assert.Equal(t, audioURL, data["audio_url"])
}

func TestStatus_200_FailedIncludesError(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusFailed)
	msg := "processing_transcript: collaborator unreachable"
	job.ErrorMessage = &msg

	resp := ts.get(t, "/api/v1/podcasts/"+job.JobID.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, msg, data["error"])
	assert.NotContains(t, data, "audio_url")
}

func TestStatus_TerminalResponseIsStable(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusComplete)
	audioURL := "https://audio.example.com/episode.mp3"
	job.ResultAudioURL = &audioURL

	read := func() []byte {
		resp := ts.get(t, "/api/v1/podcasts/"+job.JobID.String())
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return raw
	}

	assert.Equal(t, read(), read())
}

// ─── cancel ──────────────────────────────────────────────────────────────────

func TestCancel_202(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusProcessingTranscript)

	resp := ts.do(t, http.MethodPost, "/api/v1/podcasts/"+job.JobID.String()+"/cancel")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "cancelling", data["status"])

	ts.dispatcher.mu.Lock()
	defer ts.dispatcher.mu.Unlock()
	assert.Equal(t, []uuid.UUID{job.JobID}, ts.dispatcher.cancelled)
}

func TestCancel_404_UnknownJob(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/podcasts/"+uuid.NewString()+"/cancel")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancel_409_TerminalJob(t *testing.T) {
	ts := newTestServer(t)

	for _, status := range []models.JobStatus{
		models.JobStatusComplete, models.JobStatusFailed, models.JobStatusCancelled,
	} {
		job := seedStoredJob(t, ts, status)
		resp := ts.do(t, http.MethodPost, "/api/v1/podcasts/"+job.JobID.String()+"/cancel")
		assert.Equalf(t, http.StatusConflict, resp.StatusCode, "status %s", status)
	}

	ts.dispatcher.mu.Lock()
	defer ts.dispatcher.mu.Unlock()
	assert.Empty(t, ts.dispatcher.cancelled)
}

// ─── list jobs ───────────────────────────────────────────────────────────────

func TestListJobs_400_MissingStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/jobs")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListJobs_400_UnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/jobs?status=running")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListJobs_200(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		seedStoredJob(t, ts, models.JobStatusFailed)
	}
	seedStoredJob(t, ts, models.JobStatusPending)

	resp := ts.get(t, "/api/v1/jobs?status=failed&page=1&limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := parseBody(t, resp)

	data := body["data"].([]any)
	assert.Len(t, data, 2)

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, float64(1), meta["page"])
	assert.Equal(t, float64(2), meta["limit"])
	assert.Equal(t, true, meta["has_next"])
}

func TestListJobs_200_Empty(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/jobs?status=cancelled")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := parseBody(t, resp)
	assert.Equal(t, []any{}, body["data"])
}

// ─── delete ──────────────────────────────────────────────────────────────────

func TestDeleteJob_204(t *testing.T) {
	ts := newTestServer(t)
	job := seedStoredJob(t, ts, models.JobStatusComplete)

	resp := ts.do(t, http.MethodDelete, "/api/v1/podcasts/"+job.JobID.String())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := ts.store.GetJob(context.Background(), job.JobID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteJob_404(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodDelete, "/api/v1/podcasts/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── routing ─────────────────────────────────────────────────────────────────

func TestUnknownRoute_404(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthRoute_NotImplementedWithoutHandler(t *testing.T) {
	ts := newTestServer(t)

	// The harness wires no health handler; the router degrades to 501
	// instead of panicking.
	resp := ts.get(t, "/api/v1/health")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.server.URL+"/api/v1/podcasts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
