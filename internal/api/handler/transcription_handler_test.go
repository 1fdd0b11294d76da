package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran-dev/transcribe-be/internal/api/dto"
	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/config"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

type fakePublisher struct {
	published [][]byte
	err       error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

type apiFixture struct {
	router    *gin.Engine
	store     *ledger.MemoryStore
	ledger    *ledger.Ledger
	artifacts *artifact.Store
	publisher *fakePublisher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	artifacts, err := artifact.NewStore(t.TempDir(), time.Hour, logger)
	require.NoError(t, err)

	fix := &apiFixture{
		store:     ledger.NewMemoryStore(),
		artifacts: artifacts,
		publisher: &fakePublisher{},
	}
	fix.ledger = ledger.New(fix.store, logger)

	h := NewTranscriptionHandler(&Dependencies{
		Logger:    logger,
		Ledger:    fix.ledger,
		Artifacts: artifacts,
		Publisher: fix.publisher,
		Transcription: config.TranscriptionConfig{
			DefaultModel:         "base",
			DefaultSegmentLength: 60,
			AllowedModels:        []string{"tiny", "base", "small", "medium", "large-v3"},
		},
	})

	r := gin.New()
	v1 := r.Group("/api/v1/transcriptions")
	v1.POST("", h.SubmitJob)
	v1.GET("", h.ListJobs)
	v1.GET("/:job_id", h.GetJob)
	v1.POST("/:job_id/pause", h.PauseJob)
	v1.POST("/:job_id/resume", h.ResumeJob)
	v1.POST("/:job_id/cancel", h.CancelJob)
	v1.DELETE("/:job_id", h.DeleteJob)
	v1.GET("/:job_id/transcript", h.DownloadTranscript)
	v1.GET("/:job_id/subtitle", h.DownloadSubtitle)
	fix.router = r
	return fix
}

func (f *apiFixture) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func multipartUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", "lecture.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("media-bytes"))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (f *apiFixture) submitJob(t *testing.T, fields map[string]string) dto.JobDTO {
	t.Helper()
	body, contentType := multipartUpload(t, fields)
	w := f.do(t, http.MethodPost, "/api/v1/transcriptions", body, contentType)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSubmitJob(t *testing.T) {
	fix := newAPIFixture(t)

	resp := fix.submitJob(t, map[string]string{
		"model":                "small",
		"keep_source_language": "true",
		"segment_length":       "30",
	})

	assert.Equal(t, "queued", resp.Status)
	assert.Zero(t, resp.Progress)
	assert.Equal(t, "small", resp.Model)
	assert.True(t, resp.KeepSourceLanguage)
	assert.Equal(t, 30, resp.SegmentLength)
	assert.Equal(t, "lecture.mp4", resp.OriginalFilename)
	assert.False(t, resp.Paused)
	assert.False(t, resp.OutputReady)

	// One dispatch message carrying the job id.
	require.Len(t, fix.publisher.published, 1)
	var msg struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(fix.publisher.published[0], &msg))
	assert.Equal(t, resp.JobID, msg.JobID)

	// The upload landed under the job's directory.
	job, err := fix.ledger.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	data, err := fix.artifacts.Get(job.InputLocation)
	require.NoError(t, err)
	assert.Equal(t, "media-bytes", string(data))
}

func TestSubmitJob_AppliesDefaults(t *testing.T) {
	fix := newAPIFixture(t)

	resp := fix.submitJob(t, nil)
	assert.Equal(t, "base", resp.Model)
	assert.Equal(t, 60, resp.SegmentLength)
}

func TestSubmitJob_RejectsUnknownModel(t *testing.T) {
	fix := newAPIFixture(t)

	body, contentType := multipartUpload(t, map[string]string{"model": "gigantic"})
	w := fix.do(t, http.MethodPost, "/api/v1/transcriptions", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "gigantic")
	assert.Empty(t, fix.publisher.published)
}

func TestSubmitJob_RequiresFile(t *testing.T) {
	fix := newAPIFixture(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("model", "base"))
	require.NoError(t, mw.Close())

	w := fix.do(t, http.MethodPost, "/api/v1/transcriptions", body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJob_Errors(t *testing.T) {
	fix := newAPIFixture(t)

	w := fix.do(t, http.MethodGet, "/api/v1/transcriptions/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+uuid.New().String(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseJob_ConflictWhileQueued(t *testing.T) {
	fix := newAPIFixture(t)
	resp := fix.submitJob(t, nil)

	w := fix.do(t, http.MethodPost, "/api/v1/transcriptions/"+resp.JobID+"/pause", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "queued")
}

func TestPauseResumeFlow(t *testing.T) {
	ctx := context.Background()
	fix := newAPIFixture(t)
	resp := fix.submitJob(t, nil)

	claimed, err := fix.ledger.Claim(ctx, resp.JobID, "w1")
	require.NoError(t, err)

	// The pause request is acknowledged while the job keeps processing.
	w := fix.do(t, http.MethodPost, "/api/v1/transcriptions/"+resp.JobID+"/pause", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var afterPause dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &afterPause))
	assert.Equal(t, "processing", afterPause.Status)
	assert.False(t, afterPause.Paused)

	_, err = fix.ledger.CommitPaused(ctx, resp.JobID, claimed.ClaimToken)
	require.NoError(t, err)

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var pausedDTO dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pausedDTO))
	assert.Equal(t, "paused", pausedDTO.Status)
	assert.True(t, pausedDTO.Paused)

	w = fix.do(t, http.MethodPost, "/api/v1/transcriptions/"+resp.JobID+"/resume", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resumed dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resumed))
	assert.Equal(t, "processing", resumed.Status)
	assert.False(t, resumed.Paused)

	// Submission and resume each published one dispatch message.
	assert.Len(t, fix.publisher.published, 2)

	// Resuming twice is a conflict.
	w = fix.do(t, http.MethodPost, "/api/v1/transcriptions/"+resp.JobID+"/resume", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelAndDelete(t *testing.T) {
	fix := newAPIFixture(t)
	resp := fix.submitJob(t, nil)

	// Deleting a non-terminal job is refused.
	w := fix.do(t, http.MethodDelete, "/api/v1/transcriptions/"+resp.JobID, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = fix.do(t, http.MethodPost, "/api/v1/transcriptions/"+resp.JobID+"/cancel", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var canceled dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &canceled))
	assert.Equal(t, "error", canceled.Status)

	w = fix.do(t, http.MethodDelete, "/api/v1/transcriptions/"+resp.JobID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloads(t *testing.T) {
	ctx := context.Background()
	fix := newAPIFixture(t)
	resp := fix.submitJob(t, nil)

	// Not ready yet.
	w := fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID+"/transcript", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "queued")

	claimed, err := fix.ledger.Claim(ctx, resp.JobID, "w1")
	require.NoError(t, err)
	transcriptLoc, err := fix.artifacts.Put(artifact.KindTranscript, resp.JobID, []byte("hello transcript"))
	require.NoError(t, err)
	subtitleLoc, err := fix.artifacts.Put(artifact.KindSubtitle, resp.JobID, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"))
	require.NoError(t, err)
	_, err = fix.ledger.CommitCompleted(ctx, resp.JobID, claimed.ClaimToken, transcriptLoc, subtitleLoc, "English")
	require.NoError(t, err)

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID+"/transcript", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello transcript", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), resp.JobID+".txt")

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID+"/subtitle", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "00:00:00,000 --> 00:00:01,000")

	// The status now advertises the subtitle.
	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions/"+resp.JobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var final dto.JobDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &final))
	assert.True(t, final.OutputReady)
	assert.True(t, final.SubtitleReady)
	assert.Equal(t, resp.JobID+".srt", final.SubtitleFilename)
}

func TestListJobs_CursorPagination(t *testing.T) {
	ctx := context.Background()
	fix := newAPIFixture(t)

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, fix.store.CreateJob(ctx, &ledger.Job{
			JobID:     uuid.New().String(),
			Model:     "base",
			Status:    ledger.StatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w := fix.do(t, http.MethodGet, "/api/v1/transcriptions?page_size=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var page dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Jobs, 2)
	require.NotEmpty(t, page.NextCursor)

	w = fix.do(t, http.MethodGet, fmt.Sprintf("/api/v1/transcriptions?page_size=2&cursor=%s", page.NextCursor), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rest dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rest))
	require.Len(t, rest.Jobs, 1)
	assert.Empty(t, rest.NextCursor)

	// Newest first across pages, no overlap.
	assert.Greater(t, page.Jobs[0].CreatedAt, page.Jobs[1].CreatedAt)
	assert.Greater(t, page.Jobs[1].CreatedAt, rest.Jobs[0].CreatedAt)
}

func TestListJobs_StatusFilter(t *testing.T) {
	fix := newAPIFixture(t)
	resp := fix.submitJob(t, nil)

	w := fix.do(t, http.MethodGet, "/api/v1/transcriptions?status=queued", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var page dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, resp.JobID, page.Jobs[0].JobID)

	w = fix.do(t, http.MethodGet, "/api/v1/transcriptions?status=completed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Empty(t, empty.Jobs)
}
