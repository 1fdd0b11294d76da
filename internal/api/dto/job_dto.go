package dto

import (
	"path"
	"time"

	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// SubmitJobRequest carries the multipart form fields of a submission. The
// media file itself travels as the "file" part.
type SubmitJobRequest struct {
	Model              string `form:"model"`
	KeepSourceLanguage bool   `form:"keep_source_language"`
	SkipSubtitle       bool   `form:"skip_subtitle"`
	SegmentLength      int    `form:"segment_length"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID              string `json:"job_id"`
	Status             string `json:"status"`
	Progress           int    `json:"progress"`
	Message            string `json:"message"`
	Paused             bool   `json:"paused"`
	OutputReady        bool   `json:"output_ready"`
	SubtitleReady      bool   `json:"subtitle_ready"`
	SubtitleFilename   string `json:"subtitle_filename,omitempty"`
	Model              string `json:"model"`
	KeepSourceLanguage bool   `json:"keep_source_language"`
	SkipSubtitle       bool   `json:"skip_subtitle"`
	SegmentLength      int    `json:"segment_length"`
	Language           string `json:"language,omitempty"`
	OriginalFilename   string `json:"original_filename"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// FromJob maps a ledger snapshot to its API representation.
func FromJob(job *ledger.Job) JobDTO {
	d := JobDTO{
		JobID:              job.JobID,
		Status:             string(job.Status),
		Progress:           job.Progress,
		Message:            job.Message,
		Paused:             job.Paused(),
		OutputReady:        job.OutputReady(),
		Model:              job.Model,
		KeepSourceLanguage: job.KeepSourceLanguage,
		SkipSubtitle:       job.SkipSubtitle,
		SegmentLength:      job.SegmentLength,
		Language:           job.Language,
		OriginalFilename:   job.OriginalFilename,
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
	}
	if job.OutputReady() && job.SubtitleLocation != "" {
		d.SubtitleReady = true
		d.SubtitleFilename = path.Base(job.SubtitleLocation)
	}
	return d
}
