package ledger

import "time"

// Status is the lifecycle state of a transcription job. Exactly one status
// holds at any time; completed and error are terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no transition leaves this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// JobConfig holds the transcription settings captured at submission.
type JobConfig struct {
	Model              string
	KeepSourceLanguage bool
	SkipSubtitle       bool
	SegmentLength      int // seconds
}

// Job is the authoritative record of one transcription request.
type Job struct {
	JobID              string    `db:"job_id"`
	Model              string    `db:"model"`
	KeepSourceLanguage bool      `db:"keep_source_language"`
	SkipSubtitle       bool      `db:"skip_subtitle"`
	SegmentLength      int       `db:"segment_length"`
	Status             Status    `db:"status"`
	Progress           int       `db:"progress"`
	Message            string    `db:"message"`
	PauseRequested     bool      `db:"pause_requested"`
	NextSegment        int       `db:"next_segment"`
	SegmentCount       int       `db:"segment_count"`
	ClaimToken         string    `db:"claim_token"`
	Language           string    `db:"language"`
	OriginalFilename   string    `db:"original_filename"`
	InputLocation      string    `db:"input_location"`
	TranscriptLocation string    `db:"transcript_location"`
	SubtitleLocation   string    `db:"subtitle_location"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Paused reports the externally visible paused flag. It is true only once the
// runner has observed the pause request and committed the paused status.
func (j *Job) Paused() bool {
	return j.Status == StatusPaused
}

// OutputReady reports whether the assembled output artifacts may be fetched.
func (j *Job) OutputReady() bool {
	return j.Status == StatusCompleted
}

// Config returns the transcription settings of the job.
func (j *Job) Config() JobConfig {
	return JobConfig{
		Model:              j.Model,
		KeepSourceLanguage: j.KeepSourceLanguage,
		SkipSubtitle:       j.SkipSubtitle,
		SegmentLength:      j.SegmentLength,
	}
}

// SegmentResult is the durably committed outcome of one processed segment.
// Start and End are stream-absolute seconds.
type SegmentResult struct {
	JobID string  `db:"job_id"`
	Index int     `db:"idx"`
	Start float64 `db:"start_sec"`
	End   float64 `db:"end_sec"`
	Text  string  `db:"text"`
}
