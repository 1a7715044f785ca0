// CLAUDE:SUMMARY Run data model: captured frames, per-offset comparison records with status tags, and the run summary.
package compare

import (
	"image"
	"time"

	"github.com/hazyhaar/viewdiff/imagediff"
)

// Status tags a record's outcome. Failure handling is visible in the data
// model, not hidden in control flow: a consumer can distinguish "no visual
// difference found" from "this offset could not be compared".
type Status string

const (
	// StatusOK means both frames were captured and diffed.
	StatusOK Status = "ok"
	// StatusCaptureFailed means at least one side's capture failed; diff and
	// analysis were skipped for this offset.
	StatusCaptureFailed Status = "capture_failed"
	// StatusDiffFailed means both captures succeeded but the diff engine
	// rejected the pair (dimension mismatch). Frames are retained.
	StatusDiffFailed Status = "diff_failed"
)

// Frame is one captured viewport bitmap with its capture diagnostics.
type Frame struct {
	RequestedOffset int `json:"requested_offset"`
	// ActualOffset may diverge from the request on pages that clamp or
	// restrict scrolling; retained for diagnostics.
	ActualOffset int `json:"actual_offset"`
	Width        int `json:"width"`
	Height       int `json:"height"`
	// DriftWarning is set when |actual - requested| exceeded the configured
	// tolerance. Non-fatal.
	DriftWarning bool `json:"drift_warning,omitempty"`
	// Error is the capture error marker for this side; empty means success.
	Error string `json:"error,omitempty"`

	// Image is the decoded bitmap. Released after record assembly unless
	// frame retention is configured or the diff rejected the pair (a
	// diff-failed record has no composite, so the raw frames stay).
	Image image.Image `json:"-"`
}

// OK reports whether this frame was captured successfully.
func (f *Frame) OK() bool { return f != nil && f.Error == "" }

// Record is one per-offset comparison result. Immutable once appended to
// the run's record list.
type Record struct {
	// Index is 1-based, sequential, and gap-free across the run regardless
	// of per-offset failures.
	Index        int    `json:"index"`
	ScrollOffset int    `json:"scroll_offset"`
	Status       Status `json:"status"`

	FrameA *Frame `json:"frame_a"`
	FrameB *Frame `json:"frame_b"`

	// Score is the structural similarity in [0,1]; nil when the pair could
	// not be diffed.
	Score   *float64           `json:"similarity_score"`
	Regions []imagediff.Region `json:"regions,omitempty"`
	// DiffError carries the diff engine's rejection for diff_failed records.
	DiffError string `json:"diff_error,omitempty"`

	// AnalysisText is the vision model's bullet summary; opaque line-oriented
	// text. AnalysisOK marks explicit presence — an empty reply is absent,
	// never an empty-string sentinel.
	AnalysisText string `json:"analysis_text,omitempty"`
	AnalysisOK   bool   `json:"analysis_ok"`

	// Composite is frame B with difference regions outlined.
	Composite image.Image `json:"-"`
}

// Summary is the run-level fold over all records.
type Summary struct {
	URLA          string    `json:"url_a"`
	URLB          string    `json:"url_b"`
	ViewportLabel string    `json:"viewport"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	HeightA       int       `json:"content_height_a"`
	HeightB       int       `json:"content_height_b"`
	PlannedFrames int       `json:"planned_frames"`
	FrameCount    int       `json:"frame_count"`
	TotalRegions  int       `json:"total_regions"`
	// MeanSimilarity is nil only when zero records produced a score
	// (total capture failure).
	MeanSimilarity  *float64  `json:"mean_similarity"`
	CaptureFailures int       `json:"capture_failures"`
	// Complete is false when the run stopped early (guard trip or
	// cancellation) or any capture failed.
	Complete   bool      `json:"complete"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunResult is the immutable outcome handed to the reporting collaborator.
type RunResult struct {
	RunID   string    `json:"run_id"`
	Records []*Record `json:"records"`
	Summary Summary   `json:"summary"`
}
