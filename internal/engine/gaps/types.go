// Package gaps implements the content-gap pipeline: ingestion with a source
// cache, comment signal filtering, LLM extraction and clustering, verification
// against the creator's transcripts, trend enrichment and scoring.
package gaps

import (
	"time"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// Mode selects how transcripts are obtained.
type Mode string

const (
	ModeCaptions   Mode = "captions"   // platform captions only; videos without them are skipped
	ModeTranscribe Mode = "transcribe" // captions, else audio download + speech-to-text
	ModeComments   Mode = "comments"   // comments only, no transcript
)

// ParseMode validates a mode name; empty means captions.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeCaptions:
		return ModeCaptions, true
	case ModeTranscribe, ModeComments:
		return Mode(s), true
	}
	return "", false
}

// IngestResult is the combined source material of one video. It is the unit
// stored in the source cache.
type IngestResult struct {
	VideoID    string              `json:"video_id"`
	Metadata   *engine.VideoRecord `json:"metadata"`
	Transcript *engine.Transcript  `json:"transcript"`
	Comments   []engine.Comment    `json:"comments"`
	FromCache  bool                `json:"-"`
}

// OutcomeStatus is the per-video result of an ingestion run.
type OutcomeStatus string

const (
	OutcomeOK         OutcomeStatus = "ok"
	OutcomeCached     OutcomeStatus = "cached"
	OutcomeNoCaptions OutcomeStatus = "no_captions"
	OutcomeFailed     OutcomeStatus = "failed"
)

// IngestOutcome records what happened to one video.
type IngestOutcome struct {
	VideoID string        `json:"video_id"`
	Status  OutcomeStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// PainPoint is one user-stated confusion or request extracted from comments.
type PainPoint struct {
	Topic      string `json:"topic"`
	Struggle   string `json:"struggle"`
	Sentiment  string `json:"sentiment"`
	Evidence   string `json:"evidence"`
	Engagement int    `json:"engagement"`
}

// ClusteredGap is a deduplicated topic backed by several pain points.
type ClusteredGap struct {
	Topic               string   `json:"topic"`
	Struggle            string   `json:"struggle"`
	TotalEngagement     int      `json:"total_engagement"`
	MentionCount        int      `json:"mention_count"`
	Actionable          bool     `json:"actionable"`
	ActionabilityReason string   `json:"actionability_reason,omitempty"`
	SampleEvidence      []string `json:"sample_evidence"`
	VideoAngles         []string `json:"video_angles,omitempty"`
}

// Status is the verification verdict of a gap.
type Status string

const (
	StatusTrueGap        Status = "TRUE_GAP"
	StatusUnderExplained Status = "UNDER_EXPLAINED"
	StatusSaturated      Status = "SATURATED"
)

// Valid reports whether s is one of the three verdicts.
func (s Status) Valid() bool {
	return s == StatusTrueGap || s == StatusUnderExplained || s == StatusSaturated
}

// NoMentionEvidence is the evidence attached to a TRUE_GAP.
const NoMentionEvidence = "No mention found"

// VerifiedGap is a clustered gap with its verification verdict. Inconclusive
// marks a verdict that is the conservative default because the backend
// failed or skipped the gap.
type VerifiedGap struct {
	ClusteredGap
	Status       Status `json:"gap_status"`
	Evidence     string `json:"verification_evidence"`
	Inconclusive bool   `json:"inconclusive,omitempty"`
}

// Trajectory classifies a topic's search-interest trend.
type Trajectory string

const (
	TrajectoryRising  Trajectory = "RISING"
	TrajectoryStable  Trajectory = "STABLE"
	TrajectoryFalling Trajectory = "FALLING"
	TrajectoryUnknown Trajectory = "UNKNOWN"
	TrajectoryError   Trajectory = "ERROR"
)

// TrendInfo is the trend lookup result for one topic.
type TrendInfo struct {
	Keyword    string     `json:"keyword"`
	Score      float64    `json:"score"`
	Trajectory Trajectory `json:"trajectory"`
	RecentAvg  float64    `json:"recent_avg"`
	EarlierAvg float64    `json:"earlier_avg"`
}

// Components are the four 0–100 inputs of the opportunity score.
type Components struct {
	CommentFrequency  float64 `json:"comment_frequency"`
	VisualOutlier     float64 `json:"visual_outlier"`
	TrendMomentum     float64 `json:"trend_momentum"`
	SaturationInverse float64 `json:"saturation_inverse"`
}

// Priority band of a scored opportunity.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ScoredOpportunity is a verified gap with its final score and rank.
type ScoredOpportunity struct {
	VerifiedGap
	Trend      TrendInfo  `json:"trend"`
	Components Components `json:"components"`
	Total      float64    `json:"total"`
	Priority   Priority   `json:"priority"`
	Rank       int        `json:"rank"`
}

// Counters are the per-stage counts of one pipeline run.
type Counters struct {
	VideosRequested  int `json:"videos_requested"`
	VideosIngested   int `json:"videos_ingested"`
	VideosCached     int `json:"videos_cached"`
	VideosNoCaptions int `json:"videos_no_captions"`
	VideosFailed     int `json:"videos_failed"`
	CommentsRaw      int `json:"comments_raw"`
	CommentsFiltered int `json:"comments_filtered"`
	Batches          int `json:"batches"`
	PainPoints       int `json:"pain_points"`
	Clustered        int `json:"clustered_gaps"`
	Verified         int `json:"verified_gaps"`
	Inconclusive     int `json:"inconclusive_gaps"`
	TrendLookups     int `json:"trend_lookups"`
	TrendErrors      int `json:"trend_errors"`
	Opportunities    int `json:"opportunities"`

	FilterFallback bool `json:"filter_fallback,omitempty"`
}

// RunReport is the output document of one pipeline run.
type RunReport struct {
	RunID         string              `json:"run_id"`
	Channel       string              `json:"channel"`
	ChannelID     string              `json:"channel_id"`
	Backend       string              `json:"backend"`
	Mode          Mode                `json:"mode"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Counters      Counters            `json:"counters"`
	Outcomes      []IngestOutcome     `json:"outcomes"`
	VerifiedGaps  []VerifiedGap       `json:"verified_gaps"`
	Opportunities []ScoredOpportunity `json:"opportunities"`
}
