package engine

import "time"

// --- Source material types (persist across runs via the source cache) ---

// VideoRecord is the immutable metadata block of one video.
type VideoRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	PublishedAt  time.Time `json:"published_at"`
	DurationSec  int       `json:"duration_sec"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	CommentCount int64     `json:"comment_count"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// Segment is one timed caption line.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the spoken text of a video. An empty transcript is valid:
// it means no caption source existed.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether the transcript carries no text.
func (t Transcript) Empty() bool {
	return t.Text == "" && len(t.Segments) == 0
}

// Comment is one top-level audience comment.
type Comment struct {
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	Likes       int       `json:"likes"`
	PublishedAt time.Time `json:"published_at"`
	SignalScore int       `json:"signal_score,omitempty"` // set by the signal filter
}

// Channel identifies a creator channel on the video platform.
type Channel struct {
	ID              string `json:"id"`
	Handle          string `json:"handle,omitempty"`
	Title           string `json:"title"`
	UploadsPlaylist string `json:"uploads_playlist,omitempty"`
}

// --- MCP tool inputs/outputs ---

// ContentGapsInput is the input for the content_gaps tool.
type ContentGapsInput struct {
	Channel     string   `json:"channel" jsonschema:"Channel handle (@name), channel ID (UC...) or channel URL"`
	Videos      int      `json:"videos,omitempty" jsonschema:"Number of recent uploads to analyze (default: 10, max: 50)"`
	Mode        string   `json:"mode,omitempty" jsonschema:"Source mode: captions (default, skip videos without captions), transcribe (download audio when captions are missing), comments (comments only)"`
	Backend     string   `json:"backend,omitempty" jsonschema:"LLM backend: chat (default), gemini, local"`
	Competitors []string `json:"competitors,omitempty" jsonschema:"Competitor channel handles used for the competitive outlier score"`
	Sample      bool     `json:"sample,omitempty" jsonschema:"Sample mode: 3 videos, 100 comments each"`

	UncaptionedComments bool `json:"uncaptioned_comments,omitempty" jsonschema:"Captions mode only: still read the comments of videos without captions"`
}

// GapHistoryInput is the input for the gap_history tool.
type GapHistoryInput struct {
	Channel string `json:"channel,omitempty" jsonschema:"Filter by channel handle or ID"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Max runs to return (default: 10)"`
}

// SignalFilterInput is the input for the signal_filter tool.
type SignalFilterInput struct {
	Comments []string `json:"comments" jsonschema:"Raw comment texts to score"`
}
