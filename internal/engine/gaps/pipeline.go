package gaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/sources"
)

// ErrNoVideos is returned when the channel has no uploads to analyze, or when
// none of its uploads could be ingested.
var ErrNoVideos = errors.New("no videos found")

// Run limits.
const (
	DefaultVideos       = 10
	MaxVideos           = 50
	SampleVideos        = 3
	SampleComments      = 100
	competitorUploads   = 20
	defaultIngestPool   = 4
	defaultCommentsPool = 6
)

// Platform is the video platform as used by a pipeline run.
type Platform interface {
	VideoSource
	ResolveChannel(ctx context.Context, raw string) (engine.Channel, error)
	RecentUploads(ctx context.Context, ch engine.Channel, n int) ([]engine.VideoRecord, error)
	RecentTitles(ctx context.Context, channelRef string, n int) ([]string, error)
}

// Deps are the collaborators of a pipeline. Cache, Audio and Transcriber
// are optional.
type Deps struct {
	Platform    Platform
	Backend     engine.Backend
	Trends      TrendSource
	Cache       *SourceCache
	Audio       AudioSource
	Transcriber func() sources.Transcriber
}

// Options select what one run analyzes.
type Options struct {
	Channel     string
	Videos      int
	Mode        Mode
	Competitors []string
	Sample      bool

	// UncaptionedComments still reads the comments of videos skipped for
	// missing captions in captions mode. Off by default: such videos are
	// skipped entirely.
	UncaptionedComments bool
}

// Pipeline runs the content-gap stages for one channel.
type Pipeline struct {
	deps           Deps
	filter         FilterOptions
	ingestWorkers  int
	commentWorkers int
	maxComments    int
	minMentions    int
	trendsDelay    time.Duration
	transcriptLen  int
}

// NewPipeline creates a pipeline. Worker counts and thresholds come from c.
func NewPipeline(d Deps, c engine.Config, filter FilterOptions) *Pipeline {
	p := &Pipeline{
		deps:           d,
		filter:         filter,
		ingestWorkers:  c.IngestWorkers,
		commentWorkers: c.CommentWorkers,
		maxComments:    c.MaxComments,
		minMentions:    c.MinMentions,
		trendsDelay:    c.TrendsDelay,
		transcriptLen:  c.TranscriptChars,
	}
	if p.ingestWorkers <= 0 {
		p.ingestWorkers = defaultIngestPool
	}
	if p.commentWorkers <= 0 {
		p.commentWorkers = defaultCommentsPool
	}
	return p
}

// BackendName returns the name of the configured LLM backend.
func (p *Pipeline) BackendName() string { return p.deps.Backend.Name() }

// Run executes one pipeline run. It returns an error only for setup failures
// (unknown channel, no uploads, no processable video) or cancellation;
// per-video and per-stage failures are logged and counted in the report.
func (p *Pipeline) Run(ctx context.Context, opts Options) (RunReport, error) {
	engine.IncrPipelineRuns()
	start := time.Now()

	mode := opts.Mode
	if mode == "" {
		mode = ModeCaptions
	}
	videos := opts.Videos
	if videos <= 0 {
		videos = DefaultVideos
	}
	videos = min(videos, MaxVideos)
	maxComments := p.maxComments
	if opts.Sample {
		videos = min(videos, SampleVideos)
		maxComments = SampleComments
	}

	ch, err := p.deps.Platform.ResolveChannel(ctx, opts.Channel)
	if err != nil {
		return RunReport{}, fmt.Errorf("resolve channel: %w", err)
	}
	uploads, err := p.deps.Platform.RecentUploads(ctx, ch, videos)
	if err != nil {
		return RunReport{}, fmt.Errorf("list uploads of %s: %w", ch.ID, err)
	}
	if len(uploads) == 0 {
		return RunReport{}, fmt.Errorf("channel %s: %w", ch.ID, ErrNoVideos)
	}

	report := RunReport{
		RunID:       uuid.NewString(),
		Channel:     opts.Channel,
		ChannelID:   ch.ID,
		Backend:     p.deps.Backend.Name(),
		Mode:        mode,
		GeneratedAt: time.Now().UTC(),
	}
	report.Counters.VideosRequested = len(uploads)
	logger := slog.With(slog.String("run", report.RunID), slog.String("channel", ch.ID))
	logger.Info("pipeline: start", slog.Int("videos", len(uploads)), slog.String("mode", string(mode)),
		slog.String("backend", report.Backend))

	ids := make([]string, len(uploads))
	for i, u := range uploads {
		ids[i] = u.ID
	}
	collected := p.ingest(ctx, ids, mode, maxComments, opts.UncaptionedComments, &report)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(collected) == 0 {
		logger.Warn("pipeline: no video could be processed",
			slog.Int("no_captions", report.Counters.VideosNoCaptions),
			slog.Int("failed", report.Counters.VideosFailed))
		return report, fmt.Errorf("channel %s: none of %d videos processable: %w", ch.ID, len(uploads), ErrNoVideos)
	}

	var all []engine.Comment
	var transcripts []SourceTranscript
	for _, r := range collected {
		all = append(all, r.Comments...)
		if r.Transcript != nil && !r.Transcript.Empty() && r.Metadata != nil {
			transcripts = append(transcripts, SourceTranscript{Title: r.Metadata.Title, Text: transcriptText(*r.Transcript)})
		}
	}
	report.Counters.CommentsRaw = len(all)

	filtered := FilterComments(all, p.filter)
	if len(filtered) == 0 && len(all) > 0 {
		logger.Info("pipeline: signal filter kept nothing, using most-liked comments")
		filtered = FallbackTopLiked(all, DefaultFallbackTopN)
		report.Counters.FilterFallback = true
	}
	report.Counters.CommentsFiltered = len(filtered)

	points, batches := NewExtractor(p.deps.Backend).Extract(ctx, filtered, ch.Title)
	report.Counters.Batches = batches
	report.Counters.PainPoints = len(points)

	clustered := NewClusterer(p.deps.Backend, p.minMentions).Cluster(ctx, points)
	report.Counters.Clustered = len(clustered)

	verified := NewVerifier(p.deps.Backend, p.transcriptLen).Verify(ctx, clustered, transcripts)
	report.VerifiedGaps = verified
	report.Counters.Verified = len(verified)
	for _, g := range verified {
		if g.Inconclusive {
			report.Counters.Inconclusive++
		}
	}

	var trends map[string]TrendInfo
	if p.deps.Trends != nil {
		trends = NewEnricher(p.deps.Trends, p.trendsDelay).Enrich(ctx, verified)
	}
	report.Counters.TrendLookups = len(trends)
	for _, t := range trends {
		if t.Trajectory == TrajectoryError {
			report.Counters.TrendErrors++
		}
	}

	competitors := p.competitorTitles(ctx, opts.Competitors)
	report.Opportunities = Score(ComputeComponents(verified, trends, competitors))
	report.Counters.Opportunities = len(report.Opportunities)

	logger.Info("pipeline: done",
		slog.Int("ingested", report.Counters.VideosIngested),
		slog.Int("pain_points", report.Counters.PainPoints),
		slog.Int("gaps", report.Counters.Verified),
		slog.Duration("elapsed", time.Since(start)))
	return report, ctx.Err()
}

// ingest fetches every video through the full-ingest pool, then reads the
// comments of videos without captions through the comment-only pool.
func (p *Pipeline) ingest(ctx context.Context, ids []string, mode Mode, maxComments int, uncaptionedComments bool, report *RunReport) []IngestResult {
	opts := []IngestorOption{}
	if p.deps.Cache != nil {
		opts = append(opts, WithCache(p.deps.Cache))
	}
	if mode == ModeTranscribe && p.deps.Audio != nil && p.deps.Transcriber != nil {
		opts = append(opts, WithAudioFallback(p.deps.Audio, p.deps.Transcriber))
	}
	full := NewIngestor(p.deps.Platform, mode, maxComments, opts...)

	var (
		collected   []IngestResult
		uncaptioned []string
		partial     = map[string]IngestResult{}
	)
	for _, res := range RunPool(ctx, ids, p.ingestWorkers, full.Ingest) {
		outcome := IngestOutcome{VideoID: res.Item, Status: OutcomeOK}
		switch {
		case res.Err == nil:
			if res.Value.FromCache {
				outcome.Status = OutcomeCached
				report.Counters.VideosCached++
			}
			report.Counters.VideosIngested++
			engine.IncrVideosIngested()
			collected = append(collected, res.Value)
		case errors.Is(res.Err, sources.ErrNoCaptions):
			outcome.Status = OutcomeNoCaptions
			report.Counters.VideosNoCaptions++
			engine.IncrVideosSkipped()
			uncaptioned = append(uncaptioned, res.Item)
			partial[res.Item] = res.Value
		default:
			outcome.Status = OutcomeFailed
			outcome.Error = res.Err.Error()
			report.Counters.VideosFailed++
			engine.IncrVideosFailed()
			slog.Warn("pipeline: ingest failed", slog.String("id", res.Item), slog.Any("error", res.Err))
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if len(uncaptioned) == 0 || !uncaptionedComments {
		return collected
	}
	commentsOnly := func(ctx context.Context, id string) (IngestResult, error) {
		return full.Comments(ctx, partial[id])
	}
	for _, res := range RunPool(ctx, uncaptioned, p.commentWorkers, commentsOnly) {
		if res.Err != nil {
			slog.Warn("pipeline: comment fetch failed", slog.String("id", res.Item), slog.Any("error", res.Err))
			continue
		}
		collected = append(collected, res.Value)
	}
	return collected
}

// competitorTitles fetches the recent titles of each competitor, skipping
// the ones that fail.
func (p *Pipeline) competitorTitles(ctx context.Context, competitors []string) map[string][]string {
	out := make(map[string][]string, len(competitors))
	for _, c := range competitors {
		titles, err := p.deps.Platform.RecentTitles(ctx, c, competitorUploads)
		if err != nil {
			slog.Warn("pipeline: competitor skipped", slog.String("competitor", c), slog.Any("error", err))
			continue
		}
		out[c] = titles
	}
	return out
}

func transcriptText(t engine.Transcript) string {
	if t.Text != "" {
		return t.Text
	}
	var b []byte
	for i, s := range t.Segments {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, s.Text...)
	}
	return string(b)
}
