package gaps

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// Trajectory thresholds: the recent window must differ from the earlier
// window by more than this fraction.
const trajectoryThreshold = 0.20

const maxKeywordWords = 5

// TrendSource returns a topic's search-interest series, oldest first.
type TrendSource interface {
	InterestOverTime(ctx context.Context, keyword string) ([]float64, error)
}

// Enricher attaches trend information to verified gaps.
type Enricher struct {
	src     TrendSource
	limiter *rate.Limiter
}

// NewEnricher creates an enricher that waits delay between lookups.
func NewEnricher(src TrendSource, delay time.Duration) *Enricher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Enricher{src: src, limiter: rate.NewLimiter(limit, 1)}
}

// Enrich looks up every TRUE_GAP and UNDER_EXPLAINED gap and returns the
// results keyed by topic. A failed lookup yields score 0 and ERROR for that
// topic only.
func (e *Enricher) Enrich(ctx context.Context, gaps []VerifiedGap) map[string]TrendInfo {
	out := make(map[string]TrendInfo)
	for _, g := range gaps {
		if g.Status != StatusTrueGap && g.Status != StatusUnderExplained {
			continue
		}
		if _, done := out[g.Topic]; done {
			continue
		}
		kw := CleanKeyword(g.Topic)
		if kw == "" {
			out[g.Topic] = TrendInfo{Keyword: kw, Trajectory: TrajectoryUnknown}
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			out[g.Topic] = TrendInfo{Keyword: kw, Trajectory: TrajectoryError}
			continue
		}

		series, err := e.src.InterestOverTime(ctx, kw)
		if err != nil {
			engine.IncrTrendErrors()
			slog.Warn("trends: lookup failed", slog.String("keyword", kw), slog.Any("error", err))
			out[g.Topic] = TrendInfo{Keyword: kw, Trajectory: TrajectoryError}
			continue
		}
		out[g.Topic] = AnalyzeSeries(kw, series)
	}
	return out
}

// AnalyzeSeries classifies a series by comparing the mean of its last
// quarter with the mean of the quarter before it. Score is the recent mean.
func AnalyzeSeries(keyword string, series []float64) TrendInfo {
	info := TrendInfo{Keyword: keyword, Trajectory: TrajectoryUnknown}
	if len(series) == 0 {
		return info
	}
	w := max(len(series)/4, 1)
	info.RecentAvg = mean(series[len(series)-w:])
	info.Score = info.RecentAvg
	if len(series) < 2*w {
		return info
	}
	info.EarlierAvg = mean(series[len(series)-2*w : len(series)-w])

	switch {
	case info.EarlierAvg == 0 && info.RecentAvg > 0:
		info.Trajectory = TrajectoryRising
	case info.EarlierAvg == 0:
		info.Trajectory = TrajectoryStable
	case info.RecentAvg > info.EarlierAvg*(1+trajectoryThreshold):
		info.Trajectory = TrajectoryRising
	case info.RecentAvg < info.EarlierAvg*(1-trajectoryThreshold):
		info.Trajectory = TrajectoryFalling
	default:
		info.Trajectory = TrajectoryStable
	}
	return info
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// CleanKeyword turns a topic into a search query: lowercase, punctuation
// other than + # - . dropped, at most five words.
func CleanKeyword(topic string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '#', r == '-', r == '.':
			return unicode.ToLower(r)
		case unicode.IsSpace(r), r == '/', r == '_', r == ',':
			return ' '
		}
		return -1
	}, topic)
	words := strings.Fields(cleaned)
	if len(words) > maxKeywordWords {
		words = words[:maxKeywordWords]
	}
	for i, w := range words {
		words[i] = strings.Trim(w, ".-")
	}
	return strings.Join(strings.Fields(strings.Join(words, " ")), " ")
}
