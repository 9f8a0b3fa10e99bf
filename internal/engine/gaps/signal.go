package gaps

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// Default signal filter parameters.
const (
	DefaultMinCommentLength = 15
	DefaultFloor            = 20
	DefaultFallbackTopN     = 100
)

var defaultHighIntent = []string{
	"how do", "how to", "how can", "how does", "how would",
	"can you", "could you", "would you", "please make", "please do", "please explain",
	"make a video", "video on", "tutorial on", "part 2", "deep dive",
	"i don't understand", "i dont understand", "don't get", "confused", "confusing",
	"struggle", "struggling", "stuck", "help me", "any tips", "any advice",
	"what is the difference", "difference between", "explain", "why does", "why is",
	"doesn't work", "not working", "i wish", "would love", "i need",
}

var defaultLowIntent = []string{
	"great video", "nice video", "good video", "awesome", "amazing", "love this",
	"love your", "thanks", "thank you", "first", "lol", "lmao", "subscribed", "cool",
	"beautiful", "legend", "🔥", "❤",
}

// FilterOptions parameterizes the signal filter. The zero value is not
// useful; start from DefaultFilterOptions.
type FilterOptions struct {
	MinLength  int      `yaml:"min_length"`
	Floor      int      `yaml:"floor"`
	HighIntent []string `yaml:"high_intent"`
	LowIntent  []string `yaml:"low_intent"`
}

// DefaultFilterOptions returns the built-in phrase lists and thresholds.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		MinLength:  DefaultMinCommentLength,
		Floor:      DefaultFloor,
		HighIntent: slices.Clone(defaultHighIntent),
		LowIntent:  slices.Clone(defaultLowIntent),
	}
}

// LoadFilterOptions overlays a YAML phrase file on the defaults. Fields
// absent from the file keep their default value; an empty path returns the
// defaults unchanged.
func LoadFilterOptions(path string) (FilterOptions, error) {
	opts := DefaultFilterOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("signal phrases: %w", err)
	}
	var file FilterOptions
	if err := yaml.Unmarshal(data, &file); err != nil {
		return opts, fmt.Errorf("signal phrases %s: %w", path, err)
	}
	if file.MinLength > 0 {
		opts.MinLength = file.MinLength
	}
	if file.Floor > 0 {
		opts.Floor = file.Floor
	}
	if len(file.HighIntent) > 0 {
		opts.HighIntent = lowerAll(file.HighIntent)
	}
	if len(file.LowIntent) > 0 {
		opts.LowIntent = lowerAll(file.LowIntent)
	}
	return opts, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ScoreComment returns 2×high-intent matches + 3 if the text asks a question
// − low-intent matches. Each phrase counts at most once and must match on
// word boundaries.
func ScoreComment(text string, opts FilterOptions) int {
	lower := strings.ToLower(text)
	score := 0
	for _, p := range opts.HighIntent {
		if containsPhrase(lower, p) {
			score += 2
		}
	}
	if strings.Contains(text, "?") {
		score += 3
	}
	for _, p := range opts.LowIntent {
		if containsPhrase(lower, p) {
			score--
		}
	}
	return score
}

func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for off := 0; ; {
		i := strings.Index(text[off:], phrase)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(phrase)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		off = start + 1
	}
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// FilterComments drops short and low-signal comments, sorts survivors by
// (score, likes) descending and keeps the top half, never fewer than
// opts.Floor when at least that many survive. A set whose comments all carry
// a positive SignalScore has already been filtered: it is re-scored and
// re-sorted but not halved again.
func FilterComments(comments []engine.Comment, opts FilterOptions) []engine.Comment {
	alreadyFiltered := len(comments) > 0
	for _, c := range comments {
		if c.SignalScore <= 0 {
			alreadyFiltered = false
			break
		}
	}

	kept := make([]engine.Comment, 0, len(comments))
	for _, c := range comments {
		if utf8.RuneCountInString(strings.TrimSpace(c.Text)) < opts.MinLength {
			continue
		}
		score := ScoreComment(c.Text, opts)
		if score <= 0 {
			continue
		}
		c.SignalScore = score
		kept = append(kept, c)
	}
	slices.SortStableFunc(kept, func(a, b engine.Comment) int {
		if c := cmp.Compare(b.SignalScore, a.SignalScore); c != 0 {
			return c
		}
		return cmp.Compare(b.Likes, a.Likes)
	})

	if alreadyFiltered {
		return kept
	}
	return kept[:keepCount(len(kept), opts.Floor)]
}

// keepCount is ceil(n/2), raised to floor whenever n ≥ floor.
func keepCount(n, floor int) int {
	k := (n + 1) / 2
	if n >= floor && k < floor {
		k = floor
	}
	return k
}

// FallbackTopLiked returns the n most-liked comments. It is used when the
// signal filter leaves nothing, so extraction never runs on an empty set.
func FallbackTopLiked(comments []engine.Comment, n int) []engine.Comment {
	if n <= 0 {
		n = DefaultFallbackTopN
	}
	out := slices.Clone(comments)
	slices.SortStableFunc(out, func(a, b engine.Comment) int {
		return cmp.Compare(b.Likes, a.Likes)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
