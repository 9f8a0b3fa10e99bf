package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

const (
	ytDataAPIBase = "https://www.googleapis.com/youtube/v3"
	ytWebBase     = "https://www.youtube.com"
	ytPageSize    = 50  // max for playlistItems and videos
	ytCommentPage = 100 // max for commentThreads
)

// YouTube is the video platform client: Data API v3 for metadata and
// comments, web endpoints for captions and channel pages.
type YouTube struct {
	apiBase string
	webBase string
	keys    []string
	langs   []string
	client  *http.Client
}

// Option configures a YouTube client.
type Option func(*YouTube)

// WithAPIBase overrides the Data API base URL.
func WithAPIBase(u string) Option { return func(y *YouTube) { y.apiBase = strings.TrimRight(u, "/") } }

// WithWebBase overrides the www.youtube.com base URL.
func WithWebBase(u string) Option { return func(y *YouTube) { y.webBase = strings.TrimRight(u, "/") } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(y *YouTube) { y.client = c } }

// NewYouTube creates a client from the engine configuration. The fallback
// API key is tried when the primary key is out of quota.
func NewYouTube(c engine.Config, opts ...Option) *YouTube {
	y := &YouTube{
		apiBase: ytDataAPIBase,
		webBase: ytWebBase,
		langs:   c.CaptionLangs,
		client:  c.HTTPClient,
	}
	for _, k := range []string{c.YouTubeAPIKey, c.YouTubeAPIKeyFallback} {
		if k != "" {
			y.keys = append(y.keys, k)
		}
	}
	if len(y.langs) == 0 {
		y.langs = []string{"en"}
	}
	for _, o := range opts {
		o(y)
	}
	if y.client == nil {
		y.client = &http.Client{Timeout: 20 * time.Second}
	}
	return y
}

// HasAPIKey reports whether a Data API key is configured.
func (y *YouTube) HasAPIKey() bool { return len(y.keys) > 0 }

// apiError is a non-200 Data API response.
type apiError struct {
	Status int
	Reason string
	Body   string
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube data API %d (%s)", e.Status, e.Reason)
	}
	return fmt.Sprintf("youtube data API %d: %s", e.Status, e.Body)
}

// quota reports whether the error is tied to the key rather than the request.
func (e *apiError) quota() bool {
	switch e.Reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "keyInvalid", "keyExpired", "accessNotConfigured":
		return true
	}
	return e.Status == http.StatusBadRequest && strings.Contains(e.Body, "API key")
}

// apiGet GETs a Data API resource and decodes the JSON body into out.
// Automatically falls back to the secondary key on quota errors.
func (y *YouTube) apiGet(ctx context.Context, resource string, params url.Values, out any) error {
	if len(y.keys) == 0 {
		return fmt.Errorf("youtube data API: YOUTUBE_API_KEY: %w", engine.ErrMissingCredentials)
	}
	var lastErr error
	for _, key := range y.keys {
		err := y.doAPIGet(ctx, resource, params, key, out)
		if err == nil {
			return nil
		}
		lastErr = err
		var ae *apiError
		if !errors.As(err, &ae) || !ae.quota() {
			return err
		}
		slog.Debug("youtube data API key failed, trying fallback", slog.Any("err", err))
	}
	return lastErr
}

func (y *YouTube) doAPIGet(ctx context.Context, resource string, params url.Values, key string, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", key)
	apiURL := y.apiBase + "/" + resource + "?" + q.Encode()

	engine.IncrYouTubeAPI()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return y.client.Do(req)
	})
	if err != nil {
		return fmt.Errorf("youtube data API %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return newAPIError(resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube %s: %w", resource, err)
	}
	return nil
}

func newAPIError(status int, body []byte) *apiError {
	var env struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	ae := &apiError{Status: status, Body: strings.TrimSpace(string(body))}
	if json.Unmarshal(body, &env) == nil && len(env.Error.Errors) > 0 {
		ae.Reason = env.Error.Errors[0].Reason
	}
	return ae
}

// --- Data API v3 types ---

type ytChannelsResp struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title     string `json:"title"`
			CustomURL string `json:"customUrl"`
		} `json:"snippet"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytPlaylistItemsResp struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytVideosResp struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type ytCommentThreadsResp struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					AuthorDisplayName string    `json:"authorDisplayName"`
					TextDisplay       string    `json:"textDisplay"`
					TextOriginal      string    `json:"textOriginal"`
					LikeCount         int       `json:"likeCount"`
					PublishedAt       time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// ResolveChannel turns a handle, channel id or channel URL into a Channel
// with its uploads playlist. Legacy /c/ and /user/ URLs, and handles the API
// does not know, are resolved by scraping the channel page.
func (y *YouTube) ResolveChannel(ctx context.Context, raw string) (engine.Channel, error) {
	ref, err := parseChannelRef(raw)
	if err != nil {
		return engine.Channel{}, fmt.Errorf("%q: %w", raw, err)
	}

	if ref.ID == "" {
		path := ref.Path
		if ref.Handle != "" {
			ch, err := y.channelBy(ctx, "forHandle", ref.Handle)
			if err == nil {
				return ch, nil
			}
			if !errors.Is(err, ErrChannelNotFound) {
				return engine.Channel{}, err
			}
			path = "/" + ref.Handle
		}
		id, err := y.scrapeChannelID(ctx, path)
		if err != nil {
			return engine.Channel{}, fmt.Errorf("%q: %w", raw, err)
		}
		ref.ID = id
	}

	ch, err := y.channelBy(ctx, "id", ref.ID)
	if err != nil {
		return engine.Channel{}, err
	}
	if ch.Handle == "" {
		ch.Handle = ref.Handle
	}
	return ch, nil
}

func (y *YouTube) channelBy(ctx context.Context, field, value string) (engine.Channel, error) {
	var resp ytChannelsResp
	params := url.Values{"part": {"snippet,contentDetails"}, field: {value}}
	if err := y.apiGet(ctx, "channels", params, &resp); err != nil {
		return engine.Channel{}, err
	}
	if len(resp.Items) == 0 {
		return engine.Channel{}, fmt.Errorf("%s=%s: %w", field, value, ErrChannelNotFound)
	}
	it := resp.Items[0]
	return engine.Channel{
		ID:              it.ID,
		Handle:          it.Snippet.CustomURL,
		Title:           it.Snippet.Title,
		UploadsPlaylist: it.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

// RecentUploads returns metadata for the n most recent uploads of ch, newest first.
func (y *YouTube) RecentUploads(ctx context.Context, ch engine.Channel, n int) ([]engine.VideoRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	playlist := ch.UploadsPlaylist
	if playlist == "" && strings.HasPrefix(ch.ID, "UC") {
		playlist = "UU" + strings.TrimPrefix(ch.ID, "UC")
	}
	if playlist == "" {
		return nil, fmt.Errorf("channel %q has no uploads playlist", ch.ID)
	}

	var ids []string
	pageToken := ""
	for len(ids) < n {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlist},
			"maxResults": {strconv.Itoa(min(ytPageSize, n-len(ids)))},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var resp ytPlaylistItemsResp
		if err := y.apiGet(ctx, "playlistItems", params, &resp); err != nil {
			return nil, fmt.Errorf("list uploads: %w", err)
		}
		for _, it := range resp.Items {
			if id := it.ContentDetails.VideoID; id != "" && len(ids) < n {
				ids = append(ids, id)
			}
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return y.VideoDetails(ctx, ids)
}

// VideoDetails fetches metadata for ids, preserving input order. Ids the
// API does not return (private, deleted) are omitted.
func (y *YouTube) VideoDetails(ctx context.Context, ids []string) ([]engine.VideoRecord, error) {
	byID := make(map[string]engine.VideoRecord, len(ids))
	for start := 0; start < len(ids); start += ytPageSize {
		end := min(start+ytPageSize, len(ids))
		params := url.Values{
			"part": {"snippet,contentDetails,statistics"},
			"id":   {strings.Join(ids[start:end], ",")},
		}
		var resp ytVideosResp
		if err := y.apiGet(ctx, "videos", params, &resp); err != nil {
			return nil, fmt.Errorf("video details: %w", err)
		}
		for _, it := range resp.Items {
			rec := engine.VideoRecord{
				ID:           it.ID,
				Title:        it.Snippet.Title,
				URL:          WatchURL(it.ID),
				PublishedAt:  it.Snippet.PublishedAt,
				DurationSec:  ParseISODuration(it.ContentDetails.Duration),
				Views:        parseCount(it.Statistics.ViewCount),
				Likes:        parseCount(it.Statistics.LikeCount),
				CommentCount: parseCount(it.Statistics.CommentCount),
			}
			for _, size := range []string{"high", "medium", "default"} {
				if th, ok := it.Snippet.Thumbnails[size]; ok {
					rec.Thumbnail = th.URL
					break
				}
			}
			byID[it.ID] = rec
		}
	}
	out := make([]engine.VideoRecord, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Metadata fetches the metadata block of a single video.
func (y *YouTube) Metadata(ctx context.Context, videoID string) (*engine.VideoRecord, error) {
	recs, err := y.VideoDetails(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("video %s: video unavailable", videoID)
	}
	return &recs[0], nil
}

// Comments fetches up to limit top-level comments in relevance order.
// Comments disabled on the video (HTTP 403) is not an error: the result is empty.
func (y *YouTube) Comments(ctx context.Context, videoID string, limit int) ([]engine.Comment, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []engine.Comment
	pageToken := ""
	for len(out) < limit {
		params := url.Values{
			"part":       {"snippet"},
			"videoId":    {videoID},
			"order":      {"relevance"},
			"textFormat": {"html"},
			"maxResults": {strconv.Itoa(min(ytCommentPage, limit-len(out)))},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var resp ytCommentThreadsResp
		err := y.apiGet(ctx, "commentThreads", params, &resp)
		if err != nil {
			var ae *apiError
			if errors.As(err, &ae) && ae.Status == http.StatusForbidden && !ae.quota() {
				slog.Info("youtube: comments disabled", slog.String("id", videoID), slog.String("reason", ae.Reason))
				return out, nil
			}
			return out, fmt.Errorf("comments %s: %w", videoID, err)
		}
		engine.IncrCommentPages()

		for _, it := range resp.Items {
			s := it.Snippet.TopLevelComment.Snippet
			text := commentText(s.TextDisplay, s.TextOriginal)
			if text == "" {
				continue
			}
			out = append(out, engine.Comment{
				Author:      s.AuthorDisplayName,
				Text:        text,
				Likes:       s.LikeCount,
				PublishedAt: s.PublishedAt,
			})
			if len(out) >= limit {
				break
			}
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

// commentText converts the HTML comment body to Markdown text, falling back
// to the original text when conversion fails.
func commentText(display, original string) string {
	if display != "" {
		if md, err := htmltomarkdown.ConvertString(display); err == nil {
			if md = strings.TrimSpace(md); md != "" {
				return md
			}
		}
	}
	return strings.TrimSpace(original)
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

var isoDurationRE = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO 8601 duration such as PT1H2M3S to seconds.
// Malformed input yields 0.
func ParseISODuration(s string) int {
	m := isoDurationRE.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	mult := []int{86400, 3600, 60, 1}
	total := 0
	for i, g := range m[1:] {
		if g == "" {
			continue
		}
		n, _ := strconv.Atoi(g)
		total += n * mult[i]
	}
	return total
}

// RecentTitles returns the titles of the n most recent uploads of a channel
// reference, used to check competitor coverage of a topic.
func (y *YouTube) RecentTitles(ctx context.Context, channelRef string, n int) ([]string, error) {
	ch, err := y.ResolveChannel(ctx, channelRef)
	if err != nil {
		return nil, err
	}
	recs, err := y.RecentUploads(ctx, ch, n)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(recs))
	for i, r := range recs {
		titles[i] = r.Title
	}
	return titles, nil
}
