package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// YouTube caption fetching.
// Primary:  watch page ytInitialPlayerResponse → caption XML (works from any IP)
// Fallback: /next → engagement panel → /get_transcript (works from datacenter IPs)
// Fallback: ANDROID Innertube /player → captionTracks

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

func extractTranscriptToken(data []byte) (string, error) {
	if m := getTranscriptRE.FindSubmatch(data); len(m) >= 2 {
		// The params value in the /next JSON response is URL-encoded.
		// /get_transcript expects the decoded (raw base64) form.
		decoded, err := url.QueryUnescape(string(m[1]))
		if err != nil {
			return string(m[1]), nil
		}
		return decoded, nil
	}
	return "", fmt.Errorf("getTranscriptEndpoint not found in engagement panels: %w", ErrNoCaptions)
}

// fetchTranscriptViaEngagementPanel fetches a transcript via:
//  1. POST /next → get engagementPanels containing transcript continuation token
//  2. POST /get_transcript with the token → JSON segments
//
// This approach works from datacenter IPs where /player returns LOGIN_REQUIRED.
func (y *YouTube) fetchTranscriptViaEngagementPanel(ctx context.Context, videoID string) ([]engine.Segment, error) {
	visitor := newVisitorID()

	next, err := y.innertube(ctx, innertubeNext, webClient, visitor, nextRequest{
		VideoID: videoID,
		Context: webClient.context(visitor),
	})
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}
	token, err := extractTranscriptToken(next)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	raw, err := y.innertube(ctx, innertubeTranscript, webClient, visitor, transcriptRequest{
		Params:  token,
		Context: webClient.context(visitor),
	})
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}
	var tr transcriptResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	segs := tr.segments()
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty transcript segments: %w", ErrNoCaptions)
	}
	return segs, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require a PoToken; those only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// tracksFromPlayer returns the caption tracks of a player response, or
// ErrNoCaptions with the playability reason when there are none.
func tracksFromPlayer(p playerResponse) ([]captionTrack, error) {
	if p.Captions == nil || len(p.Captions.Tracklist.Tracks) == 0 {
		if p.Playability != nil && p.Playability.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCaptions, p.Playability.Reason)
		}
		return nil, ErrNoCaptions
	}
	return p.Captions.Tracklist.Tracks, nil
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL.
func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	engine.IncrYouTubeCaption()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return y.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]engine.Segment, error) {
	var tt timedTextDoc
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	segs := make([]engine.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanHTML(line.Text)
		if text == "" {
			continue
		}
		segs = append(segs, engine.Segment{Start: line.Start, End: line.Start + line.Dur, Text: text})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty timedtext: %w", ErrNoCaptions)
	}
	return segs, nil
}

// fetchTranscriptViaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func (y *YouTube) fetchTranscriptViaPlayer(ctx context.Context, videoID string) ([]engine.Segment, error) {
	raw, err := y.innertube(ctx, innertubePlayer, androidClient, "", playerRequest{
		VideoID:        videoID,
		Context:        androidClient.context(""),
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}
	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	tracks, err := tracksFromPlayer(player)
	if err != nil {
		return nil, err
	}
	track, ok := pickBestTrack(tracks, y.langs)
	if !ok {
		return nil, fmt.Errorf("all caption tracks require PoToken: %w", ErrNoCaptions)
	}
	return y.fetchTimedText(ctx, track.BaseURL)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchTranscriptViaPageScrape scrapes the YouTube watch page HTML and extracts
// the caption track XML URL from ytInitialPlayerResponse. Works from any IP.
func (y *YouTube) fetchTranscriptViaPageScrape(ctx context.Context, videoID string) ([]engine.Segment, error) {
	watchURL := y.webBase + "/watch?v=" + videoID

	engine.IncrYouTubeCaption()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return y.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var playerResp playerResponse
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	tracks, err := tracksFromPlayer(playerResp)
	if err != nil {
		return nil, err
	}
	track, ok := pickBestTrack(tracks, y.langs)
	if !ok {
		return nil, fmt.Errorf("all tracks require PoToken: %w", ErrNoCaptions)
	}
	return y.fetchTimedText(ctx, track.BaseURL)
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	var prev byte
	for i, c := range b {
		if inStr {
			if c == '"' && prev != '\\' {
				inStr = false
			}
		} else {
			switch c {
			case '"':
				inStr = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[:i+1]
				}
			}
		}
		prev = c
	}
	return nil
}

// Captions fetches the caption transcript of a video, trying the watch page,
// the engagement panel and the ANDROID player in turn. When every strategy
// reports missing captions the error wraps ErrNoCaptions.
func (y *YouTube) Captions(ctx context.Context, videoID string) (engine.Transcript, error) {
	strategies := []struct {
		name string
		fn   func(context.Context, string) ([]engine.Segment, error)
	}{
		{"page scrape", y.fetchTranscriptViaPageScrape},
		{"engagement panel", y.fetchTranscriptViaEngagementPanel},
		{"player", y.fetchTranscriptViaPlayer},
	}

	var lastErr error
	noCaptions := false
	for _, s := range strategies {
		segs, err := s.fn(ctx, videoID)
		if err == nil {
			return buildTranscript(videoID, segs), nil
		}
		if ctx.Err() != nil {
			return engine.Transcript{}, ctx.Err()
		}
		if errors.Is(err, ErrNoCaptions) {
			noCaptions = true
		}
		lastErr = err
		slog.Debug("youtube: caption strategy failed", slog.String("strategy", s.name),
			slog.String("id", videoID), slog.Any("err", err))
	}
	if noCaptions {
		return engine.Transcript{}, fmt.Errorf("captions %s: %w", videoID, ErrNoCaptions)
	}
	return engine.Transcript{}, fmt.Errorf("captions %s: %w", videoID, lastErr)
}

func buildTranscript(videoID string, segs []engine.Segment) engine.Transcript {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	return engine.Transcript{VideoID: videoID, Text: strings.Join(parts, " "), Segments: segs}
}
