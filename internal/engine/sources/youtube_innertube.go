package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// Innertube endpoints used for captions.
const (
	innertubePlayer     = "/youtubei/v1/player"
	innertubeNext       = "/youtubei/v1/next"
	innertubeTranscript = "/youtubei/v1/get_transcript"
)

// clientProfile identifies the Innertube client a request claims to be.
type clientProfile struct {
	name      string
	version   string
	headerID  string // X-Youtube-Client-Name
	userAgent string
	sdk       int
}

var (
	webClient = clientProfile{
		name:      "WEB",
		version:   "2.20250222.10.00",
		headerID:  "1",
		userAgent: engine.UserAgentChrome,
	}
	androidClient = clientProfile{
		name:      "ANDROID",
		version:   "20.10.38",
		headerID:  "3",
		userAgent: "com.google.android.youtube/20.10.38 (Linux; U; Android 11) gzip",
		sdk:       30,
	}
)

type clientContext struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
	Hl                string `json:"hl"`
	Gl                string `json:"gl"`
}

type requestContext struct {
	Client clientContext `json:"client"`
}

func (p clientProfile) context(visitor string) requestContext {
	return requestContext{Client: clientContext{
		ClientName:        p.name,
		ClientVersion:     p.version,
		AndroidSdkVersion: p.sdk,
		VisitorData:       visitor,
		Hl:                "en",
		Gl:                "US",
	}}
}

type playerRequest struct {
	VideoID        string         `json:"videoId"`
	Context        requestContext `json:"context"`
	RacyCheckOk    bool           `json:"racyCheckOk"`
	ContentCheckOk bool           `json:"contentCheckOk"`
}

type nextRequest struct {
	VideoID string         `json:"videoId"`
	Context requestContext `json:"context"`
}

type transcriptRequest struct {
	Params  string         `json:"params"`
	Context requestContext `json:"context"`
}

// playerResponse is the subset of a player response (Innertube /player or
// the watch page's ytInitialPlayerResponse) that carries caption tracks.
type playerResponse struct {
	Captions *struct {
		Tracklist struct {
			Tracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	Playability *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// timedTextDoc is the timedtext caption XML; start and dur are seconds.
type timedTextDoc struct {
	Lines []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

type transcriptSegment struct {
	Renderer *struct {
		StartMs string `json:"startMs"`
		EndMs   string `json:"endMs"`
		Snippet struct {
			Runs []struct {
				Text string `json:"text"`
			} `json:"runs"`
		} `json:"snippet"`
	} `json:"transcriptSegmentRenderer"`
}

type transcriptPanel struct {
	Body struct {
		List struct {
			Segments []transcriptSegment `json:"initialSegments"`
		} `json:"transcriptSegmentListRenderer"`
	} `json:"body"`
}

// transcriptResponse is the /get_transcript response.
type transcriptResponse struct {
	Actions []struct {
		Update *struct {
			Content struct {
				Renderer struct {
					Content struct {
						Panel transcriptPanel `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

// segments flattens the response into timed segments, skipping empty lines.
func (r transcriptResponse) segments() []engine.Segment {
	var out []engine.Segment
	for _, a := range r.Actions {
		if a.Update == nil {
			continue
		}
		for _, seg := range a.Update.Content.Renderer.Content.Panel.Body.List.Segments {
			if seg.Renderer == nil {
				continue
			}
			runs := make([]string, 0, len(seg.Renderer.Snippet.Runs))
			for _, run := range seg.Renderer.Snippet.Runs {
				if run.Text != "" {
					runs = append(runs, run.Text)
				}
			}
			text := strings.TrimSpace(strings.Join(runs, " "))
			if text == "" {
				continue
			}
			start, _ := strconv.ParseFloat(seg.Renderer.StartMs, 64)
			end, _ := strconv.ParseFloat(seg.Renderer.EndMs, 64)
			out = append(out, engine.Segment{Start: start / 1000, End: end / 1000, Text: text})
		}
	}
	return out
}

// newVisitorID returns a random 11-char visitor id.
func newVisitorID() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))] //nolint:gosec // not a secret
	}
	return string(b)
}

// innertube POSTs payload to an Innertube endpoint as client and returns the
// raw response body.
func (y *YouTube) innertube(ctx context.Context, path string, client clientProfile, visitor string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := y.webBase + path + "?prettyPrint=false"

	engine.IncrYouTubeCaption()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", client.userAgent)
		req.Header.Set("X-Youtube-Client-Name", client.headerID)
		req.Header.Set("X-Youtube-Client-Version", client.version)
		if visitor != "" {
			req.Header.Set("X-Goog-Visitor-Id", visitor)
			req.Header.Set("Origin", "https://www.youtube.com")
			req.Header.Set("Referer", "https://www.youtube.com/")
		}
		return y.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("innertube %s %s: %w", client.name, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("innertube %s %s: HTTP %d: %s", client.name, path, resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
}
