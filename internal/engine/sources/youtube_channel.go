package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

var externalIDRE = regexp.MustCompile(`"externalId":"(UC[a-zA-Z0-9_-]{22})"`)

// scrapeChannelID loads a channel page (/@handle, /c/name, /user/name) and
// reads the UC id from its canonical link or metadata.
func (y *YouTube) scrapeChannelID(ctx context.Context, path string) (string, error) {
	pageURL := y.webBase + path
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range engine.ChromeHeaders() {
			req.Header.Set(k, v)
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return y.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("channel page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("channel page %s: %w", path, ErrChannelNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("channel page %s: HTTP %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read channel page: %w", err)
	}
	if id := channelIDFromPage(body); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("channel page %s: no channel id: %w", path, ErrChannelNotFound)
}

// channelIDFromPage extracts the UC id from channel page HTML.
func channelIDFromPage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		candidates := []string{
			doc.Find(`meta[itemprop="identifier"]`).AttrOr("content", ""),
			doc.Find(`meta[itemprop="channelId"]`).AttrOr("content", ""),
			idFromChannelURL(doc.Find(`link[rel="canonical"]`).AttrOr("href", "")),
			idFromChannelURL(doc.Find(`meta[property="og:url"]`).AttrOr("content", "")),
		}
		for _, c := range candidates {
			if channelIDRE.MatchString(c) {
				return c
			}
		}
	}
	if m := externalIDRE.FindSubmatch(body); len(m) == 2 {
		return string(m[1])
	}
	return ""
}

func idFromChannelURL(u string) string {
	i := strings.Index(u, "/channel/")
	if i < 0 {
		return ""
	}
	return firstPathSegment(u[i+len("/channel/"):])
}
