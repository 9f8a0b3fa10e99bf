package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

const trendsBase = "https://trends.google.com"

// trendsXSSIPrefix guards every Trends API response body.
var trendsXSSIPrefix = []byte(")]}'")

// ErrNoTrendData is returned when Trends has no time series for a keyword.
var ErrNoTrendData = errors.New("no trend data")

// Trends is a Google Trends interest-over-time client.
type Trends struct {
	base   string
	geo    string
	window string
	client *http.Client
}

// NewTrends creates a Trends client. window is a Trends time expression such
// as "today 3-m"; geo is an ISO country code or empty for worldwide.
func NewTrends(c engine.Config, base string) *Trends {
	if base == "" {
		base = trendsBase
	}
	window := c.TrendsWindow
	if window == "" {
		window = "today 3-m"
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Trends{base: base, geo: c.TrendsGeo, window: window, client: client}
}

type trendsExploreResp struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type trendsMultilineResp struct {
	Default struct {
		TimelineData []struct {
			Value   []float64 `json:"value"`
			HasData []bool    `json:"hasData"`
		} `json:"timelineData"`
	} `json:"default"`
}

// InterestOverTime returns the relative search interest (0–100) for keyword
// over the configured window, oldest point first.
func (t *Trends) InterestOverTime(ctx context.Context, keyword string) ([]float64, error) {
	engine.IncrTrendLookups()

	explore, err := json.Marshal(map[string]any{
		"comparisonItem": []map[string]string{{"keyword": keyword, "geo": t.geo, "time": t.window}},
		"category":       0,
		"property":       "",
	})
	if err != nil {
		return nil, err
	}
	var er trendsExploreResp
	if err := t.get(ctx, "/trends/api/explore", url.Values{"req": {string(explore)}}, &er); err != nil {
		return nil, fmt.Errorf("trends explore: %w", err)
	}

	for _, w := range er.Widgets {
		if w.ID != "TIMESERIES" {
			continue
		}
		params := url.Values{"req": {string(w.Request)}, "token": {w.Token}}
		var mr trendsMultilineResp
		if err := t.get(ctx, "/trends/api/widgetdata/multiline", params, &mr); err != nil {
			return nil, fmt.Errorf("trends multiline: %w", err)
		}
		series := make([]float64, 0, len(mr.Default.TimelineData))
		for _, p := range mr.Default.TimelineData {
			if len(p.Value) > 0 {
				series = append(series, p.Value[0])
			}
		}
		return series, nil
	}
	return nil, fmt.Errorf("%q: %w", keyword, ErrNoTrendData)
}

func (t *Trends) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("hl", "en-US")
	params.Set("tz", "0")
	u := t.base + path + "?" + params.Encode()

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept", "application/json, text/plain, */*")
		return t.client.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return err
	}
	return json.Unmarshal(stripXSSI(body), out)
}

// stripXSSI removes the anti-JSON-hijacking prefix and the comma that may follow it.
func stripXSSI(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if bytes.HasPrefix(body, trendsXSSIPrefix) {
		body = bytes.TrimPrefix(body, trendsXSSIPrefix)
		body = bytes.TrimLeft(body, ", \n\r\t")
	}
	return body
}
