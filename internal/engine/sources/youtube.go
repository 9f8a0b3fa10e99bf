// Package sources talks to the outside world: the YouTube Data API and web
// endpoints, the audio downloader and speech-to-text binaries, and Google Trends.
package sources

// YouTube implementation is split across files by responsibility:
//   youtube.go            video/channel reference parsing, sentinel errors
//   youtube_innertube.go  Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go caption fetching (watch page, engagement panel, ANDROID player)
//   youtube_data.go       Data API v3: channels, uploads, video details, comment threads
//   youtube_channel.go    channel page scraping when the API cannot resolve a reference

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Sentinel errors returned by the YouTube client.
var (
	ErrInvalidURL      = errors.New("not a recognizable video URL or id")
	ErrNoCaptions      = errors.New("no captions available")
	ErrChannelNotFound = errors.New("channel not found")
)

var (
	videoIDRE   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	channelIDRE = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
)

// ParseVideoID extracts the 11-char video id from a watch, short-link, shorts,
// embed or live URL, or accepts a bare id.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDRE.MatchString(raw) {
		return raw, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstPathSegment(u.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstPathSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}
	if !videoIDRE.MatchString(id) {
		return "", ErrInvalidURL
	}
	return id, nil
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// WatchURL returns the canonical watch URL of a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// channelRef is a parsed channel reference: exactly one field is set.
type channelRef struct {
	ID     string // UC...
	Handle string // @name
	Path   string // legacy /c/name or /user/name path
}

// parseChannelRef accepts @handle, a bare handle, a UC id or a channel URL.
func parseChannelRef(raw string) (channelRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return channelRef{}, ErrChannelNotFound
	}
	if channelIDRE.MatchString(raw) {
		return channelRef{ID: raw}, nil
	}
	if strings.HasPrefix(raw, "@") {
		return channelRef{Handle: raw}, nil
	}
	if !strings.Contains(raw, "/") {
		return channelRef{Handle: "@" + raw}, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return channelRef{}, ErrChannelNotFound
	}
	p := strings.TrimSuffix(u.Path, "/")
	switch {
	case strings.HasPrefix(p, "/@"):
		return channelRef{Handle: firstPathSegment(p)}, nil
	case strings.HasPrefix(p, "/channel/"):
		id := firstPathSegment(strings.TrimPrefix(p, "/channel/"))
		if channelIDRE.MatchString(id) {
			return channelRef{ID: id}, nil
		}
	case strings.HasPrefix(p, "/c/"), strings.HasPrefix(p, "/user/"):
		parts := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 3)
		return channelRef{Path: "/" + parts[0] + "/" + parts[1]}, nil
	}
	return channelRef{}, ErrChannelNotFound
}
