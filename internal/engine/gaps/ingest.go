package gaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/sources"
)

// VideoSource is the video platform as seen by the ingestion worker.
type VideoSource interface {
	Metadata(ctx context.Context, videoID string) (*engine.VideoRecord, error)
	Captions(ctx context.Context, videoID string) (engine.Transcript, error)
	Comments(ctx context.Context, videoID string, limit int) ([]engine.Comment, error)
}

// AudioSource downloads a video's audio track to a local file.
type AudioSource interface {
	Download(ctx context.Context, videoID string) (string, error)
}

// Ingestor fetches the source material of single videos.
type Ingestor struct {
	src         VideoSource
	cache       *SourceCache
	mode        Mode
	maxComments int
	audio       AudioSource
	transcriber func() sources.Transcriber
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithCache enables the source cache.
func WithCache(c *SourceCache) IngestorOption { return func(i *Ingestor) { i.cache = c } }

// WithAudioFallback enables audio download + speech-to-text when captions
// are missing (transcribe mode). transcriber is called on first use.
func WithAudioFallback(a AudioSource, transcriber func() sources.Transcriber) IngestorOption {
	return func(i *Ingestor) {
		i.audio = a
		i.transcriber = transcriber
	}
}

// NewIngestor creates an ingestion worker for the given mode.
func NewIngestor(src VideoSource, mode Mode, maxComments int, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{src: src, mode: mode, maxComments: maxComments}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Mode returns the ingestion mode.
func (i *Ingestor) Mode() Mode { return i.mode }

// Ingest resolves rawURL to a video id and returns its metadata, transcript
// and comments, from the cache when possible. In captions mode a video
// without captions fails with sources.ErrNoCaptions; the returned result
// then still carries the metadata so Comments can finish it. Comment-only
// results are never cached.
func (i *Ingestor) Ingest(ctx context.Context, rawURL string) (IngestResult, error) {
	id, err := sources.ParseVideoID(rawURL)
	if err != nil {
		return IngestResult{}, fmt.Errorf("%q: %w", rawURL, err)
	}

	if i.cache != nil {
		if r, ok := i.cache.Get(id); ok {
			slog.Debug("ingest: cache hit", slog.String("id", id))
			return r, nil
		}
	}

	meta, err := i.src.Metadata(ctx, id)
	if err != nil {
		return IngestResult{}, fmt.Errorf("metadata %s: %w", id, err)
	}
	r := IngestResult{VideoID: id, Metadata: meta, Transcript: &engine.Transcript{VideoID: id}}

	if i.mode != ModeComments {
		tr, err := i.transcript(ctx, id)
		if errors.Is(err, sources.ErrNoCaptions) {
			return IngestResult{VideoID: id, Metadata: meta}, err
		}
		if err != nil {
			return IngestResult{}, err
		}
		r.Transcript = &tr
	}

	if r, err = i.Comments(ctx, r); err != nil {
		return IngestResult{}, err
	}

	if i.cache != nil && i.mode != ModeComments {
		if err := i.cache.Put(id, r); err != nil {
			slog.Warn("ingest: cache write failed", slog.String("id", id), slog.Any("error", err))
		}
	}
	return r, nil
}

// Comments fills in the comments of a result whose metadata is already
// known, without touching the transcript or the cache.
func (i *Ingestor) Comments(ctx context.Context, r IngestResult) (IngestResult, error) {
	comments, err := i.src.Comments(ctx, r.VideoID, i.maxComments)
	if err != nil {
		return IngestResult{}, fmt.Errorf("comments %s: %w", r.VideoID, err)
	}
	r.Comments = comments
	if r.Transcript == nil {
		r.Transcript = &engine.Transcript{VideoID: r.VideoID}
	}
	return r, nil
}

// transcript returns the caption transcript, falling back to audio
// transcription in transcribe mode.
func (i *Ingestor) transcript(ctx context.Context, id string) (engine.Transcript, error) {
	tr, err := i.src.Captions(ctx, id)
	if err == nil {
		return tr, nil
	}
	if !errors.Is(err, sources.ErrNoCaptions) || i.mode != ModeTranscribe || i.audio == nil {
		return engine.Transcript{}, err
	}

	slog.Info("ingest: no captions, transcribing audio", slog.String("id", id))
	path, err := i.audio.Download(ctx, id)
	if err != nil {
		return engine.Transcript{}, err
	}
	defer os.Remove(path)

	tr, err = i.transcriber().Transcribe(ctx, path)
	if err != nil {
		return engine.Transcript{}, fmt.Errorf("transcribe %s: %w", id, err)
	}
	tr.VideoID = id
	return tr, nil
}
