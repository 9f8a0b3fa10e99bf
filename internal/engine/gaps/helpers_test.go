package gaps

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/sources"
)

// fakeBackend answers prompts through respond and records every prompt.
type fakeBackend struct {
	batch   int
	respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) MaxBatch() int {
	if b.batch == 0 {
		return 60
	}
	return b.batch
}

func (b *fakeBackend) Complete(_ context.Context, prompt string) (string, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, prompt)
	b.mu.Unlock()
	if b.respond == nil {
		return "", errors.New("backend down")
	}
	return b.respond(prompt)
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.prompts)
}

func failingBackend() *fakeBackend { return &fakeBackend{} }

// stageBackend routes each prompt to the handler of the stage it belongs to.
func stageBackend(extract, cluster, verify func(prompt string) (string, error)) *fakeBackend {
	return &fakeBackend{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Extract PAIN POINTS") && extract != nil:
			return extract(prompt)
		case strings.Contains(prompt, "Merge items that describe the SAME topic") && cluster != nil:
			return cluster(prompt)
		case strings.Contains(prompt, "ALREADY covered") && verify != nil:
			return verify(prompt)
		}
		return "", errors.New("unexpected prompt")
	}}
}

// fakePlatform is an in-memory video platform.
type fakePlatform struct {
	channel    engine.Channel
	uploads    []engine.VideoRecord
	captions   map[string]string
	comments   map[string][]engine.Comment
	failMeta   map[string]error
	titles     map[string][]string
	titleErr   map[string]error
	metaDelay  time.Duration
	mu         sync.Mutex
	metaCalls  map[string]int
	commentsFn func(id string) ([]engine.Comment, error)
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channel:   engine.Channel{ID: "UCxxxxxxxxxxxxxxxxxxxxxx", Title: "Test Channel", Handle: "@test"},
		captions:  map[string]string{},
		comments:  map[string][]engine.Comment{},
		failMeta:  map[string]error{},
		titles:    map[string][]string{},
		titleErr:  map[string]error{},
		metaCalls: map[string]int{},
	}
}

func (p *fakePlatform) addVideo(id, title, captions string, comments ...engine.Comment) {
	p.uploads = append(p.uploads, engine.VideoRecord{ID: id, Title: title, URL: sources.WatchURL(id)})
	if captions != "" {
		p.captions[id] = captions
	}
	p.comments[id] = comments
}

func (p *fakePlatform) ResolveChannel(_ context.Context, raw string) (engine.Channel, error) {
	if raw == "@missing" {
		return engine.Channel{}, sources.ErrChannelNotFound
	}
	return p.channel, nil
}

func (p *fakePlatform) RecentUploads(_ context.Context, _ engine.Channel, n int) ([]engine.VideoRecord, error) {
	return p.uploads[:min(n, len(p.uploads))], nil
}

func (p *fakePlatform) RecentTitles(_ context.Context, ref string, _ int) ([]string, error) {
	if err := p.titleErr[ref]; err != nil {
		return nil, err
	}
	return p.titles[ref], nil
}

func (p *fakePlatform) Metadata(ctx context.Context, id string) (*engine.VideoRecord, error) {
	p.mu.Lock()
	p.metaCalls[id]++
	p.mu.Unlock()
	if p.metaDelay > 0 {
		select {
		case <-time.After(p.metaDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.failMeta[id]; err != nil {
		return nil, err
	}
	for _, u := range p.uploads {
		if u.ID == id {
			rec := u
			return &rec, nil
		}
	}
	return &engine.VideoRecord{ID: id, Title: "video " + id}, nil
}

func (p *fakePlatform) Captions(_ context.Context, id string) (engine.Transcript, error) {
	text, ok := p.captions[id]
	if !ok {
		return engine.Transcript{}, sources.ErrNoCaptions
	}
	return engine.Transcript{VideoID: id, Text: text, Segments: []engine.Segment{{Start: 0, End: 1, Text: text}}}, nil
}

func (p *fakePlatform) Comments(_ context.Context, id string, limit int) ([]engine.Comment, error) {
	if p.commentsFn != nil {
		return p.commentsFn(id)
	}
	c := p.comments[id]
	return c[:min(limit, len(c))], nil
}

func (p *fakePlatform) metadataCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.metaCalls {
		n += c
	}
	return n
}

// fakeTrends returns canned series per keyword.
type fakeTrends struct {
	series map[string][]float64
	err    error
	calls  []string
}

func (f *fakeTrends) InterestOverTime(_ context.Context, kw string) ([]float64, error) {
	f.calls = append(f.calls, kw)
	if f.err != nil {
		return nil, f.err
	}
	return f.series[kw], nil
}
