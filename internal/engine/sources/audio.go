package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

// CommandRunner executes an external binary and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// audioFormats are tried in order, one per download attempt.
var audioFormats = []string{"bestaudio[ext=m4a]/bestaudio", "bestaudio", "worstaudio/worst"}

// AudioDownloader fetches a video's audio track with a yt-dlp compatible binary.
type AudioDownloader struct {
	bin    string
	dir    string
	policy engine.RetryPolicy
	run    CommandRunner
	userAg func() string
}

// NewAudioDownloader creates a downloader writing into dir (a temp dir when empty).
func NewAudioDownloader(bin, dir string, policy engine.RetryPolicy) *AudioDownloader {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &AudioDownloader{bin: bin, dir: dir, policy: policy, run: defaultCommandRunner, userAg: engine.RandomUserAgent}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *AudioDownloader) WithCommandRunner(r CommandRunner) *AudioDownloader {
	d.run = r
	return d
}

// Download fetches the audio of videoID and returns the local file path.
// Each attempt rotates the user agent and the requested stream format;
// permanent failures (private, removed, blocked) stop the retry loop.
func (d *AudioDownloader) Download(ctx context.Context, videoID string) (string, error) {
	dir := d.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("audio dir: %w", err)
	}
	tmpl := filepath.Join(dir, videoID+".%(ext)s")

	var path string
	err := d.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		engine.IncrAudioDownloads()
		if attempt > 0 {
			engine.IncrAudioRetries()
		}
		format := audioFormats[attempt%len(audioFormats)]
		args := []string{
			"--no-playlist", "--quiet", "--no-warnings",
			"-f", format,
			"--user-agent", d.userAg(),
			"-o", tmpl,
			"--print", "after_move:filepath",
			WatchURL(videoID),
		}
		out, err := d.run(ctx, d.bin, args...)
		if err != nil {
			slog.Debug("audio: download attempt failed", slog.String("id", videoID),
				slog.Int("attempt", attempt+1), slog.String("format", format), slog.Any("err", err))
			return err
		}
		path = lastLine(string(out))
		if path == "" {
			return errors.New("downloader printed no file path")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("download audio %s: %w", videoID, err)
	}
	return path, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Transcriber turns an audio file into a timed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (engine.Transcript, error)
}

// WhisperTranscriber runs a whisper compatible CLI that writes JSON output.
type WhisperTranscriber struct {
	bin   string
	model string
	run   CommandRunner
}

// NewWhisperTranscriber creates a transcriber for the given binary and model.
func NewWhisperTranscriber(bin, model string) *WhisperTranscriber {
	if bin == "" {
		bin = "whisper"
	}
	if model == "" {
		model = "base"
	}
	return &WhisperTranscriber{bin: bin, model: model, run: defaultCommandRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperTranscriber) WithCommandRunner(r CommandRunner) *WhisperTranscriber {
	w.run = r
	return w
}

type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs the model over audioPath. The JSON result is written next
// to the audio file and removed afterwards.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (engine.Transcript, error) {
	outDir := filepath.Dir(audioPath)
	args := []string{audioPath, "--model", w.model, "--output_format", "json", "--output_dir", outDir}
	if _, err := w.run(ctx, w.bin, args...); err != nil {
		return engine.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outDir, base+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return engine.Transcript{}, fmt.Errorf("read transcription: %w", err)
	}
	defer os.Remove(jsonPath)

	var wo whisperOutput
	if err := json.Unmarshal(data, &wo); err != nil {
		return engine.Transcript{}, fmt.Errorf("decode transcription: %w", err)
	}
	t := engine.Transcript{VideoID: base, Text: strings.TrimSpace(wo.Text)}
	for _, s := range wo.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		t.Segments = append(t.Segments, engine.Segment{Start: s.Start, End: s.End, Text: text})
	}
	if t.Text == "" && len(t.Segments) > 0 {
		t.Text = buildTranscript(base, t.Segments).Text
	}
	return t, nil
}

// unavailableTranscriber is returned when the speech-to-text binary is missing.
type unavailableTranscriber struct{ err error }

func (u unavailableTranscriber) Transcribe(context.Context, string) (engine.Transcript, error) {
	return engine.Transcript{}, u.err
}

var (
	transcriberOnce   sync.Once
	sharedTranscriber Transcriber
)

// SharedTranscriber returns the process-wide transcriber, built on first use
// from engine.Cfg. Every worker shares one instance and the first caller's
// configuration wins.
func SharedTranscriber() Transcriber {
	transcriberOnce.Do(func() {
		bin := engine.Cfg.WhisperBin
		if bin == "" {
			bin = "whisper"
		}
		if _, err := exec.LookPath(bin); err != nil {
			slog.Warn("audio: speech-to-text binary not found, transcribe mode disabled", slog.String("bin", bin))
			sharedTranscriber = unavailableTranscriber{err: fmt.Errorf("speech-to-text binary %q: %w", bin, err)}
			return
		}
		sharedTranscriber = NewWhisperTranscriber(bin, engine.Cfg.WhisperModel)
	})
	return sharedTranscriber
}
