package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Extractor converts video files to 16 kHz mono PCM WAV with ffmpeg,
// which is what the transcription service expects.
type Extractor struct {
	binary string
	log    *slog.Logger
}

func NewExtractor(binary string, log *slog.Logger) *Extractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{binary: binary, log: log}
}

// ExtractAudio writes <video dir>/<video name>.wav and returns its
// path. ffmpeg output is included in the error on failure.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	base := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
	audioPath := base + ".wav"

	args := []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	}

	e.log.Info("extracting audio", "video", videoPath, "audio", audioPath)
	cmd := exec.CommandContext(ctx, e.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg: %w: %s", err, tailLines(string(out), 5))
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("ffmpeg finished but %s is missing: %w", audioPath, err)
	}
	return audioPath, nil
}

// tailLines returns the last n non-empty lines of s. ffmpeg puts the
// actual error at the end of a long banner.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "; ")
}
