// Package media shells out to yt-dlp and ffmpeg for video download and
// audio extraction.
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

// Downloader fetches remote videos with yt-dlp into a task-scoped
// directory.
type Downloader struct {
	binary  string
	baseDir string
	log     *slog.Logger
}

// NewDownloader creates a downloader. binary is the yt-dlp executable
// path, baseDir the root under which per-task directories are created.
func NewDownloader(binary, baseDir string, log *slog.Logger) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{binary: binary, baseDir: baseDir, log: log}
}

// Download fetches the video at url into <baseDir>/<taskID>/<taskID>.mp4
// and returns the file path plus the video title. The output path is
// verified after yt-dlp exits; a missing file is treated as a failed
// download even when the tool reported success.
func (d *Downloader) Download(ctx context.Context, taskID, url string) (path string, title string, err error) {
	dir := filepath.Join(d.baseDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create task dir: %w", err)
	}

	outPath := filepath.Join(dir, taskID+".mp4")
	args := []string{
		"--no-playlist",
		"--print", "title",
		"--no-simulate",
		"-f", "mp4/bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		url,
	}

	d.log.Info("downloading video", "task_id", taskID, "url", url)
	cmd := exec.CommandContext(ctx, d.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("yt-dlp: %w: %s", err, commandStderr(err))
	}

	title = strings.TrimSpace(string(out))
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", "", fmt.Errorf("download finished but %s is missing: %w", outPath, err)
	}

	d.log.Info("download complete", "task_id", taskID, "title", title, "path", outPath)
	return outPath, title, nil
}

func commandStderr(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return strings.TrimSpace(string(ee.Stderr))
	}
	return ""
}
