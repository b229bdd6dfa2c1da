// Package ffmpeg wraps the ffmpeg and ffprobe binaries: discovery, media
// probing, keyframe extraction and supervised encoder processes.
package ffmpeg

import (
	"fmt"
	"os/exec"

	"github.com/vodarr/vodarr/internal/config"
)

// Binaries holds resolved paths to the ffmpeg tool set.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// Discover resolves the ffmpeg and ffprobe binaries from the configuration,
// falling back to PATH lookup when no explicit path is set.
func Discover(cfg config.FFmpegConfig) (Binaries, error) {
	var b Binaries
	var err error

	b.FFmpeg = cfg.FFmpegPath
	if b.FFmpeg == "" {
		b.FFmpeg, err = exec.LookPath("ffmpeg")
		if err != nil {
			return Binaries{}, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}

	b.FFprobe = cfg.FFprobePath
	if b.FFprobe == "" {
		b.FFprobe, err = exec.LookPath("ffprobe")
		if err != nil {
			return Binaries{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	return b, nil
}
