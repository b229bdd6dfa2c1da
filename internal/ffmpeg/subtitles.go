package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// ExtractSubtitleVTT extracts an embedded subtitle stream as WebVTT.
// groupIndex addresses the subtitle stream by its position among subtitle
// streams, matching the indices reported by the sources endpoint.
func ExtractSubtitleVTT(ctx context.Context, ffmpegPath, mediaPath string, groupIndex int, start float64) ([]byte, error) {
	args := []string{
		"-analyzeduration", "200M",
	}
	if start > 0 {
		args = append(args, "-ss", strconv.FormatFloat(start, 'f', 3, 64))
	}
	args = append(args,
		"-i", fmt.Sprintf("file:%s", mediaPath),
		"-map", fmt.Sprintf("0:s:%d", groupIndex),
		"-f", "webvtt",
		"-loglevel", "quiet",
		"-",
	)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extracting subtitle stream %d: %w", groupIndex, err)
	}
	return out.Bytes(), nil
}
