package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

type packetList struct {
	Packets []struct {
		PtsTime string `json:"pts_time"`
		Flags   string `json:"flags"`
	} `json:"packets"`
}

func keyframeProbeArgs(path string) []string {
	return []string{
		"-loglevel", "error",
		"-skip_frame", "nokey",
		"-show_entries", "packet=pts_time,flags",
		"-select_streams", "v",
		"-of", "json",
		path,
	}
}

// ExtractKeyframes returns the keyframe timestamps of the first video stream
// in seconds, ascending. This walks every packet in the file, so it is only
// worth doing at scan time for containers whose index ffmpeg cannot seek
// precisely, Matroska in particular.
func (p *Prober) ExtractKeyframes(ctx context.Context, path string) ([]float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath, keyframeProbeArgs(path)...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe keyframe pass failed: %w", err)
	}

	return parseKeyframePackets(output)
}

func parseKeyframePackets(data []byte) ([]float64, error) {
	var packets packetList
	if err := json.Unmarshal(data, &packets); err != nil {
		return nil, fmt.Errorf("parsing ffprobe packets: %w", err)
	}

	var times []float64
	for _, pkt := range packets.Packets {
		// Keyframe packets only, and only those with a usable pts.
		if !strings.HasPrefix(pkt.Flags, "K") || pkt.PtsTime == "" {
			continue
		}
		t, err := strconv.ParseFloat(pkt.PtsTime, 64)
		if err != nil {
			continue
		}
		times = append(times, t)
	}

	sort.Float64s(times)
	return times, nil
}
