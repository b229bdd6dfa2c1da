package transcode

import (
	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// VideoColor classifies a video stream's dynamic range.
type VideoColor struct {
	// Range is "sdr" or "hdr".
	Range string
	// RangeType is "sdr", "hdr10", "hlg" or "dovi".
	RangeType string
}

// IsHDR reports whether the stream carries high dynamic range video.
func (c VideoColor) IsHDR() bool {
	return c.Range == "hdr"
}

// HLSVideoRange returns the playlist VIDEO-RANGE attribute value for this
// color classification.
func (c VideoColor) HLSVideoRange() string {
	switch c.RangeType {
	case "hdr10", "dovi":
		return "PQ"
	case "hlg":
		return "HLG"
	}
	return "SDR"
}

var doviCodecTags = map[string]bool{
	"dovi": true,
	"dvh1": true,
	"dvhe": true,
	"dav1": true,
}

// ClassifyVideoColor derives the dynamic range of a video stream from its
// transfer characteristics, primaries, codec tag and Dolby Vision side data.
func ClassifyVideoColor(stream *ffmpeg.ProbeStream) VideoColor {
	if stream.ColorTransfer == "smpte2084" && stream.ColorPrimaries == "bt2020" {
		return VideoColor{Range: "hdr", RangeType: "hdr10"}
	}

	if stream.ColorTransfer == "arib-std-b67" {
		return VideoColor{Range: "hdr", RangeType: "hlg"}
	}

	if doviCodecTags[stream.CodecTag] {
		return VideoColor{Range: "hdr", RangeType: "dovi"}
	}

	for _, sd := range stream.SideDataList {
		if isDoviProfile(sd.DVProfile) &&
			sd.RPUPresentFlag == 1 && sd.BLPresentFlag == 1 &&
			isDoviCompatID(sd.DVBLSignalCompatibilityID) {
			return VideoColor{Range: "hdr", RangeType: "dovi"}
		}
	}

	return VideoColor{Range: "sdr", RangeType: "sdr"}
}

func isDoviProfile(profile int) bool {
	return profile == 5 || profile == 7 || profile == 8
}

func isDoviCompatID(id int) bool {
	return id == 0 || id == 1 || id == 4
}

// VideoColorBitDepth derives the color bit depth from the pixel format.
func VideoColorBitDepth(pixFmt string) int {
	switch pixFmt {
	case "yuv420p10le", "yuv444p10le":
		return 10
	case "yuv420p12le", "yuv444p12le":
		return 12
	}
	return 8
}
