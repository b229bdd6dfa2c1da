// Package thumbnails generates preview image strips for indexed media: one
// frame per minute, grabbed with ffmpeg and downscaled to a fixed width.
package thumbnails

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/image/draw"
)

const (
	// ThumbWidth is the output width; height follows the aspect ratio.
	ThumbWidth = 320

	frameInterval = 60 // seconds between grabbed frames
	jpegQuality   = 80
)

// Generator writes thumbnail directories under a common root, keyed by media
// item ("episode-1-2", "movie-5").
type Generator struct {
	ffmpegPath string
	dir        string
	log        *slog.Logger
}

// NewGenerator creates a thumbnail generator writing under dir.
func NewGenerator(ffmpegPath, dir string, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{ffmpegPath: ffmpegPath, dir: dir, log: log}
}

// Generate grabs one frame per minute from path into {dir}/{key}/{n}.jpg.
// Returns without work when the key's directory already exists.
func (g *Generator) Generate(ctx context.Context, key, path string) error {
	target := filepath.Join(g.dir, key)
	if _, err := os.Stat(target); err == nil {
		g.log.Debug("thumbnails already generated", slog.String("key", key))
		return nil
	}

	staging, err := os.MkdirTemp(g.dir, key+".tmp-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := g.grabFrames(ctx, path, staging); err != nil {
		return err
	}
	if err := downscaleFrames(staging); err != nil {
		return err
	}

	// The staging directory becomes visible atomically.
	if err := os.Rename(staging, target); err != nil {
		return err
	}
	g.log.Info("thumbnails generated", slog.String("key", key))
	return nil
}

func (g *Generator) grabFrames(ctx context.Context, path, dir string) error {
	args := []string{
		"-vsync", "0",
		"-i", path,
		"-vf", fmt.Sprintf("fps=1/%d", frameInterval),
		"-qscale:v", "4",
		filepath.Join(dir, "%d.jpg"),
	}
	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg frame grab failed: %w: %s", err, output)
	}
	return nil
}

func downscaleFrames(dir string) error {
	frames, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := downscaleFile(frame); err != nil {
			return err
		}
	}
	return nil
}

func downscaleFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	dst := Downscale(src, ThumbWidth)

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return jpeg.Encode(out, dst, &jpeg.Options{Quality: jpegQuality})
}

// Downscale resizes src to the given width, keeping the aspect ratio. Images
// already at or below the width pass through unchanged.
func Downscale(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() <= width {
		return src
	}
	height := bounds.Dy() * width / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
