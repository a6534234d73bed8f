// Package encoder turns rendered frames into a video file with ffmpeg.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/qnkhuat/tcast/internal/cfg"
)

var (
	ErrOutputExists = errors.New("output file already exists")
	ErrNoFrames     = errors.New("no frames to encode")
)

// FFmpegPath is the binary used by Encode.
var FFmpegPath = "ffmpeg"

type Options struct {
	FPS int
	// Loop is passed to the gif muxer: 0 loops forever, -1 plays once.
	Loop      int
	Overwrite bool
}

func isGIF(out string) bool {
	return strings.EqualFold(filepath.Ext(out), ".gif")
}

// Args builds the ffmpeg arguments that encode the PNG frames in dir into out.
func Args(dir, out string, opts Options) []string {
	// image2 sequence input reads frames by number, so order holds past any name width
	input := ffmpeg.Input(filepath.Join(dir, cfg.FRAME_NAME_FORMAT), ffmpeg.KwArgs{
		"framerate":    opts.FPS,
		"start_number": 0,
	})

	outArgs := ffmpeg.KwArgs{"r": opts.FPS}
	if isGIF(out) {
		outArgs["loop"] = opts.Loop
	} else {
		outArgs["pix_fmt"] = cfg.ENCODER_PIX_FMT
		// yuv420p needs even dimensions
		outArgs["vf"] = "pad=ceil(iw/2)*2:ceil(ih/2)*2"
	}
	return input.Output(out, outArgs).OverWriteOutput().GetArgs()
}

// Encode runs ffmpeg over the frames in dir. The process is killed when ctx is done.
func Encode(ctx context.Context, dir, out string, opts Options) error {
	if opts.FPS <= 0 {
		return fmt.Errorf("encode %s: invalid fps %d", out, opts.FPS)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, cfg.FRAME_GLOB)); len(matches) == 0 {
		return ErrNoFrames
	}
	if err := prepareOutput(out, opts.Overwrite); err != nil {
		return err
	}

	args := Args(dir, out, opts)
	log.Printf("Running %s %s", FFmpegPath, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("ffmpeg failed: %s", stderr.String())
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func prepareOutput(out string, overwrite bool) error {
	if _, err := os.Stat(out); err == nil {
		if !overwrite {
			return fmt.Errorf("%s: %w", out, ErrOutputExists)
		}
		if err := os.Remove(out); err != nil {
			return err
		}
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
