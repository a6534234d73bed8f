package encoder

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/playback"
	"github.com/qnkhuat/tcast/pkg/render"
)

type EncodeFunc func(ctx context.Context, dir, out string, opts Options) error

type PipelineOptions struct {
	Playback playback.Options
	// Font defaults to render.BasicFont.
	Font *render.Font
	// Loop and Overwrite are used as is, FPS comes from the replay.
	Encode Options
	// WorkDir keeps the frames, older frames in it are removed first.
	// A temporary directory is used and removed when empty.
	WorkDir string
	// Encoder defaults to Encode.
	Encoder EncodeFunc
}

// Pipeline replays cast, renders every emitted frame and encodes the result into out.
func Pipeline(ctx context.Context, cast *message.Cast, out string, opts PipelineOptions) (playback.Stats, error) {
	if opts.Font == nil {
		opts.Font = render.BasicFont()
	}
	if opts.Encoder == nil {
		opts.Encoder = Encode
	}
	if !opts.Encode.Overwrite {
		if err := prepareOutput(out, false); err != nil {
			return playback.Stats{}, err
		}
	}

	dir := opts.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "tcast-frames-")
		if err != nil {
			return playback.Stats{}, err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	recorder, err := NewRecorder(dir)
	if err != nil {
		return playback.Stats{}, err
	}
	if err := recorder.Clear(); err != nil {
		return playback.Stats{}, err
	}
	renderer := render.NewRenderer(opts.Font, recorder)

	stats, err := playback.New(cast, opts.Playback).Run(ctx, renderer)
	if err != nil {
		return stats, err
	}
	if stats.Emitted == 0 {
		return stats, ErrNoFrames
	}

	encodeOpts := opts.Encode
	encodeOpts.FPS = stats.FPS
	log.Printf("Encoding %d frames from %s into %s", recorder.Frames(), dir, out)
	if err := opts.Encoder(ctx, dir, out, encodeOpts); err != nil {
		return stats, err
	}
	return stats, nil
}
