/*
tcast renders an asciicast recording into a video.

	tcast [flags] input.cast output.mp4   render
	tcast -play input.cast                 preview in this terminal
	tcast -dump 12.5 input.cast            print the screen at 12.5s
	tcast -server URL input.cast out.mp4   render on a tcast server
	tcast -set fps=30                      change a default in ~/.tcast.yaml
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/manifoldco/promptui"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/qnkhuat/tcast/internal/cfg"
	"github.com/qnkhuat/tcast/internal/logging"
	"github.com/qnkhuat/tcast/pkg/client"
	"github.com/qnkhuat/tcast/pkg/encoder"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/playback"
	"github.com/qnkhuat/tcast/pkg/render"
	"github.com/qnkhuat/tcast/pkg/tty"
	"github.com/qnkhuat/tcast/pkg/viewer"
)

func main() {
	conf, err := cfg.LoadCfg(cfg.CONFIG_PATH)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config %s: %s\n", cfg.CONFIG_PATH, err)
		conf = cfg.NewCfg()
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tcast [flags] input.cast output.mp4\n\nFlags:\n")
		flag.PrintDefaults()
	}

	var fps = flag.Int("fps", conf.FPS, "Frames per second. 0 infers it from the recording")
	var idle = flag.Float64("idle", conf.IdleTimeLimit, "Cap pauses to this many seconds. 0 keeps them")
	var width = flag.Uint("width", 0, "Override the terminal width of the recording")
	var height = flag.Uint("height", 0, "Override the terminal height of the recording")
	var fontSize = flag.Float64("font-size", conf.FontSize, "Go Mono point size. 0 uses the 7x13 bitmap font")
	var loop = flag.Int("loop", conf.Loop, "GIF loop count: 0 forever, -1 once")
	var skip = flag.Bool("skip-unknown", conf.SkipUnknown, "Skip unsupported escape sequences instead of failing")
	var yes = flag.Bool("y", false, "Overwrite the output without asking")
	var play = flag.Bool("play", false, "Play the recording in this terminal")
	var dump = flag.Float64("dump", -1, "Print the screen at this time in seconds")
	var set = flag.String("set", "", "Save a default to the config file, as key=value")
	var remote = flag.String("server", "", "Render on this tcast server instead of locally")
	var logPath = flag.String("log", cfg.DEFAULT_LOG, "Log file")
	var verbose = flag.Bool("verbose", false, "Debug logging")
	var version = flag.Bool("version", false, fmt.Sprintf("tcast version: %s", cfg.VERSION))

	flag.Parse()

	if *version {
		fmt.Printf("tcast %s\n", cfg.VERSION)
		return
	}

	logging.Config(*logPath, "TCAST: ")
	logging.SetVerbose(*verbose)

	if *set != "" {
		key, value, err := splitSetting(*set)
		if err == nil {
			_, err = cfg.UpdateCfg(cfg.CONFIG_PATH, key, value)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update config: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %s=%s to %s\n", key, value, cfg.CONFIG_PATH)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cast, err := message.ReadCastFile(args[0])
	if err != nil {
		fail("Failed to read %s: %s", args[0], err)
	}
	cast.Resize(*width, *height)

	policy := tty.PolicyAbort
	if *skip {
		policy = tty.PolicySkip
	}
	opts := playback.Options{FPS: *fps, IdleTimeLimit: *idle, Policy: policy}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *dump >= 0:
		t, err := playback.ScreenAt(cast, *dump, policy)
		if err != nil {
			fail("Failed to replay: %s", err)
		}
		fmt.Println(strings.Join(t.Text(), "\n"))

	case *play:
		if err := playInTerminal(ctx, cast, opts); err != nil && !errors.Is(err, viewer.ErrQuit) {
			fail("Playback failed: %s", err)
		}

	case *remote != "":
		if len(args) < 2 {
			flag.Usage()
			os.Exit(2)
		}
		renderRemote(ctx, *remote, args[0], args[1], message.RenderQuery{
			FPS:    *fps,
			Idle:   *idle,
			Width:  *width,
			Height: *height,
			Format: strings.TrimPrefix(filepath.Ext(args[1]), "."),
			Skip:   *skip,
			Loop:   *loop,
		}, *yes)

	default:
		if len(args) < 2 {
			flag.Usage()
			os.Exit(2)
		}
		font, err := render.LoadFont(*fontSize)
		if err != nil {
			fail("Failed to load font: %s", err)
		}
		renderVideo(ctx, cast, args[1], encoder.PipelineOptions{
			Playback: opts,
			Font:     font,
			Encode:   encoder.Options{Loop: *loop, Overwrite: *yes},
		})
	}
}

func fail(format string, a ...interface{}) {
	log.Printf(format, a...)
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// splitSetting parses key=value.
func splitSetting(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return key, strings.TrimSpace(value), nil
}

// confirmOverwrite asks before replacing out. Without a terminal it refuses.
func confirmOverwrite(out string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s exists. Overwrite", out),
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

func renderVideo(ctx context.Context, cast *message.Cast, out string, opts encoder.PipelineOptions) {
	if _, err := os.Stat(out); err == nil && !opts.Encode.Overwrite {
		if !confirmOverwrite(out) {
			fail("%s already exists, use -y to overwrite", out)
		}
		opts.Encode.Overwrite = true
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts.Playback.Progress = func(frame, total int) error {
			if frame%10 == 0 || frame == total-1 {
				fmt.Fprintf(os.Stderr, "\rRendering frame %d/%d", frame+1, total)
			}
			return nil
		}
	}

	start := time.Now()
	stats, err := encoder.Pipeline(ctx, cast, out, opts)
	if opts.Playback.Progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fail("Render failed: %s", err)
	}

	size := "?"
	if info, err := os.Stat(out); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("Wrote %s (%s) in %s: %d frames at %d fps, %d idle frames dropped",
		out, size, time.Since(start).Round(time.Millisecond), stats.Emitted, stats.FPS, stats.Dropped)
	if stats.SkippedEscapes > 0 {
		fmt.Printf(", %d escape sequences skipped", stats.SkippedEscapes)
	}
	fmt.Println()
}

func renderRemote(ctx context.Context, serverAddr, in, out string, q message.RenderQuery, overwrite bool) {
	if _, err := os.Stat(out); err == nil && !overwrite && !confirmOverwrite(out) {
		fail("%s already exists, use -y to overwrite", out)
	}
	f, err := message.OpenGZ(in)
	if err != nil {
		fail("Failed to read %s: %s", in, err)
	}
	defer f.Close()

	start := time.Now()
	info, err := client.New(serverAddr).Render(ctx, f, q, out, func(p message.Progress) {
		fmt.Fprintf(os.Stderr, "\rRendering frame %d/%d", p.Frame+1, p.Total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fail("Remote render failed: %s", err)
	}
	fmt.Printf("Wrote %s in %s: %d frames at %d fps, %d idle frames dropped\n",
		out, time.Since(start).Round(time.Millisecond), info.Emitted, info.FPS, info.Dropped)
}

func playInTerminal(ctx context.Context, cast *message.Cast, opts playback.Options) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	v := viewer.New(screen)
	stats, err := v.Play(ctx, cast, opts)
	log.Printf("Played %d frames at %d fps", stats.Emitted, stats.FPS)
	return err
}
