package encoder

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/internal/cfg"
)

// Recorder stores frames as numbered PNG files in a directory, ready for ffmpeg's sequence input.
type Recorder struct {
	dir    string
	frames int
	lock   sync.Mutex
}

func NewRecorder(dir string) (*Recorder, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &Recorder{dir: dir}, nil
}

func (re *Recorder) Dir() string {
	return re.dir
}

// Frames is the number of images written.
func (re *Recorder) Frames() int {
	re.lock.Lock()
	defer re.lock.Unlock()
	return re.frames
}

// FramePath is where frame seq is stored.
func (re *Recorder) FramePath(seq int) string {
	return filepath.Join(re.dir, fmt.Sprintf(cfg.FRAME_NAME_FORMAT, seq))
}

func (re *Recorder) WriteImage(seq int, img image.Image) error {
	re.lock.Lock()
	defer re.lock.Unlock()

	path := re.FramePath(seq)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		log.Printf("Failed to create frame file: %s", err)
		return err
	}

	bf := bufio.NewWriter(f)
	if err = png.Encode(bf, img); err != nil {
		f.Close()
		log.Printf("Failed to encode frame %d: %s", seq, err)
		return fmt.Errorf("encode frame %d: %w", seq, err)
	}
	if err = bf.Flush(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	re.frames += 1
	return nil
}

// Clear removes frames left in the directory by an earlier run.
func (re *Recorder) Clear() error {
	re.lock.Lock()
	defer re.lock.Unlock()

	matches, err := filepath.Glob(filepath.Join(re.dir, cfg.FRAME_GLOB))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	if len(matches) > 0 {
		log.Printf("Removed %d stale frames from %s", len(matches), re.dir)
	}
	re.frames = 0
	return nil
}
