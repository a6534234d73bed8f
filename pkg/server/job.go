/*
A job is one render request: the uploaded cast, its output video and the
websocket clients following its progress.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/pkg/encoder"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/playback"
)

type Job struct {
	lock      sync.Mutex
	info      message.RenderInfo
	cast      *message.Cast
	opts      encoder.PipelineOptions
	out       string
	clients   map[string]*Client
	final     *message.Wrapper // Done or Error once the job stopped
	cancel    context.CancelFunc
	cancelled bool
}

func NewJob(key string, cast *message.Cast, format, out string, opts encoder.PipelineOptions) *Job {
	return &Job{
		info: message.RenderInfo{
			Key:         key,
			Title:       cast.Header.Title,
			Width:       cast.Header.Width,
			Height:      cast.Header.Height,
			Duration:    cast.Duration(),
			Format:      format,
			Status:      message.RQueued,
			CreatedTime: time.Now(),
		},
		cast:    cast,
		opts:    opts,
		out:     out,
		clients: make(map[string]*Client),
	}
}

func (j *Job) Key() string {
	return j.info.Key
}

func (j *Job) Out() string {
	return j.out
}

func (j *Job) Info() message.RenderInfo {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.info
}

func (j *Job) SetId(id uint64) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.info.Id = id
}

func (j *Job) Status() message.RenderStatus {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.info.Status
}

func (j *Job) SetStatus(status message.RenderStatus) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.info.Status = status
}

// Finished reports whether the job stopped and when.
func (j *Job) Finished() (bool, time.Time) {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.final != nil, j.info.StoppedTime
}

// AddClient subscribes conn to the job's progress. A client joining after the job
// stopped only gets the final message. Blocks until the connection closes.
func (j *Job) AddClient(id string, conn *websocket.Conn) {
	c := NewClient(id, conn)

	j.lock.Lock()
	if j.final != nil {
		c.SendFinal(*j.final)
		close(c.Out)
	} else {
		j.clients[id] = c
	}
	j.lock.Unlock()

	c.Start()
	j.RemoveClient(id)
}

func (j *Job) RemoveClient(id string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if c, ok := j.clients[id]; ok {
		delete(j.clients, id)
		// stops the writer goroutine
		close(c.Out)
	}
}

func (j *Job) NClients() int {
	j.lock.Lock()
	defer j.lock.Unlock()
	return len(j.clients)
}

func (j *Job) Broadcast(msg message.Wrapper) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.final != nil {
		return
	}
	for id, c := range j.clients {
		if !c.Send(msg) {
			log.Printf("Dropped message %s for slow client %s", msg.Type, id)
		}
	}
}

// Cancel stops the job, before or while it runs.
func (j *Job) Cancel() {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.cancelled = true
	if j.cancel != nil {
		j.cancel()
	}
}

// Run renders the job. It is called once, from its own goroutine.
func (j *Job) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j.lock.Lock()
	j.cancel = cancel
	if j.cancelled {
		cancel()
	}
	j.info.Status = message.RRendering
	j.lock.Unlock()

	opts := j.opts
	opts.Playback.Progress = func(frame, total int) error {
		if msg, err := message.Wrap(message.TProgress, message.Progress{Frame: frame, Total: total}); err == nil {
			j.Broadcast(msg)
		}
		metricFrames.Inc()
		return nil
	}

	stats, err := encoder.Pipeline(ctx, j.cast, j.out, opts)
	j.finish(stats, err)
	return err
}

func (j *Job) finish(stats playback.Stats, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	j.info.FPS = stats.FPS
	j.info.Frames = stats.Frames
	j.info.Emitted = stats.Emitted
	j.info.Dropped = stats.Dropped
	j.info.StoppedTime = time.Now()

	var final message.Wrapper
	if err != nil {
		j.info.Status = message.RFailed
		j.info.Reason = reason(err)
		final, _ = message.Wrap(message.TError, message.Error{Reason: j.info.Reason})
	} else {
		j.info.Status = message.RDone
		final, _ = message.Wrap(message.TDone, j.info)
	}
	j.final = &final

	for id, c := range j.clients {
		c.SendFinal(final)
		close(c.Out)
		delete(j.clients, id)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "render cancelled"
	case errors.Is(err, playback.ErrDegenerateRate):
		return playback.ErrDegenerateRate.Error()
	default:
		return fmt.Sprintf("%s", err)
	}
}
