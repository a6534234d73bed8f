package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/qnkhuat/tcast/internal/cfg"
	"github.com/qnkhuat/tcast/pkg/encoder"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/render"
)

type Server struct {
	lock    sync.RWMutex
	jobs    map[string]*Job
	addr    string
	server  *http.Server
	db      *DB
	dir     string // rendered videos
	limiter *rate.Limiter
	font    *render.Font
	encode  encoder.EncodeFunc

	ctx    context.Context // parent of every job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server storing videos in dir and render records in db.
func New(addr, dir string, db *DB) (*Server, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		jobs:    make(map[string]*Job),
		db:      db,
		dir:     dir,
		limiter: rate.NewLimiter(rate.Limit(cfg.SERVER_RENDER_RATE), cfg.SERVER_RENDER_BURST),
		font:    render.BasicFont(),
		encode:  encoder.Encode,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *Server) SetFont(f *render.Font) {
	s.font = f
}

// SetEncoder replaces the ffmpeg call of every new job.
func (s *Server) SetEncoder(encode encoder.EncodeFunc) {
	s.encode = encode
}

func (s *Server) SetLimiter(l *rate.Limiter) {
	s.limiter = l
}

func (s *Server) Job(key string) (*Job, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	job, ok := s.jobs[key]
	return job, ok
}

// NewJob registers a render of cast and starts it in the background.
func (s *Server) NewJob(cast *message.Cast, format string, opts encoder.PipelineOptions) (*Job, error) {
	key := uuid.New().String()
	out := filepath.Join(s.dir, fmt.Sprintf("%s.%s", key, format))

	opts.Font = s.font
	opts.Encoder = s.encode
	opts.Encode.Overwrite = true
	job := NewJob(key, cast, format, out, opts)

	id, err := s.db.AddRender(job.Info())
	if err != nil {
		return nil, fmt.Errorf("failed to store render: %w", err)
	}
	job.SetId(id)

	s.lock.Lock()
	s.jobs[key] = job
	s.lock.Unlock()
	log.Printf("Created render %s (%d events, %.1fs)", key, len(cast.Events), cast.Duration())

	s.wg.Add(1)
	go s.runJob(job)
	return job, nil
}

func (s *Server) runJob(job *Job) {
	defer s.wg.Done()
	metricActiveRenders.Inc()
	defer metricActiveRenders.Dec()

	job.SetStatus(message.RRendering)
	if err := s.db.UpdateRender(job.Info()); err != nil {
		log.Printf("Failed to update render %s: %s", job.Key(), err)
	}

	start := time.Now()
	err := job.Run(s.ctx)
	metricRenderDuration.Observe(time.Since(start).Seconds())

	info := job.Info()
	metricRenders.WithLabelValues(string(info.Status)).Inc()
	if err != nil {
		log.Printf("Render %s failed: %s", job.Key(), err)
	} else {
		log.Printf("Render %s done: %d frames emitted, %d dropped", job.Key(), info.Emitted, info.Dropped)
	}
	if err := s.db.UpdateRender(info); err != nil {
		log.Printf("Failed to update render %s: %s", job.Key(), err)
	}
}

// Handler is the full http API.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/api/render", s.handleAddRender).Methods("POST")
	router.HandleFunc("/api/renders", s.handleListRenders).Methods("GET")
	router.HandleFunc("/api/render/{key}", s.handleRenderInfo).Methods("GET")
	router.HandleFunc("/api/render/{key}", s.handleCancelRender).Methods("DELETE")
	router.HandleFunc("/api/render/{key}/video", s.handleRenderVideo).Methods("GET")
	router.HandleFunc("/ws/render/{key}", s.handleWS)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}).Handler(router)
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{Addr: s.addr, Handler: s.Handler()}
	log.Printf("Serving at: %s", s.addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("Failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Scan every minute and remove videos of renders finished more than an hour ago
		s.cleanRenders(ctx, cfg.SERVER_CLEAN_INTERVAL, cfg.SERVER_CLEAN_THRESHOLD)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.Stop()
	})
	return g.Wait()
}

// Stop shuts the listener down and cancels running jobs.
func (s *Server) Stop() error {
	s.cancel()
	var err error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SERVER_CLOSE_GRACE_PERIOD*time.Second)
		defer cancel()
		err = s.server.Shutdown(shutdownCtx)
	}
	s.wg.Wait()
	return err
}

// Scan for finished renders and expire them
// All unit are in seconds
// interval : scan for every interval time
// threshold : renders stopped longer ago than this get their video removed
func (s *Server) cleanRenders(ctx context.Context, interval, threshold int) {
	tick := time.NewTicker(time.Duration(interval) * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			c := s.scanAndCleanRenders(time.Duration(threshold) * time.Second)
			log.Printf("Cleaned %d renders", c)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) scanAndCleanRenders(threshold time.Duration) int {
	s.lock.RLock()
	var expired []*Job
	for _, job := range s.jobs {
		if done, stopped := job.Finished(); done && time.Since(stopped) > threshold {
			expired = append(expired, job)
		}
	}
	s.lock.RUnlock()

	for _, job := range expired {
		if err := os.Remove(job.Out()); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove video of %s: %s", job.Key(), err)
		}
		if job.Status() == message.RDone {
			job.SetStatus(message.RExpired)
		}
		if err := s.db.UpdateRender(job.Info()); err != nil {
			log.Printf("Failed to update render %s: %s", job.Key(), err)
		}
		s.deleteJob(job.Key())
		log.Printf("Removed render: %s", job.Key())
	}
	return len(expired)
}

func (s *Server) deleteJob(key string) {
	s.lock.Lock()
	delete(s.jobs, key)
	s.lock.Unlock()
}
