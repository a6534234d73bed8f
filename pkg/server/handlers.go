package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/internal/cfg"
	"github.com/qnkhuat/tcast/pkg/encoder"
	"github.com/qnkhuat/tcast/pkg/message"
	"github.com/qnkhuat/tcast/pkg/playback"
	"github.com/qnkhuat/tcast/pkg/tty"
)

// upgrade an http request to websocket
var httpUpgrader = websocket.Upgrader{
	ReadBufferSize:  cfg.SERVER_READ_BUFFER_SIZE,
	WriteBufferSize: cfg.SERVER_WRITE_BBUFFER_SIZE,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var decoder = schema.NewDecoder()

var formats = map[string]bool{
	"mp4":  true,
	"gif":  true,
	"webm": true,
}

func init() {
	decoder.IgnoreUnknownKeys(true)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %s", err)
	}
}

/*** Health check API ***/
func handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "I'm fine: %s\n", time.Now().String())
}

/*** Add render API ***/
// Body is an asciicast v2 file, optionally gzip compressed.
// Queries are decoded into a message.RenderQuery.
func (s *Server) handleAddRender(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		metricRejected.Inc()
		http.Error(w, "Too many render requests", http.StatusTooManyRequests)
		return
	}

	var q message.RenderQuery
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		log.Printf("Failed to decode query: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Format == "" {
		q.Format = cfg.SERVER_RENDER_FORMAT
	}
	q.Format = strings.ToLower(q.Format)
	if !formats[q.Format] {
		http.Error(w, fmt.Sprintf("Invalid format: %s", q.Format), http.StatusBadRequest)
		return
	}
	if q.FPS < 0 {
		http.Error(w, "fps must not be negative", http.StatusBadRequest)
		return
	}

	body, err := message.NewGZReader(http.MaxBytesReader(w, r.Body, cfg.SERVER_MAX_CAST_SIZE))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %s", err), http.StatusBadRequest)
		return
	}
	defer body.Close()

	cast, err := message.ParseCast(body)
	if err != nil {
		log.Printf("Failed to parse cast: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cast.Resize(q.Width, q.Height)
	if q.Title != "" {
		cast.Header.Title = q.Title
	}

	policy := tty.PolicyAbort
	if q.Skip {
		policy = tty.PolicySkip
	}
	opts := encoder.PipelineOptions{
		Playback: playback.Options{FPS: q.FPS, IdleTimeLimit: q.Idle, Policy: policy},
		Encode:   encoder.Options{Loop: q.Loop},
	}

	job, err := s.NewJob(cast, q.Format, opts)
	if err != nil {
		log.Printf("Failed to add render: %s", err)
		http.Error(w, "Failed to create render", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, job.Info())
}

/*** List renders API ***/
// Queries:
// - status - string : Status of render to query. Leave blank to get any
// - n - int         : Number of renders to get. Set to 0 to get all
// - skip - int      : Number of renders to skip. Used for paging
type ListRenderQuery struct {
	Status string `schema:"status"`
	N      int    `schema:"n"`
	Skip   int    `schema:"skip"`
}

func (s *Server) handleListRenders(w http.ResponseWriter, r *http.Request) {
	var q ListRenderQuery
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		log.Printf("Failed to decode query: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var statuses []message.RenderStatus
	switch status := message.RenderStatus(q.Status); status {
	case "":
	case message.RQueued, message.RRendering, message.RDone, message.RFailed, message.RExpired:
		statuses = []message.RenderStatus{status}
	default:
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	renders, err := s.db.GetRenders(statuses, q.Skip, q.N)
	if err != nil {
		log.Printf("Failed to list renders: %s", err)
		http.Error(w, "Failed to list renders", http.StatusInternalServerError)
		return
	}
	// running jobs are fresher in memory than in the db
	for i, info := range renders {
		if job, ok := s.Job(info.Key); ok {
			renders[i] = job.Info()
		}
	}
	writeJSON(w, http.StatusOK, renders)
}

/*** Render info API ***/
func (s *Server) renderInfo(key string) (message.RenderInfo, error) {
	if job, ok := s.Job(key); ok {
		return job.Info(), nil
	}
	return s.db.FindRender(key)
}

func (s *Server) handleRenderInfo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	info, err := s.renderInfo(key)
	if errors.Is(err, ErrRenderNotFound) {
		http.Error(w, "Render not existed", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCancelRender(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	job, ok := s.Job(key)
	if !ok {
		http.Error(w, "Render not existed", http.StatusNotFound)
		return
	}
	job.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

/*** Video download API ***/
func (s *Server) handleRenderVideo(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	job, ok := s.Job(key)
	if !ok {
		http.Error(w, "Render not existed or expired", http.StatusNotFound)
		return
	}
	if status := job.Status(); status != message.RDone {
		http.Error(w, fmt.Sprintf("Render is %s", status), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.%s", key, job.Info().Format)))
	http.ServeFile(w, r, job.Out())
}

/*** Websocket progress of a render
 The client only listens: Progress messages while the job runs, then one Done or Error
 message, then the server closes the connection.
***/
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	job, ok := s.Job(key)
	if !ok {
		http.Error(w, "Render not existed", http.StatusNotFound)
		return
	}

	conn, err := httpUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to websocket: %s", err)
		return
	}
	log.Printf("Client %s follows render %s", r.RemoteAddr, key)
	job.AddClient(uuid.New().String(), conn) // Blocking call
}
